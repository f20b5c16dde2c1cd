// Package broker routes wire messages between connections and component
// instances. It owns the connection arena: which components each
// connection drives, and which connection each component's patches go to.
// The broker never opens sockets; a Transport is injected by the server
// layer.
package broker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/verve-dev/verve/pkg/component"
	"github.com/verve-dev/verve/pkg/diff"
	"github.com/verve-dev/verve/pkg/protocol"
)

// Sentinel errors for routing lookups.
var (
	// ErrUnknownComponent is returned when an event names a component id
	// the registry does not hold.
	ErrUnknownComponent = errors.New("broker: unknown component")

	// ErrUnknownConnection is returned when a send targets a connection
	// that is not registered.
	ErrUnknownConnection = errors.New("broker: unknown connection")
)

// Transport delivers one text frame to one connection.
type Transport interface {
	Send(connID, msg string) error
}

// Broker ties the registry, the diff engine, and the transport together
// and runs the serialized event cycle per component.
type Broker struct {
	registry  *component.Registry
	engine    diff.Engine
	transport Transport
	logger    *slog.Logger

	mu            sync.RWMutex
	connections   map[string]map[string]struct{}
	componentConn map[string]string
}

// New returns a broker. A nil logger uses slog.Default.
func New(registry *component.Registry, engine diff.Engine, transport Transport, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		registry:      registry,
		engine:        engine,
		transport:     transport,
		logger:        logger.With("component", "broker"),
		connections:   make(map[string]map[string]struct{}),
		componentConn: make(map[string]string),
	}
}

// HandleOpen registers a new connection with an empty component set.
func (b *Broker) HandleOpen(connID string) {
	b.mu.Lock()
	if _, ok := b.connections[connID]; !ok {
		b.connections[connID] = make(map[string]struct{})
		activeConnections.Inc()
	}
	b.mu.Unlock()
	b.logger.Debug("connection opened", "conn_id", connID)
}

// HandleClose tears down a connection: every component it drove is
// unregistered and the arena entry dropped. Components are not unmounted
// here; their owner decides that.
func (b *Broker) HandleClose(connID string) []string {
	b.mu.Lock()
	comps, ok := b.connections[connID]
	if !ok {
		b.mu.Unlock()
		return nil
	}
	delete(b.connections, connID)
	ids := make([]string, 0, len(comps))
	for id := range comps {
		if b.componentConn[id] == connID {
			delete(b.componentConn, id)
		}
		ids = append(ids, id)
	}
	b.mu.Unlock()
	activeConnections.Dec()
	b.logger.Debug("connection closed", "conn_id", connID, "components", len(ids))
	return ids
}

// Register binds a component to a connection, replacing any previous
// binding. Idempotent.
func (b *Broker) Register(connID, componentID string) {
	b.mu.Lock()
	if _, ok := b.connections[connID]; !ok {
		b.connections[connID] = make(map[string]struct{})
		activeConnections.Inc()
	}
	b.connections[connID][componentID] = struct{}{}
	b.componentConn[componentID] = connID
	b.mu.Unlock()
}

// connFor returns the connection currently bound to a component.
func (b *Broker) connFor(componentID string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	connID, ok := b.componentConn[componentID]
	return connID, ok
}

// HandleMessage processes one inbound frame from a connection. Keepalives
// short-circuit before any component lookup; malformed frames are warned
// about and dropped; events are enqueued on their component's serial
// queue. The call returns once the event is queued, not once it is
// processed.
func (b *Broker) HandleMessage(ctx context.Context, connID, raw string) {
	msg := protocol.DecodeMessage(raw)
	switch msg.Kind {
	case protocol.MsgKeepalive:
		return
	case protocol.MsgNoop:
		if raw != "" {
			b.logger.Warn("undecodable frame dropped", "conn_id", connID)
		}
		return
	}

	eventsReceived.Inc()
	ev := msg.Event
	inst, err := b.resolve(ev)
	if err != nil {
		eventsDropped.Inc()
		routingWarnings.Inc()
		b.logger.Warn("event for unknown component dropped",
			"conn_id", connID, "short_id", ev.ShortID, "component_id", ev.ComponentID,
			"event", ev.EventName)
		return
	}

	b.Register(connID, inst.ID())
	inst.Enqueue(func() {
		b.runEventCycle(inst, ev)
	})
}

func (b *Broker) resolve(ev *protocol.ClientEvent) (*component.Instance, error) {
	if ev.ShortID != "" {
		inst, err := b.registry.GetByShort(ev.ShortID)
		if err != nil {
			return nil, ErrUnknownComponent
		}
		return inst, nil
	}
	inst, err := b.registry.Get(ev.ComponentID)
	if err != nil {
		return nil, ErrUnknownComponent
	}
	return inst, nil
}

// runEventCycle is the serialized handle, render, diff, send sequence for
// one event. A failure at any stage leaves the previous snapshot in place
// and never affects other components or the connection.
func (b *Broker) runEventCycle(inst *component.Instance, ev *protocol.ClientEvent) {
	ctx := context.Background()
	if err := inst.HandleEvent(ctx, ev); err != nil {
		eventsDropped.Inc()
		return
	}
	inst.ConsumeDirty()
	b.flush(ctx, inst)
	inst.NotifyUpdated(ctx)
}

// FlushState schedules a render cycle for state set outside an event
// handler. A no-op when the component is unknown or its state is clean.
func (b *Broker) FlushState(componentID string) {
	inst, err := b.registry.Get(componentID)
	if err != nil {
		routingWarnings.Inc()
		b.logger.Warn("flush for unknown component dropped", "component_id", componentID)
		return
	}
	inst.Enqueue(func() {
		if !inst.ConsumeDirty() {
			return
		}
		ctx := context.Background()
		b.flush(ctx, inst)
		inst.NotifyUpdated(ctx)
	})
}

// DeliverMessage is the pub/sub delivery hook: the payload runs through
// the component's message hook inside its serial queue, then any state
// change is flushed.
func (b *Broker) DeliverMessage(componentID, channel string, payload any) {
	inst, err := b.registry.Get(componentID)
	if err != nil {
		routingWarnings.Inc()
		return
	}
	inst.Enqueue(func() {
		ctx := context.Background()
		inst.HandleMessage(ctx, channel, payload)
		if !inst.ConsumeDirty() {
			return
		}
		b.flush(ctx, inst)
		inst.NotifyUpdated(ctx)
	})
}

// flush renders, diffs against the snapshot, and sends the patch batch to
// the component's connection. Runs inside the instance's serial queue.
func (b *Broker) flush(ctx context.Context, inst *component.Instance) {
	rendered, err := inst.Render(ctx)
	if err != nil {
		b.logger.Error("render failed, keeping previous snapshot",
			"component_id", inst.ID(), "error", err)
		return
	}

	previous, _ := b.registry.Snapshot(inst.ID())
	patches := b.engine.Diff(inst.ID(), previous, rendered)
	b.registry.SetSnapshot(inst.ID(), rendered)
	if len(patches) == 0 {
		return
	}

	batch := protocol.PatchBatch{ShortID: inst.ShortID(), Patches: patches}
	encoded, err := batch.Encode()
	if err != nil {
		b.logger.Error("patch batch encode failed", "component_id", inst.ID(), "error", err)
		return
	}

	connID, ok := b.connFor(inst.ID())
	if !ok {
		routingWarnings.Inc()
		b.logger.Warn("no connection for component, patches dropped",
			"component_id", inst.ID())
		return
	}
	b.SendToConnection(connID, encoded)
	patchesSent.Add(float64(len(patches)))
}

// SendToConnection delivers a frame best effort: a missing or closed
// connection is a warning, never an error to the caller.
func (b *Broker) SendToConnection(connID, msg string) {
	b.mu.RLock()
	_, known := b.connections[connID]
	b.mu.RUnlock()
	if !known {
		routingWarnings.Inc()
		b.logger.Warn("send to unknown connection dropped", "conn_id", connID)
		return
	}
	if err := b.transport.Send(connID, msg); err != nil {
		routingWarnings.Inc()
		b.logger.Warn("send failed", "conn_id", connID, "error", err)
	}
}

// Connections returns the number of open connections.
func (b *Broker) Connections() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.connections)
}

// Components returns the component ids bound to a connection.
func (b *Broker) Components(connID string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.connections[connID]))
	for id := range b.connections[connID] {
		out = append(out, id)
	}
	return out
}
