package component

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"

	"github.com/verve-dev/verve/pkg/markup"
	"github.com/verve-dev/verve/pkg/protocol"
)

// Lifecycle phases. Unmounting is terminal; an unmounted instance is never
// remounted.
const (
	phaseNew int32 = iota
	phaseMounted
	phaseUnmounted
)

// Instance binds a Component to an id, its state map, and its place in the
// lifecycle. All event cycles for one instance run serialized in arrival
// order through Enqueue; distinct instances never block each other.
type Instance struct {
	id       string
	shortID  string
	comp     Component
	handlers map[string]Handler
	logger   *slog.Logger

	phase atomic.Int32
	dirty atomic.Bool

	stateMu sync.RWMutex
	state   map[string]any

	cleanupMu sync.Mutex
	cleanups  []func(componentID string)

	qmu      sync.Mutex
	queue    []func()
	draining bool
}

// Option configures a new instance.
type Option func(*Instance)

// WithID fixes the component id instead of generating one.
func WithID(id string) Option {
	return func(in *Instance) { in.id = id }
}

// WithLogger sets the instance logger.
func WithLogger(logger *slog.Logger) Option {
	return func(in *Instance) { in.logger = logger }
}

// WithInitialState seeds the state map before Mount runs.
func WithInitialState(state map[string]any) Option {
	return func(in *Instance) {
		for k, v := range state {
			in.state[k] = v
		}
	}
}

// NewInstance wraps a component. Ids are ULIDs unless fixed with WithID.
func NewInstance(comp Component, opts ...Option) *Instance {
	in := &Instance{
		comp:  comp,
		state: make(map[string]any),
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.id == "" {
		in.id = ulid.Make().String()
	}
	in.shortID = markup.ShortHash(in.id)
	if in.logger == nil {
		in.logger = slog.Default()
	}
	in.logger = in.logger.With("component_id", in.id)
	if ht, ok := comp.(HandlerTable); ok {
		in.handlers = ht.Handlers()
	}
	return in
}

// ID returns the full component id.
func (in *Instance) ID() string { return in.id }

// ShortID returns the 8-character wire id.
func (in *Instance) ShortID() string { return in.shortID }

// Mounted reports whether the instance is currently mounted.
func (in *Instance) Mounted() bool { return in.phase.Load() == phaseMounted }

// State returns the value stored under key, or nil.
func (in *Instance) State(key string) any {
	in.stateMu.RLock()
	defer in.stateMu.RUnlock()
	return in.state[key]
}

// StateSnapshot returns a shallow copy of the state map.
func (in *Instance) StateSnapshot() map[string]any {
	in.stateMu.RLock()
	defer in.stateMu.RUnlock()
	out := make(map[string]any, len(in.state))
	for k, v := range in.state {
		out[k] = v
	}
	return out
}

func (in *Instance) mergeState(partial map[string]any) {
	if len(partial) == 0 {
		return
	}
	in.stateMu.Lock()
	for k, v := range partial {
		in.state[k] = v
	}
	in.stateMu.Unlock()
	in.dirty.Store(true)
}

// SetState shallow-merges partial into the state and marks the instance
// dirty. The caller is responsible for running the flush cycle; the engine
// does this through Enqueue.
func (in *Instance) SetState(partial map[string]any) {
	in.mergeState(partial)
}

// ConsumeDirty reports whether state changed since the last call and
// clears the mark.
func (in *Instance) ConsumeDirty() bool {
	return in.dirty.Swap(false)
}

// Mount transitions New to Mounted, running the component's init hook if
// it has one. A hook failure leaves the instance unmounted and is fatal:
// callers discard the instance and do not retry.
func (in *Instance) Mount(ctx context.Context) error {
	switch in.phase.Load() {
	case phaseMounted:
		return ErrAlreadyMounted
	case phaseUnmounted:
		return ErrUnmounted
	}
	if m, ok := in.comp.(Mounter); ok {
		if err := in.safeHook(ctx, "mount", func(c *Ctx) error { return m.Mount(c) }); err != nil {
			return &MountError{ComponentID: in.id, Err: err}
		}
	}
	in.phase.Store(phaseMounted)
	in.logger.Debug("component mounted")
	return nil
}

// Render produces the prepared markup for the current state: user render,
// selector injection, boundary wrap. Calling Render on an instance that is
// not mounted is a precondition violation.
func (in *Instance) Render(ctx context.Context) (string, error) {
	switch in.phase.Load() {
	case phaseNew:
		return "", ErrNotMounted
	case phaseUnmounted:
		return "", ErrUnmounted
	}
	var raw string
	err := in.safeHook(ctx, "render", func(c *Ctx) error {
		var rerr error
		raw, rerr = in.comp.Render(c)
		return rerr
	})
	if err != nil {
		return "", &RenderError{ComponentID: in.id, Err: err}
	}
	prepared, err := markup.Prepare(in.id, raw)
	if err != nil {
		return "", &RenderError{ComponentID: in.id, Err: err}
	}
	return prepared, nil
}

// HandleEvent dispatches ev through the handler table and waits for the
// handler to finish. An event with no handler is dropped with a warning
// and a nil return; a handler error is logged and returned so the cycle
// skips its render.
func (in *Instance) HandleEvent(ctx context.Context, ev *protocol.ClientEvent) error {
	if in.phase.Load() != phaseMounted {
		return ErrNotMounted
	}
	h, ok := in.handlers[ev.EventName]
	if !ok {
		in.logger.Warn("no handler for event, dropping", "event", ev.EventName)
		return nil
	}
	err := in.safeHook(ctx, "event", func(c *Ctx) error { return h(c, ev) })
	if err != nil {
		in.logger.Error("event handler failed", "event", ev.EventName, "error", err)
		return err
	}
	return nil
}

// HandleMessage delivers a pub/sub payload to the component if it listens.
func (in *Instance) HandleMessage(ctx context.Context, channel string, payload any) {
	if in.phase.Load() != phaseMounted {
		return
	}
	m, ok := in.comp.(Messenger)
	if !ok {
		return
	}
	err := in.safeHook(ctx, "message", func(c *Ctx) error {
		m.OnMessage(c, channel, payload)
		return nil
	})
	if err != nil {
		in.logger.Error("message delivery failed", "channel", channel, "error", err)
	}
}

// NotifyUpdated runs the component's post-update hook, best effort.
func (in *Instance) NotifyUpdated(ctx context.Context) {
	u, ok := in.comp.(Updater)
	if !ok {
		return
	}
	err := in.safeHook(ctx, "updated", func(c *Ctx) error {
		u.Updated(c)
		return nil
	})
	if err != nil {
		in.logger.Error("post-update hook failed", "error", err)
	}
}

// OnUnmount registers a cleanup run once when the instance unmounts. The
// engine uses this to drop pub/sub subscriptions.
func (in *Instance) OnUnmount(fn func(componentID string)) {
	in.cleanupMu.Lock()
	in.cleanups = append(in.cleanups, fn)
	in.cleanupMu.Unlock()
}

// Unmount transitions to the terminal phase, running registered cleanups
// and the component's own cleanup hook. Idempotent: repeated calls are
// no-ops. Cleanup errors are logged, never propagated.
func (in *Instance) Unmount(ctx context.Context) {
	if !in.phase.CompareAndSwap(phaseMounted, phaseUnmounted) {
		in.phase.Store(phaseUnmounted)
		return
	}
	in.cleanupMu.Lock()
	cleanups := in.cleanups
	in.cleanups = nil
	in.cleanupMu.Unlock()
	for _, fn := range cleanups {
		fn(in.id)
	}
	if u, ok := in.comp.(Unmounter); ok {
		if err := in.safeHook(ctx, "unmount", func(c *Ctx) error { return u.Unmount(c) }); err != nil {
			in.logger.Error("unmount hook failed", "error", err)
		}
	}
	in.logger.Debug("component unmounted")
}

// Enqueue schedules fn on the instance's serial queue. Functions run one
// at a time in arrival order on a background goroutine; the queue drains
// fully before the goroutine exits.
func (in *Instance) Enqueue(fn func()) {
	in.qmu.Lock()
	in.queue = append(in.queue, fn)
	if in.draining {
		in.qmu.Unlock()
		return
	}
	in.draining = true
	in.qmu.Unlock()
	go in.drain()
}

func (in *Instance) drain() {
	for {
		in.qmu.Lock()
		if len(in.queue) == 0 {
			in.draining = false
			in.qmu.Unlock()
			return
		}
		fn := in.queue[0]
		in.queue = in.queue[1:]
		in.qmu.Unlock()
		fn()
	}
}

// safeHook runs a user hook with panic recovery so one component cannot
// take the process down.
func (in *Instance) safeHook(ctx context.Context, op string, fn func(*Ctx) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			perr := &PanicError{
				ComponentID: in.id,
				Op:          op,
				Panic:       r,
				Stack:       debug.Stack(),
			}
			in.logger.Error("recovered panic in user hook",
				"op", op, "panic", r, "stack", string(perr.Stack))
			err = perr
		}
	}()
	return fn(&Ctx{ctx: ctx, inst: in})
}
