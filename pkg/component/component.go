// Package component holds the server side of a live view: the Component
// contract user code implements, the Instance lifecycle around it, and the
// Registry mapping component ids to instances and their last successful
// renders.
package component

import (
	"context"

	"github.com/verve-dev/verve/pkg/markup"
	"github.com/verve-dev/verve/pkg/protocol"
)

// Component is a server-held stateful view. Render produces the current
// markup from the instance state; it must be a pure function of that
// state so two consecutive renders without a state change are identical.
type Component interface {
	Render(*Ctx) (string, error)
}

// Handler processes one client event. The event's re-render is held until
// the handler returns; a non-nil error skips the render for the cycle and
// leaves the previous snapshot in place.
type Handler func(*Ctx, *protocol.ClientEvent) error

// HandlerTable exposes a component's event handlers by name. The table is
// consulted once at mount and must not change afterwards. An event whose
// name has no entry is dropped with a warning.
type HandlerTable interface {
	Handlers() map[string]Handler
}

// Mounter is implemented by components that need an init hook. A mount
// error discards the instance.
type Mounter interface {
	Mount(*Ctx) error
}

// Unmounter is implemented by components that need cleanup. Errors are
// logged, never propagated.
type Unmounter interface {
	Unmount(*Ctx) error
}

// Updater is implemented by components that want a post-update hook after
// each state change is flushed. Failures are logged, never propagated.
type Updater interface {
	Updated(*Ctx)
}

// Messenger is implemented by components that subscribe to pub/sub
// channels. Delivery runs inside the component's serialized cycle.
type Messenger interface {
	OnMessage(ctx *Ctx, channel string, payload any)
}

// Ctx is passed to every user hook. It exposes the instance state and a
// request-scoped context for blocking work.
type Ctx struct {
	ctx  context.Context
	inst *Instance
}

// Context returns the context the current operation runs under.
func (c *Ctx) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// ID returns the full component id.
func (c *Ctx) ID() string {
	return c.inst.ID()
}

// State returns the value stored under key, or nil.
func (c *Ctx) State(key string) any {
	return c.inst.State(key)
}

// StateInt returns the value under key as an int, or 0 when absent or of
// another type.
func (c *Ctx) StateInt(key string) int {
	switch v := c.inst.State(key).(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// StateString returns the value under key as a string, or "".
func (c *Ctx) StateString(key string) string {
	if s, ok := c.inst.State(key).(string); ok {
		return s
	}
	return ""
}

// SetState shallow-merges partial into the instance state. Inside a
// handler the merge is flushed by the running cycle; outside one the
// caller schedules the flush.
func (c *Ctx) SetState(partial map[string]any) {
	c.inst.mergeState(partial)
}

// Text renders a value for markup interpolation. Numeric zero renders as
// "0".
func (c *Ctx) Text(v any) string {
	return markup.Text(v)
}
