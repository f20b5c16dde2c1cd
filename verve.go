// Package verve provides the public API for the Verve live view engine.
//
// This is the recommended import for most applications:
//
//	import "github.com/verve-dev/verve"
//
// A minimal application hosts one component behind one page:
//
//	srv, err := verve.NewServer(verve.DefaultConfig().WithAddress(":3000"), nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	srv.Page("/", func(r *http.Request) verve.Component {
//		return &Counter{}
//	})
//	log.Fatal(srv.Start())
//
// A component implements Render plus a handler table:
//
//	type Counter struct{}
//
//	func (c *Counter) Render(ctx *verve.Ctx) (string, error) {
//		return fmt.Sprintf(`<div class="counter">
//			<span class="value">Count: %s</span>
//			<button v-click="increment">+</button>
//		</div>`, ctx.Text(ctx.StateInt("count"))), nil
//	}
//
//	func (c *Counter) Handlers() map[string]verve.Handler {
//		return map[string]verve.Handler{
//			"increment": func(ctx *verve.Ctx, ev *verve.Event) error {
//				ctx.SetState(map[string]any{"count": ctx.StateInt("count") + 1})
//				return nil
//			},
//		}
//	}
package verve

import (
	"github.com/verve-dev/verve/pkg/broker"
	"github.com/verve-dev/verve/pkg/component"
	"github.com/verve-dev/verve/pkg/diff"
	"github.com/verve-dev/verve/pkg/protocol"
	"github.com/verve-dev/verve/pkg/pubsub"
	"github.com/verve-dev/verve/pkg/server"
)

// Component is a server-held stateful view.
type Component = component.Component

// Ctx is passed to every component hook.
type Ctx = component.Ctx

// Handler processes one client event.
type Handler = component.Handler

// Event is a decoded client interaction.
type Event = protocol.ClientEvent

// Optional component interfaces.
type (
	// Mounter receives an init hook.
	Mounter = component.Mounter
	// Unmounter receives a cleanup hook.
	Unmounter = component.Unmounter
	// Updater receives a post-update hook.
	Updater = component.Updater
	// HandlerTable exposes event handlers by name.
	HandlerTable = component.HandlerTable
	// Messenger receives pub/sub payloads.
	Messenger = component.Messenger
)

// Instance binds a component to its id and lifecycle.
type Instance = component.Instance

// Registry tracks live instances and their render baselines.
type Registry = component.Registry

// Server is the HTTP/WebSocket front of the engine.
type Server = server.Server

// Config configures a Server.
type Config = server.Config

// Factory builds a component for one page request.
type Factory = server.Factory

// Broker routes wire messages between connections and components.
type Broker = broker.Broker

// Bus is the pub/sub fan-out for cross-component messaging.
type Bus = pubsub.Bus

// Engine computes patch lists between renders.
type Engine = diff.Engine

// NewServer builds a server. A nil config uses DefaultConfig.
var NewServer = server.New

// DefaultConfig returns the default server configuration.
var DefaultConfig = server.DefaultConfig

// NewInstance wraps a component in a lifecycle instance.
var NewInstance = component.NewInstance
