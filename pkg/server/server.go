// Package server is the HTTP face of the engine: it serves component
// pages, the embedded client runtime, and the WebSocket endpoint feeding
// the broker.
package server

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/verve-dev/verve/client"
	"github.com/verve-dev/verve/pkg/broker"
	"github.com/verve-dev/verve/pkg/component"
	"github.com/verve-dev/verve/pkg/diff"
	"github.com/verve-dev/verve/pkg/middleware"
	"github.com/verve-dev/verve/pkg/pubsub"
)

// Factory builds a fresh component for one page request. Request-derived
// props (query params, headers) go into the component here.
type Factory func(r *http.Request) component.Component

var shellTmpl = template.Must(template.New("shell").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
</head>
<body>
{{.Content}}
<script src="/verve/client.js" defer></script>
</body>
</html>
`))

// Server wires the registry, diff engine, broker, pub/sub bus, and
// transport behind a chi router.
type Server struct {
	config   *Config
	logger   *slog.Logger
	registry *component.Registry
	engine   diff.Engine
	broker   *broker.Broker
	bus      *pubsub.Bus
	hub      *wsHub
	router   chi.Router
	http     *http.Server

	sanitizer *bluemonday.Policy
}

// New builds a server from config. A nil config uses DefaultConfig; a nil
// logger uses slog.Default.
func New(config *Config, logger *slog.Logger) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	engine, err := diff.Select(config.DiffEngine)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:   config,
		logger:   logger.With("component", "server"),
		registry: component.NewRegistry(logger),
		engine:   engine,
	}
	s.hub = newWSHub(config, logger)
	s.broker = broker.New(s.registry, engine, s.hub, logger)
	s.bus = pubsub.NewBus(s.broker.DeliverMessage, logger)

	if config.SanitizeHTML {
		s.sanitizer = renderPolicy()
	}

	s.router = chi.NewRouter()
	s.router.Use(chimw.RealIP)
	s.router.Use(chimw.Recoverer)
	if config.EnableMetrics {
		s.router.Use(metricsMiddleware())
	}
	if config.EnableTracing {
		s.router.Use(middleware.OpenTelemetry())
	}

	s.router.Get("/verve/ws", s.handleWS)
	s.router.Get("/verve/client.js", s.handleClientJS)
	if config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.Handler())
	}

	s.http = &http.Server{
		Addr:    config.Address,
		Handler: s.router,
	}
	return s, nil
}

// metricsMiddleware is shared across servers in one process; the metric
// collectors register with the default registry exactly once.
var metricsMiddleware = sync.OnceValue(func() func(http.Handler) http.Handler {
	return middleware.Prometheus()
})

// renderPolicy is a UGC policy widened to keep the engine's own wire
// attributes and event bindings.
func renderPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class", "data-verve-sel", "data-verve-id",
		"v-click", "v-input", "v-change", "v-submit").Globally()
	p.AllowElements("button", "input", "form", "select", "option", "textarea", "label")
	p.AllowAttrs("type", "name", "value", "placeholder", "checked", "disabled").Globally()
	return p
}

// Registry exposes the component registry.
func (s *Server) Registry() *component.Registry { return s.registry }

// Broker exposes the connection broker.
func (s *Server) Broker() *broker.Broker { return s.broker }

// Bus exposes the pub/sub bus for application broadcasts.
func (s *Server) Bus() *pubsub.Bus { return s.bus }

// Router exposes the underlying chi router for extra application routes.
func (s *Server) Router() chi.Router { return s.router }

// Page mounts a component page at pattern. Each GET constructs a fresh
// instance from the factory, mounts it, renders it once, and embeds the
// render in the HTML shell. The instance lives until its connection
// closes.
func (s *Server) Page(pattern string, factory Factory) {
	s.router.Get(pattern, func(w http.ResponseWriter, r *http.Request) {
		inst := component.NewInstance(factory(r), component.WithLogger(s.logger))
		inst.OnUnmount(s.bus.UnsubscribeAll)

		if err := inst.Mount(r.Context()); err != nil {
			s.logger.Error("mount failed", "path", r.URL.Path, "error", err)
			http.Error(w, "component mount failed", http.StatusInternalServerError)
			return
		}
		rendered, err := inst.Render(r.Context())
		if err != nil {
			s.logger.Error("initial render failed", "path", r.URL.Path, "error", err)
			http.Error(w, "component render failed", http.StatusInternalServerError)
			return
		}
		if err := s.registry.Add(inst); err != nil {
			s.logger.Error("registry add failed", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		s.registry.SetSnapshot(inst.ID(), rendered)

		if s.sanitizer != nil {
			rendered = s.sanitizer.Sanitize(rendered)
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err = shellTmpl.Execute(w, struct {
			Title   string
			Content template.HTML
		}{
			Title:   s.config.Title,
			Content: template.HTML(rendered),
		})
		if err != nil {
			s.logger.Error("shell render failed", "error", err)
		}
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	s.hub.serve(w, r,
		s.broker.HandleOpen,
		s.broker.HandleMessage,
		func(connID string) {
			// Components bound to the connection die with it: unmount,
			// then drop them from the registry.
			for _, id := range s.broker.HandleClose(connID) {
				if inst, err := s.registry.Get(id); err == nil {
					inst.Unmount(context.Background())
				}
				s.registry.Remove(id)
			}
		})
}

func (s *Server) handleClientJS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(client.VerveJS)
}

// Start listens on the configured address and blocks until the listener
// fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("listening", "address", s.config.Address, "engine", s.config.DiffEngine)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Shutdown closes connections and stops the HTTP server within the
// configured timeout. Remaining components are unmounted.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.hub.closeAll()
	s.registry.Each(func(inst *component.Instance) {
		inst.Unmount(ctx)
	})
	if err := s.http.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	s.logger.Info("stopped")
	return nil
}
