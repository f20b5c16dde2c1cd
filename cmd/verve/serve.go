package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/verve-dev/verve/internal/config"
	"github.com/verve-dev/verve/pkg/component"
	"github.com/verve-dev/verve/pkg/protocol"
	"github.com/verve-dev/verve/pkg/server"
)

func serveCmd() *cobra.Command {
	var (
		addr       string
		configPath string
		engine     string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo counter application",
		Long: `Start a Verve server hosting the demo counter component at /.

The demo exists to exercise the full loop end to end: open the page,
click the button, and watch the server patch the count over the
WebSocket.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(logLevel)

			cfg := server.DefaultConfig()
			if configPath != "" {
				file, err := config.Load(configPath)
				if err != nil {
					return err
				}
				file.Apply(cfg)
			}
			if addr != "" {
				cfg.WithAddress(addr)
			}
			if engine != "" {
				cfg.WithDiffEngine(engine)
			}

			srv, err := server.New(cfg, logger)
			if err != nil {
				return err
			}
			srv.Page("/", func(r *http.Request) component.Component {
				return &counterDemo{}
			})

			ctx, stop := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				logger.Info("shutting down")
				return srv.Shutdown(context.Background())
			}
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default :8080)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	cmd.Flags().StringVarP(&engine, "engine", "e", "", "Diff engine: token or coarse")
	cmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "Log level: debug, info, warn, error")
	return cmd
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// counterDemo is the canonical demo component: a count, an increment
// button, and a reset.
type counterDemo struct{}

func (c *counterDemo) Mount(ctx *component.Ctx) error {
	ctx.SetState(map[string]any{"count": 0})
	return nil
}

func (c *counterDemo) Render(ctx *component.Ctx) (string, error) {
	return fmt.Sprintf(`<div class="counter">
<h1 class="title">Verve counter</h1>
<p class="value">Count: %s</p>
<button v-click="increment" class="inc">+1</button>
<button v-click="reset" class="reset">Reset</button>
</div>`, ctx.Text(ctx.StateInt("count"))), nil
}

func (c *counterDemo) Handlers() map[string]component.Handler {
	return map[string]component.Handler{
		"increment": func(ctx *component.Ctx, ev *protocol.ClientEvent) error {
			ctx.SetState(map[string]any{"count": ctx.StateInt("count") + 1})
			return nil
		},
		"reset": func(ctx *component.Ctx, ev *protocol.ClientEvent) error {
			ctx.SetState(map[string]any{"count": 0})
			return nil
		},
	}
}
