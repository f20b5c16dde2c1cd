package server

import (
	"net/http"
	"net/url"
	"time"
)

// Config holds configuration for the HTTP/WebSocket server.
type Config struct {
	// Address is the address to listen on (e.g., ":8080").
	// Default: ":8080".
	Address string

	// Title is the page title of the HTML shell.
	// Default: "Verve".
	Title string

	// WebSocket buffer sizes.

	// ReadBufferSize is the WebSocket read buffer size.
	// Default: 4096.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	// Default: 4096.
	WriteBufferSize int

	// CheckOrigin is called to validate the request origin on upgrade.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool

	// Timeouts.

	// ReadTimeout is the maximum time to wait for a client frame. The
	// client keepalive resets it.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a frame.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	// Default: 30 seconds.
	ShutdownTimeout time.Duration

	// Limits.

	// MaxMessageSize is the maximum size of an incoming frame.
	// Default: 64KB.
	MaxMessageSize int64

	// Features.

	// DiffEngine selects the patch engine: "token" or "coarse".
	// Default: "token".
	DiffEngine string

	// EnableMetrics mounts /metrics and the HTTP metrics middleware.
	// Default: true.
	EnableMetrics bool

	// EnableTracing wraps routes in OpenTelemetry spans.
	// Default: false.
	EnableTracing bool

	// SanitizeHTML runs component renders through an HTML sanitizer
	// before they are embedded in the page shell. Binding and selector
	// attributes are allowed through.
	// Default: false.
	SanitizeHTML bool
}

// DefaultConfig returns a Config with sensible defaults. CheckOrigin
// enforces same-origin to prevent cross-site WebSocket hijacking.
func DefaultConfig() *Config {
	return &Config{
		Address:         ":8080",
		Title:           "Verve",
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     SameOriginCheck,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    10 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MaxMessageSize:  64 * 1024,
		DiffEngine:      "token",
		EnableMetrics:   true,
	}
}

// Clone returns a copy of the Config.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// WithAddress sets the listen address and returns the config for chaining.
func (c *Config) WithAddress(addr string) *Config {
	c.Address = addr
	return c
}

// WithTitle sets the page title and returns the config for chaining.
func (c *Config) WithTitle(title string) *Config {
	c.Title = title
	return c
}

// WithDiffEngine selects the patch engine and returns the config for
// chaining.
func (c *Config) WithDiffEngine(name string) *Config {
	c.DiffEngine = name
	return c
}

// WithMetrics toggles Prometheus metrics and returns the config for
// chaining.
func (c *Config) WithMetrics(enabled bool) *Config {
	c.EnableMetrics = enabled
	return c
}

// WithTracing toggles OpenTelemetry tracing and returns the config for
// chaining.
func (c *Config) WithTracing(enabled bool) *Config {
	c.EnableTracing = enabled
	return c
}

// WithSanitizer toggles render sanitization and returns the config for
// chaining.
func (c *Config) WithSanitizer(enabled bool) *Config {
	c.SanitizeHTML = enabled
	return c
}

// SameOriginCheck validates that the WebSocket request origin matches the
// host. This is the secure default for CheckOrigin.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// No Origin header (same-origin request or a non-browser client).
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if r.Host == "" {
		return false
	}
	return originURL.Host == r.Host
}
