// Package config loads the optional YAML configuration file used by the
// CLI and overlays it onto the in-code defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verve-dev/verve/pkg/server"
)

// File mirrors the YAML layout. Absent fields keep the defaults.
type File struct {
	Server struct {
		Address         string `yaml:"address"`
		Title           string `yaml:"title"`
		ReadTimeout     string `yaml:"read_timeout"`
		WriteTimeout    string `yaml:"write_timeout"`
		ShutdownTimeout string `yaml:"shutdown_timeout"`
		MaxMessageSize  int64  `yaml:"max_message_size"`
	} `yaml:"server"`

	Engine struct {
		Diff     string `yaml:"diff"`
		Sanitize *bool  `yaml:"sanitize"`
	} `yaml:"engine"`

	Observability struct {
		Metrics *bool `yaml:"metrics"`
		Tracing *bool `yaml:"tracing"`
	} `yaml:"observability"`
}

// Load parses the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &f, nil
}

// Apply overlays the file onto cfg, field by field, leaving untouched
// anything the file does not set.
func (f *File) Apply(cfg *server.Config) {
	if f.Server.Address != "" {
		cfg.Address = f.Server.Address
	}
	if f.Server.Title != "" {
		cfg.Title = f.Server.Title
	}
	applyDuration(&cfg.ReadTimeout, f.Server.ReadTimeout)
	applyDuration(&cfg.WriteTimeout, f.Server.WriteTimeout)
	applyDuration(&cfg.ShutdownTimeout, f.Server.ShutdownTimeout)
	if f.Server.MaxMessageSize > 0 {
		cfg.MaxMessageSize = f.Server.MaxMessageSize
	}
	if f.Engine.Diff != "" {
		cfg.DiffEngine = f.Engine.Diff
	}
	if f.Engine.Sanitize != nil {
		cfg.SanitizeHTML = *f.Engine.Sanitize
	}
	if f.Observability.Metrics != nil {
		cfg.EnableMetrics = *f.Observability.Metrics
	}
	if f.Observability.Tracing != nil {
		cfg.EnableTracing = *f.Observability.Tracing
	}
}

// applyDuration parses a duration string like "90s" into dst, keeping dst
// when the field is empty or unparseable.
func applyDuration(dst *time.Duration, s string) {
	if s == "" {
		return
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		*dst = d
	}
}
