// Package config loads exec-monitor settings from the environment and
// command-line flags. Flags override environment values.
package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/mrzor/exec-monitor/internal/bpf"
	"github.com/mrzor/exec-monitor/internal/exclusion"
	"github.com/mrzor/exec-monitor/internal/probe"
)

// DefaultProbeObject is where packages install the compiled probe.
var DefaultProbeObject = filepath.Join("/usr/lib/exec-monitor", bpf.ObjectFile)

// Config holds the runtime configuration.
type Config struct {
	ListenAddr       string        `env:"EXEC_MONITOR_LISTEN_ADDR" envDefault:"0.0.0.0:3000"`
	ProbeObject      string        `env:"EXEC_MONITOR_PROBE_OBJECT"`
	Exclude          []string      `env:"EXEC_MONITOR_EXCLUDE" envSeparator:","`
	RingBufferSize   int           `env:"EXEC_MONITOR_RINGBUF_SIZE" envDefault:"262144"`
	Tracefs          string        `env:"EXEC_MONITOR_TRACEFS"`
	LogLevel         string        `env:"EXEC_MONITOR_LOG_LEVEL" envDefault:"info"`
	LogFormat        string        `env:"EXEC_MONITOR_LOG_FORMAT" envDefault:"json"`
	DropPollInterval time.Duration `env:"EXEC_MONITOR_DROP_POLL_INTERVAL" envDefault:"10s"`

	OTEL OTELConfig
}

// Parse reads the configuration from environment variables.
func Parse() (*Config, error) {
	cfg := Config{ProbeObject: DefaultProbeObject}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// BindFlags registers flags on cmd. Current values become the flag defaults,
// so call it after Parse.
func (c *Config) BindFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&c.ListenAddr, "listen", c.ListenAddr, "HTTP listen address")
	flags.StringVar(&c.ProbeObject, "probe-object", c.ProbeObject, "path to the compiled exec probe")
	flags.StringSliceVar(&c.Exclude, "exclude", c.Exclude, "command name to ignore (repeatable, at most 10)")
	flags.IntVar(&c.RingBufferSize, "ringbuf-size", c.RingBufferSize, "ring buffer size in bytes")
	flags.StringVar(&c.Tracefs, "tracefs", c.Tracefs, "tracefs mount point (auto-detected when empty)")
	flags.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format (json or console)")
	flags.DurationVar(&c.DropPollInterval, "drop-poll-interval", c.DropPollInterval, "how often to check the kernel drop counter")
}

// Validate checks everything that can be checked without touching the kernel.
func (c *Config) Validate() error {
	var errs []error

	if _, _, err := net.SplitHostPort(c.ListenAddr); err != nil {
		errs = append(errs, fmt.Errorf("listen address %q: %w", c.ListenAddr, err))
	}
	if c.ProbeObject == "" {
		errs = append(errs, errors.New("probe object path is empty"))
	}
	if _, err := c.ExclusionSet(); err != nil {
		errs = append(errs, err)
	}
	if err := probe.ValidateRingBufferSize(c.RingBufferSize); err != nil {
		errs = append(errs, err)
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("log format %q: must be json or console", c.LogFormat))
	}
	if c.DropPollInterval <= 0 {
		errs = append(errs, fmt.Errorf("drop poll interval %s: must be positive", c.DropPollInterval))
	}

	return errors.Join(errs...)
}

// ExclusionSet builds the exclusion set from Exclude. Surrounding whitespace
// is trimmed, so "ls, cat" means ls and cat.
func (c *Config) ExclusionSet() (*exclusion.Set, error) {
	names := make([]string, len(c.Exclude))
	for i, name := range c.Exclude {
		names[i] = strings.TrimSpace(name)
	}
	return exclusion.New(names)
}
