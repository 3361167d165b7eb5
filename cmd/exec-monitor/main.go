// exec-monitor records process executions with an eBPF probe and serves the
// most recent ones over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cilium/ebpf/ringbuf"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mrzor/exec-monitor/internal/api"
	"github.com/mrzor/exec-monitor/internal/config"
	"github.com/mrzor/exec-monitor/internal/eventprocessor"
	"github.com/mrzor/exec-monitor/internal/eventstream"
	"github.com/mrzor/exec-monitor/internal/exclusion"
	"github.com/mrzor/exec-monitor/internal/logging"
	"github.com/mrzor/exec-monitor/internal/metrics"
	"github.com/mrzor/exec-monitor/internal/otel"
	"github.com/mrzor/exec-monitor/internal/probe"
	"github.com/mrzor/exec-monitor/internal/store"
	"github.com/mrzor/exec-monitor/internal/timesync"
	"github.com/mrzor/exec-monitor/internal/usercache"
)

// Version information injected at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec-monitor",
		Short: "Record process executions and serve them over HTTP",
		Long: `exec-monitor - observe every execve on the host

An eBPF probe on sys_enter_execve reports each execution through a ring
buffer. The most recent 500 are kept in memory and served as JSON.

Every flag can also be set through its EXEC_MONITOR_* environment variable.

Examples:
  # Ignore noisy commands
  exec-monitor --exclude ls --exclude cat

  # Query
  curl localhost:3000/executions?limit=20
  curl localhost:3000/executions/4242
`,
		Version:      fmt.Sprintf("%s (%s)", version, commit),
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			defer func() {
				_ = logger.Sync() //nolint:errcheck // stderr sync fails on some terminals
			}()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg, logger); err != nil {
				logger.Error("exec-monitor stopped", zap.Error(err))
				return err
			}
			return nil
		},
	}
	cfg.BindFlags(cmd)
	return cmd
}

// setupOTEL initializes the tracer provider used for API request spans.
func setupOTEL(ctx context.Context, cfg *config.Config, logger *zap.Logger) (trace.TracerProvider, func(), error) {
	tp, shutdown, err := otel.InitProvider(ctx, &cfg.OTEL, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing tracing: %w", err)
	}

	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

// setupProbe loads and attaches the probe and opens its ring buffer.
// The caller owns the returned reader.
func setupProbe(cfg *config.Config, excluded *exclusion.Set, logger *zap.Logger) (*probe.Probe, *ringbuf.Reader, func(), error) {
	p, err := probe.Load(probe.Options{
		ObjectPath:     cfg.ProbeObject,
		Tracefs:        cfg.Tracefs,
		Excluded:       excluded,
		RingBufferSize: cfg.RingBufferSize,
	}, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := p.Attach(); err != nil {
		if closeErr := p.Close(); closeErr != nil {
			logger.Warn("closing probe after attach failure", zap.Error(closeErr))
		}
		return nil, nil, nil, err
	}

	rd, err := p.OpenRingBuffer()
	if err != nil {
		if closeErr := p.Close(); closeErr != nil {
			logger.Warn("closing probe after ring buffer open failure", zap.Error(closeErr))
		}
		return nil, nil, nil, err
	}

	cleanup := func() {
		if err := p.Close(); err != nil {
			logger.Warn("closing probe", zap.Error(err))
		}
	}
	return p, rd, cleanup, nil
}

// setupStream wires the consumer from the ring buffer into the store.
func setupStream(rd *ringbuf.Reader, excluded *exclusion.Set, events *store.Store, m *metrics.Metrics, logger *zap.Logger) (*eventstream.Stream, error) {
	converter, err := timesync.NewConverter()
	if err != nil {
		return nil, fmt.Errorf("failed to create time converter: %w", err)
	}

	processor := eventprocessor.NewProcessor(converter, usercache.New(), excluded)
	return eventstream.New(rd, processor, events, m, logger), nil
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting exec-monitor", zap.String("version", version), zap.String("commit", commit))

	excluded, err := cfg.ExclusionSet()
	if err != nil {
		return err
	}

	tp, cleanupOTEL, err := setupOTEL(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanupOTEL()

	p, rd, cleanupProbe, err := setupProbe(cfg, excluded, logger)
	if err != nil {
		return err
	}
	defer cleanupProbe()

	m := metrics.New()
	events := store.New(store.DefaultCapacity)
	m.RegisterStore(
		func() float64 { return float64(events.Len()) },
		func() float64 { return float64(events.Stats().Evicted) },
	)
	m.RegisterKernelDrops(p.DroppedEvents)

	stream, err := setupStream(rd, excluded, events, m, logger)
	if err != nil {
		if closeErr := rd.Close(); closeErr != nil {
			logger.Warn("closing ring buffer", zap.Error(closeErr))
		}
		return err
	}

	stream.Start(ctx)
	defer func() {
		if err := stream.Stop(); err != nil {
			logger.Warn("stopping event stream", zap.Error(err))
		}
	}()

	go eventstream.WatchDrops(ctx, p, cfg.DropPollInterval, logger)

	server := api.NewServer(cfg.ListenAddr, api.NewRouter(events, m, tp, logger), logger)
	return server.Run(ctx)
}
