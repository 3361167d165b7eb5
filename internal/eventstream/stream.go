// Package eventstream consumes probe records from the ring buffer and feeds
// the event store.
//
// Delivery from the kernel is at-most-once: the probe drops records when the
// ring buffer is full, and nothing downstream assumes every execve arrives.
package eventstream

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cilium/ebpf/ringbuf"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mrzor/exec-monitor/internal/bpf"
	"github.com/mrzor/exec-monitor/internal/eventprocessor"
	"github.com/mrzor/exec-monitor/internal/execevent"
	"github.com/mrzor/exec-monitor/internal/metrics"
)

// RecordReader is satisfied by *ringbuf.Reader.
type RecordReader interface {
	Read() (ringbuf.Record, error)
	Close() error
}

// Processor turns a decoded record into an event.
type Processor interface {
	Process(rec *bpf.ExecRecord) (execevent.Event, error)
}

// Sink receives decoded events. The stream is its only writer.
type Sink interface {
	Insert(ev execevent.Event)
}

// Stream reads records from a ring buffer and dispatches them to a sink.
type Stream struct {
	reader    RecordReader
	processor Processor
	sink      Sink
	metrics   *metrics.Metrics
	logger    *zap.Logger
	// bounds warning volume when the kernel sends garbage
	limiter *rate.Limiter

	closeOnce sync.Once
	started   atomic.Bool
	done      chan struct{}
}

// New creates a new Stream.
func New(reader RecordReader, processor Processor, sink Sink, m *metrics.Metrics, logger *zap.Logger) *Stream {
	return &Stream{
		reader:    reader,
		processor: processor,
		sink:      sink,
		metrics:   m,
		logger:    logger.With(zap.String("component", "eventstream")),
		limiter:   rate.NewLimiter(rate.Every(time.Second), 10),
		done:      make(chan struct{}),
	}
}

// Start begins reading events from the ring buffer in a goroutine.
// It returns immediately and processes events in the background until
// the context is cancelled or Stop is called.
func (s *Stream) Start(ctx context.Context) {
	s.started.Store(true)
	go func() {
		defer close(s.done)
		if err := s.Run(ctx); err != nil {
			s.logger.Error("event stream stopped", zap.Error(err))
		}
	}()
}

// Stop closes the reader. If the stream was started with Start, Stop also
// waits for the loop to return.
func (s *Stream) Stop() error {
	err := s.closeReader()
	if s.started.Load() {
		<-s.done
	}
	return err
}

func (s *Stream) closeReader() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.reader.Close()
	})
	return err
}

// Run is the main event loop. It blocks in Read until a record is available
// and returns nil once the reader is closed, which happens when ctx ends.
func (s *Stream) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		if err := s.closeReader(); err != nil {
			s.logger.Warn("closing ring buffer reader", zap.Error(err))
		}
	})
	defer stop()

	for {
		record, err := s.reader.Read()
		if err != nil {
			if errors.Is(err, ringbuf.ErrClosed) {
				return nil
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			s.metrics.ReadErrors.Inc()
			s.warn("reading from ring buffer", zap.Error(err))
			continue
		}

		s.metrics.RecordsRead.Inc()
		s.handle(record.RawSample)
	}
}

func (s *Stream) handle(raw []byte) {
	rec, err := bpf.UnmarshalExecRecord(raw)
	if err != nil {
		s.metrics.DecodeFailures.Inc()
		s.warn("discarding malformed record", zap.Int("size", len(raw)), zap.Error(err))
		return
	}

	ev, err := s.processor.Process(&rec)
	if err != nil {
		if errors.Is(err, eventprocessor.ErrExcluded) {
			s.metrics.Excluded.Inc()
			s.logger.Debug("excluded command reached userspace", zap.String("command", rec.CommandString()))
			return
		}
		s.metrics.DecodeFailures.Inc()
		s.warn("discarding record", zap.Uint32("pid", rec.Pid), zap.Error(err))
		return
	}

	s.sink.Insert(ev)
	s.metrics.Stored.Inc()

	s.logger.Debug("process execution captured",
		zap.Uint32("pid", ev.PID),
		zap.Uint32("ppid", ev.PPID),
		zap.Uint32("uid", ev.UID),
		zap.String("command", ev.Command),
		zap.Strings("args", ev.Args),
		zap.Time("timestamp", ev.Timestamp),
	)
}

func (s *Stream) warn(msg string, fields ...zap.Field) {
	if s.limiter.Allow() {
		s.logger.Warn(msg, fields...)
	}
}
