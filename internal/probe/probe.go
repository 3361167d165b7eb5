// Package probe manages the lifecycle of the exec probe and its kernel attachment.
package probe

import (
	"errors"
	"fmt"
	"math/bits"
	"os"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/cilium/ebpf/ringbuf"
	"github.com/cilium/ebpf/rlimit"
	"go.uber.org/zap"

	"github.com/mrzor/exec-monitor/internal/bpf"
	"github.com/mrzor/exec-monitor/internal/exclusion"
)

// DefaultRingBufferSize is the size of the events ring buffer in bytes.
const DefaultRingBufferSize = 256 * 1024

// ErrRingBufferSize is returned for sizes the kernel would reject.
var ErrRingBufferSize = errors.New("invalid ring buffer size")

// Options configures Load.
type Options struct {
	// ObjectPath is the compiled exec_probe object.
	ObjectPath string
	// Tracefs overrides tracefs discovery when set.
	Tracefs string
	// Excluded is written into the probe before it is loaded. May be nil.
	Excluded       *exclusion.Set
	RingBufferSize int
}

// Probe owns the loaded objects and the tracepoint link.
type Probe struct {
	objs   bpf.ExecProbeObjects
	link   link.Link
	logger *zap.Logger
}

// Load checks preconditions and loads the probe into the kernel. The probe is
// not attached until Attach is called.
func Load(opts Options, logger *zap.Logger) (*Probe, error) {
	logger = logger.With(zap.String("component", "probe"))

	size := opts.RingBufferSize
	if size == 0 {
		size = DefaultRingBufferSize
	}
	if err := ValidateRingBufferSize(size); err != nil {
		return nil, err
	}

	candidates := DefaultTracefsPaths
	if opts.Tracefs != "" {
		candidates = []string{opts.Tracefs}
	}
	tracefs, err := FindTracefs(candidates...)
	if err != nil {
		return nil, err
	}
	logger.Debug("found tracefs", zap.String("path", tracefs))

	if err := rlimit.RemoveMemlock(); err != nil {
		return nil, fmt.Errorf("removing memlock rlimit: %w", err)
	}

	spec, err := bpf.LoadExecProbeSpec(opts.ObjectPath)
	if err != nil {
		return nil, err
	}
	if err := spec.Variables[bpf.VariableExcluded].Set(opts.Excluded.Kernel()); err != nil {
		return nil, fmt.Errorf("writing exclusion set: %w", err)
	}
	spec.Maps[bpf.MapEvents].MaxEntries = uint32(size) //nolint:gosec // validated above

	p := &Probe{logger: logger}
	if err := spec.LoadAndAssign(&p.objs, nil); err != nil {
		var verr *ebpf.VerifierError
		if errors.As(err, &verr) {
			logger.Error("verifier rejected probe", zap.String("log", fmt.Sprintf("%+v", verr)))
		}
		return nil, fmt.Errorf("loading probe objects: %w", err)
	}

	logger.Info("probe loaded",
		zap.String("object", opts.ObjectPath),
		zap.Int("ringbuf_size", size),
		zap.Strings("excluded", opts.Excluded.Names()),
	)
	return p, nil
}

// Attach attaches the probe to the sys_enter_execve tracepoint.
func (p *Probe) Attach() error {
	l, err := link.Tracepoint("syscalls", "sys_enter_execve", p.objs.HandleExecve, nil)
	if err != nil {
		return fmt.Errorf("attaching sys_enter_execve tracepoint: %w", err)
	}
	p.link = l
	return nil
}

// OpenRingBuffer opens and returns a ring buffer reader for receiving events.
func (p *Probe) OpenRingBuffer() (*ringbuf.Reader, error) {
	rd, err := ringbuf.NewReader(p.objs.Events)
	if err != nil {
		return nil, fmt.Errorf("opening ring buffer: %w", err)
	}
	return rd, nil
}

// DroppedEvents returns the number of records the probe could not submit,
// summed over all CPUs.
func (p *Probe) DroppedEvents() (uint64, error) {
	var perCPU []uint64
	if err := p.objs.Dropped.Lookup(uint32(0), &perCPU); err != nil {
		return 0, fmt.Errorf("reading drop counter: %w", err)
	}
	return sum(perCPU), nil
}

// Close detaches the probe and releases all kernel objects.
func (p *Probe) Close() error {
	var errs []error

	if p.link != nil {
		if err := p.link.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing execve link: %w", err))
		}
	}
	if err := p.objs.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing probe objects: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during cleanup: %w", errors.Join(errs...))
	}
	return nil
}

// ValidateRingBufferSize reports whether size is a power of two and a
// multiple of the page size.
func ValidateRingBufferSize(size int) error {
	page := os.Getpagesize()
	if size <= 0 || bits.OnesCount(uint(size)) != 1 || size%page != 0 {
		return fmt.Errorf("%w: %d must be a power of two and a multiple of %d", ErrRingBufferSize, size, page)
	}
	return nil
}

func sum(values []uint64) uint64 {
	var total uint64
	for _, v := range values {
		total += v
	}
	return total
}
