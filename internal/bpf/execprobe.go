package bpf

import (
	"errors"
	"fmt"

	"github.com/cilium/ebpf"
)

// Object names in exec_probe.bpf.c.
const (
	ProgramHandleExecve = "handle_execve"
	MapEvents           = "events"
	MapDropped          = "dropped"
	VariableExcluded    = "excluded"
)

// ExecProbeObjects contains all objects after they have been loaded into the kernel.
type ExecProbeObjects struct {
	ExecProbePrograms
	ExecProbeMaps
}

// Close releases programs and maps.
func (o *ExecProbeObjects) Close() error {
	return errors.Join(o.ExecProbePrograms.Close(), o.ExecProbeMaps.Close())
}

// ExecProbeMaps contains the loaded maps.
type ExecProbeMaps struct {
	Events  *ebpf.Map `ebpf:"events"`
	Dropped *ebpf.Map `ebpf:"dropped"`
	Heap    *ebpf.Map `ebpf:"heap"`
}

// Close releases the maps.
func (m *ExecProbeMaps) Close() error {
	return closeAll(m.Events, m.Dropped, m.Heap)
}

// ExecProbePrograms contains the loaded programs.
type ExecProbePrograms struct {
	HandleExecve *ebpf.Program `ebpf:"handle_execve"`
}

// Close releases the programs.
func (p *ExecProbePrograms) Close() error {
	return closeAll(p.HandleExecve)
}

// LoadExecProbeSpec parses the compiled probe object at path.
func LoadExecProbeSpec(path string) (*ebpf.CollectionSpec, error) {
	spec, err := ebpf.LoadCollectionSpec(path)
	if err != nil {
		return nil, fmt.Errorf("parsing probe object %s: %w", path, err)
	}
	for _, name := range []string{MapEvents, MapDropped} {
		if _, ok := spec.Maps[name]; !ok {
			return nil, fmt.Errorf("probe object %s: missing map %q", path, name)
		}
	}
	if _, ok := spec.Programs[ProgramHandleExecve]; !ok {
		return nil, fmt.Errorf("probe object %s: missing program %q", path, ProgramHandleExecve)
	}
	if _, ok := spec.Variables[VariableExcluded]; !ok {
		return nil, fmt.Errorf("probe object %s: missing variable %q", path, VariableExcluded)
	}
	return spec, nil
}

func closeAll(closers ...interface{ Close() error }) error {
	var errs []error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
