// Package bpf provides Go bindings for the exec probe and the layout of the
// records it writes to the ring buffer.
package bpf

import (
	"encoding/binary"
	"errors"
	"fmt"
)

//go:generate go run github.com/cilium/ebpf/cmd/bpf2go -cc clang -cflags "-O2 -g -Wall" -target bpfel -no-global-types execProbe ./exec_probe.bpf.c -- -I. -I/usr/include

// ObjectFile is the name bpf2go gives the compiled probe.
const ObjectFile = "execprobe_bpfel.o"

// Sizes and flags shared with exec_probe.h.
const (
	CommandLen     = 64
	MaxArgs        = 4
	ArgLen         = 32
	MaxExcluded    = 10
	ExecRecordSize = 216

	FlagCommandTruncated uint32 = 1 << 0
	FlagArgsTruncated    uint32 = 1 << 1
)

// ErrRecordSize is returned for samples that are not exactly ExecRecordSize bytes.
var ErrRecordSize = errors.New("unexpected exec record size")

// ExecRecord matches struct exec_event from exec_probe.h.
type ExecRecord struct {
	Pid       uint32
	Ppid      uint32
	Uid       uint32 //nolint:revive // Matches kernel struct field naming
	Flags     uint32
	Command   [CommandLen]byte
	Timestamp uint64 // ns since boot, CLOCK_MONOTONIC
	Args      [MaxArgs][ArgLen]byte
}

// UnmarshalExecRecord decodes a raw ring buffer sample. The sample must be
// exactly ExecRecordSize bytes long.
func UnmarshalExecRecord(raw []byte) (ExecRecord, error) {
	var r ExecRecord
	if len(raw) != ExecRecordSize {
		return r, fmt.Errorf("%w: got %d bytes, want %d", ErrRecordSize, len(raw), ExecRecordSize)
	}

	le := binary.LittleEndian
	r.Pid = le.Uint32(raw[0:4])
	r.Ppid = le.Uint32(raw[4:8])
	r.Uid = le.Uint32(raw[8:12])
	r.Flags = le.Uint32(raw[12:16])
	copy(r.Command[:], raw[16:80])
	r.Timestamp = le.Uint64(raw[80:88])
	for i := 0; i < MaxArgs; i++ {
		off := 88 + i*ArgLen
		copy(r.Args[i][:], raw[off:off+ArgLen])
	}
	return r, nil
}

// MarshalBinary encodes the record in the kernel layout.
func (r *ExecRecord) MarshalBinary() ([]byte, error) {
	buf := make([]byte, ExecRecordSize)
	le := binary.LittleEndian
	le.PutUint32(buf[0:4], r.Pid)
	le.PutUint32(buf[4:8], r.Ppid)
	le.PutUint32(buf[8:12], r.Uid)
	le.PutUint32(buf[12:16], r.Flags)
	copy(buf[16:80], r.Command[:])
	le.PutUint64(buf[80:88], r.Timestamp)
	for i := 0; i < MaxArgs; i++ {
		off := 88 + i*ArgLen
		copy(buf[off:off+ArgLen], r.Args[i][:])
	}
	return buf, nil
}

// CommandString returns the command up to the first NUL.
func (r *ExecRecord) CommandString() string {
	return cstring(r.Command[:])
}

// ArgStrings returns the captured argv entries. Capture stops at the first
// empty slot, matching the probe which stops at the first NULL argv pointer.
func (r *ExecRecord) ArgStrings() []string {
	var args []string
	for i := range r.Args {
		if r.Args[i][0] == 0 {
			break
		}
		args = append(args, cstring(r.Args[i][:]))
	}
	return args
}

// Truncated reports whether the probe had to cut the command or argv.
func (r *ExecRecord) Truncated() bool {
	return r.Flags&(FlagCommandTruncated|FlagArgsTruncated) != 0
}

func cstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
