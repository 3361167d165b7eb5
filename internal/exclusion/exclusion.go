// Package exclusion holds the fixed-capacity list of command names the
// probe drops before emitting an event.
//
// The set mirrors the probe's constraints: at most MaxEntries names, each
// stored in a NUL-padded buffer of bpf.CommandLen bytes, matched by a
// bounded linear scan. A Set is immutable once built.
package exclusion

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/mrzor/exec-monitor/internal/bpf"
)

// MaxEntries is the capacity of the set.
const MaxEntries = bpf.MaxExcluded

var (
	// ErrTooMany is returned when more than MaxEntries names are configured.
	ErrTooMany = errors.New("too many excluded commands")
	// ErrInvalidEntry is returned for names the probe could never match.
	ErrInvalidEntry = errors.New("invalid excluded command")
)

// Entry is a NUL-padded command name.
type Entry [bpf.CommandLen]byte

// String returns the name without padding.
func (e Entry) String() string {
	for i, c := range e {
		if c == 0 {
			return string(e[:i])
		}
	}
	return string(e[:])
}

// Set is an ordered, fixed-capacity list of excluded command names.
type Set struct {
	count   int
	entries [MaxEntries]Entry
}

// KernelSet matches struct exclusion_set from exec_probe.h.
type KernelSet struct {
	Count   uint32
	Pad     uint32
	Entries [MaxEntries]Entry
}

// New builds a Set from names. Order is preserved.
func New(names []string) (*Set, error) {
	if len(names) > MaxEntries {
		return nil, fmt.Errorf("%w: %d given, at most %d allowed", ErrTooMany, len(names), MaxEntries)
	}

	s := &Set{}
	for _, name := range names {
		if err := validate(name); err != nil {
			return nil, err
		}
		if s.Contains(name) {
			return nil, fmt.Errorf("%w: %q listed twice", ErrInvalidEntry, name)
		}
		copy(s.entries[s.count][:], name)
		s.count++
	}
	return s, nil
}

func validate(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidEntry)
	case len(name) >= bpf.CommandLen:
		return fmt.Errorf("%w: %q is longer than %d bytes", ErrInvalidEntry, name, bpf.CommandLen-1)
	case strings.ContainsRune(name, '/'):
		return fmt.Errorf("%w: %q must be a base name", ErrInvalidEntry, name)
	case strings.IndexByte(name, 0) >= 0:
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidEntry, name)
	case strings.IndexFunc(name, unicode.IsSpace) >= 0:
		return fmt.Errorf("%w: %q contains whitespace", ErrInvalidEntry, name)
	}
	return nil
}

// Contains reports whether command exactly matches an entry.
func (s *Set) Contains(command string) bool {
	if s == nil || len(command) >= bpf.CommandLen {
		return false
	}
	var key Entry
	copy(key[:], command)
	for i := 0; i < MaxEntries; i++ {
		if i >= s.count {
			break
		}
		if s.entries[i] == key {
			return true
		}
	}
	return false
}

// Len returns the number of entries.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return s.count
}

// Names returns the entries in configuration order.
func (s *Set) Names() []string {
	names := make([]string, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		names = append(names, s.entries[i].String())
	}
	return names
}

// Kernel returns the value written into the probe's excluded constant.
func (s *Set) Kernel() KernelSet {
	ks := KernelSet{Count: uint32(s.Len())}
	if s != nil {
		ks.Entries = s.entries
	}
	return ks
}
