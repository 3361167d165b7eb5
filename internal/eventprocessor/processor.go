package eventprocessor

import (
	"errors"
	"time"

	"github.com/mrzor/exec-monitor/internal/bpf"
	"github.com/mrzor/exec-monitor/internal/exclusion"
	"github.com/mrzor/exec-monitor/internal/execevent"
)

// ErrExcluded is returned for records whose command is in the exclusion set.
var ErrExcluded = errors.New("command is excluded")

// TimeConverter converts kernel timestamps to wall-clock time.
type TimeConverter interface {
	MonotonicToWallClock(monotonicNanos uint64) time.Time
}

// UserResolver maps a uid to a user name.
type UserResolver interface {
	Username(uid uint32) string
}

// Processor builds events from raw records.
type Processor struct {
	converter TimeConverter
	users     UserResolver
	excluded  *exclusion.Set
}

// NewProcessor creates a new event processor. users may be nil.
func NewProcessor(converter TimeConverter, users UserResolver, excluded *exclusion.Set) *Processor {
	return &Processor{
		converter: converter,
		users:     users,
		excluded:  excluded,
	}
}

// Process converts rec into an Event.
func (p *Processor) Process(rec *bpf.ExecRecord) (execevent.Event, error) {
	command := rec.CommandString()
	if p.excluded.Contains(command) {
		return execevent.Event{}, ErrExcluded
	}

	ev := execevent.Event{
		PID:       rec.Pid,
		PPID:      rec.Ppid,
		UID:       rec.Uid,
		Command:   command,
		Args:      rec.ArgStrings(),
		Truncated: rec.Truncated(),
		Timestamp: p.converter.MonotonicToWallClock(rec.Timestamp),
	}
	if p.users != nil {
		ev.User = p.users.Username(rec.Uid)
	}
	return ev, nil
}
