// Package execevent defines the decoded process-execution event served by
// the query API.
package execevent

import "time"

// Event is one observed execve call.
type Event struct {
	PID       uint32    `json:"pid"`
	PPID      uint32    `json:"ppid"`
	UID       uint32    `json:"uid"`
	User      string    `json:"user,omitempty"`
	Command   string    `json:"command"`
	Args      []string  `json:"args,omitempty"`
	Truncated bool      `json:"truncated,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Clone returns a copy that shares no memory with e.
func (e Event) Clone() Event {
	if e.Args != nil {
		e.Args = append([]string(nil), e.Args...)
	}
	return e
}
