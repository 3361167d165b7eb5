package eventprocessor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrzor/exec-monitor/internal/bpf"
	"github.com/mrzor/exec-monitor/internal/exclusion"
	"github.com/mrzor/exec-monitor/internal/timesync"
)

type staticUsers map[uint32]string

func (s staticUsers) Username(uid uint32) string { return s[uid] }

func record(pid uint32, cmd string, args ...string) *bpf.ExecRecord {
	r := &bpf.ExecRecord{Pid: pid, Ppid: 1, Uid: 1000, Timestamp: 2_000_000_000}
	copy(r.Command[:], cmd)
	for i, a := range args {
		copy(r.Args[i][:], a)
	}
	return r
}

func TestProcess(t *testing.T) {
	boot := time.Unix(1_700_000_000, 0)
	set, err := exclusion.New([]string{"ls"})
	require.NoError(t, err)

	p := NewProcessor(timesync.NewConverterAt(boot), staticUsers{1000: "alice"}, set)

	ev, err := p.Process(record(42, "vim", "vim", "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, uint32(42), ev.PID)
	assert.Equal(t, uint32(1), ev.PPID)
	assert.Equal(t, uint32(1000), ev.UID)
	assert.Equal(t, "alice", ev.User)
	assert.Equal(t, "vim", ev.Command)
	assert.Equal(t, []string{"vim", "notes.txt"}, ev.Args)
	assert.False(t, ev.Truncated)
	assert.True(t, ev.Timestamp.Equal(boot.Add(2*time.Second)))
}

func TestProcess_Excluded(t *testing.T) {
	set, err := exclusion.New([]string{"ls", "cat"})
	require.NoError(t, err)
	p := NewProcessor(timesync.NewConverterAt(time.Unix(0, 0)), nil, set)

	for _, cmd := range []string{"ls", "cat"} {
		_, err := p.Process(record(1, cmd))
		assert.True(t, errors.Is(err, ErrExcluded), cmd)
	}
	for _, cmd := range []string{"vim", "bash"} {
		ev, err := p.Process(record(1, cmd))
		require.NoError(t, err, cmd)
		assert.Equal(t, cmd, ev.Command)
		assert.Empty(t, ev.User)
	}
}

func TestProcess_NilExclusionSet(t *testing.T) {
	p := NewProcessor(timesync.NewConverterAt(time.Unix(0, 0)), nil, nil)
	_, err := p.Process(record(1, "ls"))
	assert.NoError(t, err)
}
