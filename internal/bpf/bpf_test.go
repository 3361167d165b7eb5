package bpf

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(pid, ppid, uid uint32, cmd string, ts uint64, args ...string) ExecRecord {
	r := ExecRecord{Pid: pid, Ppid: ppid, Uid: uid, Timestamp: ts}
	copy(r.Command[:], cmd)
	for i, a := range args {
		copy(r.Args[i][:], a)
	}
	return r
}

func TestExecRecordSizeMatchesLayout(t *testing.T) {
	assert.Equal(t, ExecRecordSize, binary.Size(ExecRecord{}))
}

func TestUnmarshalExecRecord(t *testing.T) {
	want := newRecord(4242, 1, 1000, "vim", 1_500_000_123, "vim", "/etc/hosts")
	want.Flags = FlagArgsTruncated

	raw, err := want.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, raw, ExecRecordSize)

	got, err := UnmarshalExecRecord(raw)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "vim", got.CommandString())
	assert.Equal(t, []string{"vim", "/etc/hosts"}, got.ArgStrings())
	assert.True(t, got.Truncated())
}

func TestUnmarshalExecRecord_FieldOffsets(t *testing.T) {
	raw := make([]byte, ExecRecordSize)
	binary.LittleEndian.PutUint32(raw[0:], 7)
	binary.LittleEndian.PutUint32(raw[4:], 8)
	binary.LittleEndian.PutUint32(raw[8:], 9)
	copy(raw[16:], "bash")
	binary.LittleEndian.PutUint64(raw[80:], 99)
	copy(raw[88+ArgLen:], "-c")

	got, err := UnmarshalExecRecord(raw)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), got.Pid)
	assert.Equal(t, uint32(8), got.Ppid)
	assert.Equal(t, uint32(9), got.Uid)
	assert.Equal(t, "bash", got.CommandString())
	assert.Equal(t, uint64(99), got.Timestamp)
	// argv[0] is empty so capture stops before "-c"
	assert.Empty(t, got.ArgStrings())
	assert.False(t, got.Truncated())
}

func TestUnmarshalExecRecord_WrongSize(t *testing.T) {
	for _, n := range []int{0, 1, 80, ExecRecordSize - 1, ExecRecordSize + 1, 2 * ExecRecordSize} {
		_, err := UnmarshalExecRecord(make([]byte, n))
		require.Error(t, err, "size %d", n)
		assert.True(t, errors.Is(err, ErrRecordSize), "size %d", n)
	}
}

func TestCommandStringWithoutNUL(t *testing.T) {
	var r ExecRecord
	for i := range r.Command {
		r.Command[i] = 'a'
	}
	assert.Len(t, r.CommandString(), CommandLen)
}
