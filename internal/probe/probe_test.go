package probe

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestValidateRingBufferSize(t *testing.T) {
	page := os.Getpagesize()

	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{name: "default", size: DefaultRingBufferSize},
		{name: "one page", size: page},
		{name: "many pages", size: page * 64},
		{name: "zero", size: 0, wantErr: true},
		{name: "negative", size: -page, wantErr: true},
		{name: "not power of two", size: page * 3, wantErr: true},
		{name: "below page size", size: page / 2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRingBufferSize(tt.size)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrRingBufferSize))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFindTracefsRejectsOrdinaryDirs(t *testing.T) {
	dir := t.TempDir()

	_, err := FindTracefs(dir, filepath.Join(dir, "missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTracefsUnavailable))
	assert.Contains(t, err.Error(), dir)
}

func TestIsTracingFS(t *testing.T) {
	assert.True(t, isTracingFS(tracefsMagic))
	assert.True(t, isTracingFS(debugfsMagic))
	assert.False(t, isTracingFS(0xEF53)) // ext4
}

func TestLoadFailsBeforeKernelOnBadInput(t *testing.T) {
	logger := zaptest.NewLogger(t)

	_, err := Load(Options{ObjectPath: "unused", RingBufferSize: 1000}, logger)
	assert.True(t, errors.Is(err, ErrRingBufferSize))

	_, err = Load(Options{ObjectPath: "unused", Tracefs: t.TempDir()}, logger)
	assert.True(t, errors.Is(err, ErrTracefsUnavailable))
}

func TestSum(t *testing.T) {
	assert.Equal(t, uint64(0), sum(nil))
	assert.Equal(t, uint64(6), sum([]uint64{1, 2, 3}))
}
