package probe

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrTracefsUnavailable is returned when no tracing filesystem is mounted.
var ErrTracefsUnavailable = errors.New("tracefs is not mounted")

// DefaultTracefsPaths are tried in order.
var DefaultTracefsPaths = []string{"/sys/kernel/tracing", "/sys/kernel/debug/tracing"}

const (
	tracefsMagic = 0x74726163
	debugfsMagic = 0x64626720
)

// FindTracefs returns the first candidate that is a tracefs or debugfs mount.
func FindTracefs(candidates ...string) (string, error) {
	for _, path := range candidates {
		var st unix.Statfs_t
		if err := unix.Statfs(path, &st); err != nil {
			continue
		}
		if isTracingFS(int64(st.Type)) { //nolint:unconvert // Type width differs by arch
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrTracefsUnavailable, strings.Join(candidates, ", "))
}

func isTracingFS(magic int64) bool {
	return magic == tracefsMagic || magic == debugfsMagic
}
