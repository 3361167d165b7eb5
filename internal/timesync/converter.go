package timesync

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Converter handles conversion from kernel monotonic timestamps to wall-clock time.
type Converter struct {
	bootTime time.Time
}

// NewConverter creates a new time converter.
// The offset is taken from CLOCK_MONOTONIC, the clock behind bpf_ktime_get_ns.
// If that fails it falls back to btime from /proc/stat, which is only
// accurate to the second and drifts across suspend.
func NewConverter() (*Converter, error) {
	bootTime, err := monotonicBootTime()
	if err == nil {
		return &Converter{bootTime: bootTime}, nil
	}

	bootTime, statErr := getSystemBootTime("/proc/stat")
	if statErr != nil {
		return nil, fmt.Errorf("determining boot time: %w", statErr)
	}
	return &Converter{bootTime: bootTime}, nil
}

// NewConverterAt returns a converter anchored at a fixed boot time.
func NewConverterAt(bootTime time.Time) *Converter {
	return &Converter{bootTime: bootTime}
}

// MonotonicToWallClock converts a monotonic timestamp (nanoseconds since boot) to wall-clock time.
func (c *Converter) MonotonicToWallClock(monotonicNanos uint64) time.Time {
	//nolint:gosec // uint64 to int64 conversion for time.Duration is safe for reasonable timestamps
	return c.bootTime.Add(time.Duration(monotonicNanos))
}

// BootTime returns the system boot time used for conversions.
func (c *Converter) BootTime() time.Time {
	return c.bootTime
}

func monotonicBootTime() (time.Time, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return time.Time{}, fmt.Errorf("clock_gettime: %w", err)
	}
	now := time.Now()
	return now.Add(-time.Duration(ts.Nano())), nil
}

// getSystemBootTime reads the system boot time from a /proc/stat formatted file.
func getSystemBootTime(path string) (time.Time, error) {
	file, err := os.Open(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		_ = file.Close() //nolint:errcheck // Read-only file, defer cleanup
	}()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "btime ") {
			fields := strings.Fields(line)
			if len(fields) >= 2 {
				bootTimeSec, err := strconv.ParseInt(fields[1], 10, 64)
				if err != nil {
					return time.Time{}, fmt.Errorf("failed to parse btime: %w", err)
				}
				return time.Unix(bootTimeSec, 0), nil
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return time.Time{}, fmt.Errorf("error reading %s: %w", path, err)
	}

	return time.Time{}, fmt.Errorf("btime not found in %s", path)
}
