// Package timesync converts the monotonic timestamps written by the exec
// probe into wall-clock time.
//
// bpf_ktime_get_ns reports nanoseconds of CLOCK_MONOTONIC. The converter
// captures the wall-clock instant at which that clock read zero once at
// startup and adds each event's offset to it.
package timesync
