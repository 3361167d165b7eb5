// Package eventprocessor turns decoded probe records into execevent.Event
// values.
//
// Processor is the enrichment step between the ring buffer consumer and the
// store:
//   - converts the kernel monotonic timestamp to wall-clock time (timesync)
//   - resolves the uid to a user name (usercache)
//   - re-checks the exclusion set, so a record that reached userspace for an
//     excluded command is still never stored
//
// It holds no per-event state and is safe for use from a single goroutine.
package eventprocessor
