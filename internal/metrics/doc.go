// Package metrics provides lock-free counters and a latency histogram for
// engine observability.
//
// Counters live in cache-line-padded uint64 slots and are incremented
// atomically. The validation latency histogram uses 8 fixed buckets
// (≤5ms … +Inf). Both are allocation-free on the write path.
//
// This package owns metric storage and snapshot creation only. Export
// (OTel) lives under metrics/export/ and reads Snapshot values; nothing
// here performs I/O.
package metrics
