// Package audit is the security audit trail: severity-tagged events fanned
// out to pluggable sinks through a buffered dispatcher.
//
// Emitting is fire-and-forget. Sinks swallow their own failures; nothing
// in this package ever propagates an error back into the business logic
// that emitted the event.
//
// # Sinks
//
//   - [ZapSink] writes one structured log line per event at the
//     severity-appropriate level.
//   - [RedisSink] keeps a keyed copy per event id for point lookups and an
//     append-only per-day-per-type list for time-series queries, each with
//     its own retention TTL.
//   - [SentrySink] forwards critical events to an alerting backend.
//   - [ChannelSink] and [JSONWriterSink] exist for embedding and tests.
//   - [MultiSink] fans out to several of the above.
package audit
