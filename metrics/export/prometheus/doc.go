// Package prometheus renders engine metrics in Prometheus text exposition
// format without pulling in a client library.
//
// [PrometheusExporter.Handler] serves a snapshot on each scrape; nothing
// is cached between scrapes.
//
// # What this package must NOT do
//
//   - Mutate engine state.
//   - Register anything globally.
package prometheus
