// Package internaldefs holds the stable metric name and bucket boundary
// definitions shared by exporter implementations.
//
// Definitions live here so the Prometheus and OTel exporters emit
// identical metric names; a change in this package affects both at once.
//
// # What this package must NOT do
//
//   - Import any exporter package.
//   - Perform I/O.
package internaldefs
