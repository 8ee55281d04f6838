// Package token signs and verifies the compact claim bundles issued by the
// engine. Access and refresh tokens share one claim layout; the "typ" claim
// distinguishes them and every token carries its session id, token family
// id, device-fingerprint hash, and a unique token id.
//
// # Architecture boundaries
//
// This package owns signing, parsing, and claim validation only. Blacklist
// membership, session liveness, and rotation state live in the engine and
// its stores — a token that parses here is not necessarily still accepted.
//
// # What this package must NOT do
//
//   - Perform any Redis or network I/O.
//   - Fall back to a generated signing key when none is configured;
//     [NewManager] rejects that as a configuration error.
package token
