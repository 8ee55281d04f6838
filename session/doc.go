// Package session tracks active sessions per principal in Redis and owns
// the refresh-token family state that makes rotation single-use.
//
// Each session is stored as a versioned binary blob under its own key, a
// per-principal set indexes session ids, and each token family keeps a
// single "current refresh token id" key. Rotating a family is a Lua
// compare-and-swap on that key: a stale refresh token loses the swap and is
// reported as reuse.
//
// # Expiry
//
// All state expires through Redis TTLs. Reads prune dead index entries
// lazily; no background sweeper exists.
//
// # What this package must NOT do
//
//   - Sign or parse tokens.
//   - Decide eviction or reuse policy beyond the mechanics exposed here.
package session
