// Package internal holds small helpers shared by the engine's internal
// packages: device-fingerprint hashing and id generation. Anything with a
// real surface lives in a named subpackage.
package internal
