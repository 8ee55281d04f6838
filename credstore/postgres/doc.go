// Package postgres provides a PostgreSQL-backed credential store.
//
// The store persists only protection state: failed-attempt counts, lock
// windows, and lifecycle status. Credential verification material never
// passes through it. Identifier lookup resolves any of an account's
// alternate keys (username, email, phone) to the same row, so attempt
// counting cannot be dodged by switching identifiers.
package postgres
