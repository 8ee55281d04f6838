// Package middleware exposes HTTP adapters over the authguard engine.
//
// # Guards
//
//   - [Authenticate] — bearer token + session check against Redis.
//   - [AuthenticateStateless] — signature and claims only, no Redis call.
//   - [RateLimit] — sliding-window admission per rate category.
//
// Each guard reads the Authorization header, asks the engine, and injects
// the validated [authguard.SecurityContext] into the request context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into engine calls. It does not
// parse tokens, touch Redis, or make protection decisions itself.
package middleware
