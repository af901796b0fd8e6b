// Package store persists refresh-token records and their revocation state.
//
// # Model
//
// Every issued refresh token has exactly one [Record], keyed by the signed token string.
// Records are soft-revoked: the Revoked flag moves from false to true once and is never
// cleared, and the engine never deletes rows. A record stops being usable once it is
// revoked or its stored ExpiresAt has passed; see [Record.Active].
//
// # Backends
//
//   - [RedisStore]: Lua scripts make revoke and rotate single atomic steps.
//   - [PostgresStore]: row locks inside one transaction; schema managed by goose.
//   - [MemoryStore]: mutex-guarded map for tests and local development.
//
// # Architecture boundaries
//
// This package does NOT parse or verify tokens and does not import goToken or jwt.
// Infrastructure faults are wrapped with [ErrPersistence] so callers can tell them apart
// from the logical outcomes [ErrNotFound], [ErrConflict] and [RevokeAlreadyRevoked].
package store
