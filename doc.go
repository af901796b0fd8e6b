// Package goToken issues, renews and revokes signed access/refresh token pairs.
//
// Access tokens are short-lived HS512 JWTs that are never persisted. Refresh
// tokens are HS512 JWTs signed with a separate secret and recorded in a
// revocation store; each one can be exchanged exactly once.
//
// The [Engine] is built with [Builder] and is safe for concurrent use. It holds
// only immutable configuration; all mutable state lives in the store.
//
// # Renewal
//
// Renew verifies the presented refresh token, always consults the store, then
// rotates: the old token is revoked and a new pair is persisted. Stores that
// implement store.Rotator do this in one atomic step. Other stores take two
// steps (insert new, revoke old); if the second step fails the caller receives
// the new pair together with [ErrRotationPartialFailure].
//
// Under N concurrent renewals of one token exactly one succeeds; the rest get
// [ErrUnauthorized].
//
// # Architecture boundaries
//
// goToken is the public surface: [Engine], [Builder], [Config], errors, metrics
// and audit types. Orchestration lives in internal/flows, token crypto in
// jwt, persistence in store.
package goToken
