// Package middleware exposes HTTP adapters for goToken.Engine.
//
// # Guards
//
//   - [RequireAccess]: stateless access-token check; the store is never touched.
//   - [ClientIP]: records the caller's address for throttling and audit.
//
// RequireAccess reads the Authorization header, calls Engine.VerifyAccess, and
// injects the verified claims into the request context.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to Engine).
//   - Accept refresh tokens as bearer credentials.
package middleware
