// Package flows contains the orchestration for every token Engine operation.
//
// Each Run function (RunIssue, RunRenew, RunRevoke, RunLogin) takes a typed
// dependency struct and returns a result carrying a failure kind instead of a
// host-level error. The root package maps kinds to its sentinel errors,
// metrics and audit events, which keeps this package free of goToken imports.
//
// Flows hold no state between calls and own none of their dependencies.
package flows
