package flows

import (
	"context"
	"errors"
	"strings"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureInvalidCredentials
	// LoginFailureValidator: the credential backend itself failed.
	LoginFailureValidator
	LoginFailureIssue
)

// LoginResult carries the issue result or failure metadata.
type LoginResult struct {
	Failure LoginFailureKind
	Err     error
	Subject string
	Issue   IssueResult
}

// CredentialValidator resolves identifier/secret to a principal.
type CredentialValidator interface {
	ValidateCredentials(ctx context.Context, identifier, secret string) (string, error)
}

// LoginRateLimiter throttles failed logins.
type LoginRateLimiter interface {
	CheckLogin(ctx context.Context, identifier, ip string) error
	IncrementLogin(ctx context.Context, identifier, ip string) error
	ResetLogin(ctx context.Context, identifier string) error
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Validator CredentialValidator
	// InvalidCredentials is the sentinel validators return for a bad
	// identifier/secret; any other error counts as a backend failure.
	InvalidCredentials error
	RateLimiter        LoginRateLimiter
	Issue              IssueDeps
	Warn               Warnf
}

// RunLogin validates credentials and issues a pair for the returned principal.
func RunLogin(ctx context.Context, identifier, secret, clientIP string, deps LoginDeps) LoginResult {
	identifier = strings.TrimSpace(identifier)

	if deps.RateLimiter != nil {
		if err := deps.RateLimiter.CheckLogin(ctx, identifier, clientIP); err != nil {
			return LoginResult{Failure: LoginFailureRateLimited, Err: err}
		}
	}

	principal, err := deps.Validator.ValidateCredentials(ctx, identifier, secret)
	if err == nil && principal == "" {
		err = deps.InvalidCredentials
	}
	if err != nil {
		if deps.InvalidCredentials == nil || !errors.Is(err, deps.InvalidCredentials) {
			return LoginResult{Failure: LoginFailureValidator, Err: err}
		}
		if deps.RateLimiter != nil {
			if incErr := deps.RateLimiter.IncrementLogin(ctx, identifier, clientIP); incErr != nil {
				deps.Warn.call(ctx, "login throttle increment failed", "error", incErr)
			}
		}
		return LoginResult{Failure: LoginFailureInvalidCredentials, Err: err}
	}

	if deps.RateLimiter != nil {
		if resetErr := deps.RateLimiter.ResetLogin(ctx, identifier); resetErr != nil {
			deps.Warn.call(ctx, "login throttle reset failed", "error", resetErr)
		}
	}

	issued := RunIssue(ctx, principal, deps.Issue)
	if issued.Failure != IssueFailureNone {
		return LoginResult{Failure: LoginFailureIssue, Err: issued.Err, Subject: principal, Issue: issued}
	}
	return LoginResult{Subject: principal, Issue: issued}
}
