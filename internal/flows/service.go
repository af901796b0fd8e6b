package flows

import "context"

// Service is the flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired.
func (s Service) Initialized() bool {
	return s.deps.Renew.Verifier != nil && s.deps.Renew.Store != nil
}

func (s Service) Issue(ctx context.Context, subject string) IssueResult {
	return RunIssue(ctx, subject, s.deps.Issue)
}

func (s Service) Renew(ctx context.Context, refreshToken string) RenewResult {
	return RunRenew(ctx, refreshToken, s.deps.Renew)
}

func (s Service) Revoke(ctx context.Context, refreshToken string) RevokeFlowResult {
	return RunRevoke(ctx, refreshToken, s.deps.Revoke)
}

// Login requires a configured validator; callers check for nil first.
func (s Service) Login(ctx context.Context, identifier, secret, clientIP string) LoginResult {
	return RunLogin(ctx, identifier, secret, clientIP, s.deps.Login)
}

// HasValidator reports whether login is wired.
func (s Service) HasValidator() bool {
	return s.deps.Login.Validator != nil
}
