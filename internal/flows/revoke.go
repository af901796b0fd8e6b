package flows

import (
	"context"

	"github.com/MrEthical07/goToken/store"
)

// RevokeStore is the persistence needed to revoke a token.
type RevokeStore interface {
	RevokeIfActive(ctx context.Context, token string) (store.RevokeResult, error)
}

// RevokeDeps captures revoke flow dependencies.
type RevokeDeps struct {
	Store RevokeStore
}

// RevokeFlowResult reports the store outcome of a revocation.
type RevokeFlowResult struct {
	Result store.RevokeResult
	Err    error
}

// RunRevoke marks token revoked. It does not verify the signature: anything
// the store does not hold as an active record is simply nothing to revoke.
func RunRevoke(ctx context.Context, token string, deps RevokeDeps) RevokeFlowResult {
	if token == "" {
		return RevokeFlowResult{Result: store.RevokeNotFound}
	}
	res, err := deps.Store.RevokeIfActive(ctx, token)
	return RevokeFlowResult{Result: res, Err: err}
}
