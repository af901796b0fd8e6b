package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/goToken/store"
)

// IssueFailureKind classifies issue flow failures for root-level mapping.
type IssueFailureKind int

const (
	IssueFailureNone IssueFailureKind = iota
	IssueFailureSubject
	IssueFailureSign
	IssueFailurePersist
)

// IssueResult carries either the issued pair or failure metadata.
type IssueResult struct {
	Failure IssueFailureKind
	Err     error
	Subject string
	Pair    MintedPair
}

// IssueStore is the persistence needed to issue a pair.
type IssueStore interface {
	Insert(ctx context.Context, rec store.Record) error
}

// IssueDeps captures issue flow dependencies.
type IssueDeps struct {
	Minter Minter
	Store  IssueStore
}

var errEmptySubject = errors.New("subject is empty")

// RunIssue mints an access/refresh pair for subject and persists the refresh
// record. The access token is never persisted; on any failure it is dropped.
func RunIssue(ctx context.Context, subject string, deps IssueDeps) IssueResult {
	if strings.TrimSpace(subject) == "" {
		return IssueResult{Failure: IssueFailureSubject, Err: errEmptySubject}
	}

	pair, err := deps.Minter.Mint(subject)
	if err != nil {
		return IssueResult{Failure: IssueFailureSign, Err: err, Subject: subject}
	}

	if err := deps.Store.Insert(ctx, pair.Record); err != nil {
		return IssueResult{Failure: IssueFailurePersist, Err: err, Subject: subject}
	}

	return IssueResult{Subject: subject, Pair: pair}
}
