package jwt

import "errors"

// Reason identifies why a token failed verification.
type Reason uint8

const (
	// ReasonMalformed covers undecodable tokens and missing required structure.
	ReasonMalformed Reason = iota + 1
	// ReasonBadSignature means the MAC did not match the secret for the requested kind.
	ReasonBadSignature
	// ReasonExpired means now is past exp + skew.
	ReasonExpired
	// ReasonNotYetValid means now is before nbf - skew.
	ReasonNotYetValid
	// ReasonWrongIssuer means iss differs from the configured issuer.
	ReasonWrongIssuer
	// ReasonWrongAudience means aud does not contain the configured audience.
	ReasonWrongAudience
	// ReasonWrongType means token_type differs from the requested kind.
	ReasonWrongType
)

var (
	ErrMalformed     = errors.New("token malformed")
	ErrBadSignature  = errors.New("token signature invalid")
	ErrExpired       = errors.New("token expired")
	ErrNotYetValid   = errors.New("token not yet valid")
	ErrWrongIssuer   = errors.New("token issuer mismatch")
	ErrWrongAudience = errors.New("token audience mismatch")
	ErrWrongType     = errors.New("token type mismatch")
)

func (r Reason) String() string {
	switch r {
	case ReasonMalformed:
		return "malformed"
	case ReasonBadSignature:
		return "bad_signature"
	case ReasonExpired:
		return "expired"
	case ReasonNotYetValid:
		return "not_yet_valid"
	case ReasonWrongIssuer:
		return "wrong_issuer"
	case ReasonWrongAudience:
		return "wrong_audience"
	case ReasonWrongType:
		return "wrong_type"
	default:
		return "unknown"
	}
}

func (r Reason) sentinel() error {
	switch r {
	case ReasonBadSignature:
		return ErrBadSignature
	case ReasonExpired:
		return ErrExpired
	case ReasonNotYetValid:
		return ErrNotYetValid
	case ReasonWrongIssuer:
		return ErrWrongIssuer
	case ReasonWrongAudience:
		return ErrWrongAudience
	case ReasonWrongType:
		return ErrWrongType
	default:
		return ErrMalformed
	}
}

// VerificationError is returned by Manager.Verify. errors.Is matches both
// the reason sentinel (ErrExpired, ...) and the underlying parser error.
type VerificationError struct {
	Reason Reason
	Err    error
}

func newVerificationError(reason Reason, err error) *VerificationError {
	return &VerificationError{Reason: reason, Err: err}
}

func (e *VerificationError) Error() string {
	if e.Err == nil {
		return e.Reason.sentinel().Error()
	}
	return e.Reason.sentinel().Error() + ": " + e.Err.Error()
}

func (e *VerificationError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason.sentinel()}
	}
	return []error{e.Reason.sentinel(), e.Err}
}

// ReasonOf extracts the verification reason from err, or 0 when err does not
// carry a *VerificationError.
func ReasonOf(err error) Reason {
	var verr *VerificationError
	if errors.As(err, &verr) {
		return verr.Reason
	}
	return 0
}
