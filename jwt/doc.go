// Package jwt signs and verifies the HS512 access and refresh tokens issued by goToken.
//
// Access and refresh tokens use distinct secrets and carry a token_type claim, so a token
// of one kind never verifies as the other. Verification is a pure function of the configured
// secrets, the token and the evaluation time; it performs no I/O.
package jwt
