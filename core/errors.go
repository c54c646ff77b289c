package core

import "errors"

// Errors surfaced to callers of the authenticator.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("unauthenticated")
	ErrResetFailed        = errors.New("password reset failed")
	ErrVerificationFailed = errors.New("email verification failed")
	ErrNotFound           = errors.New("not found")
)

// Errors produced by the token codec and the ledger. The authenticator maps
// these to the coarse errors above before they reach a caller.
var (
	ErrMalformedToken       = errors.New("malformed token")
	ErrTokenExpired         = errors.New("token has expired")
	ErrSigning              = errors.New("token signing failed")
	ErrConflict             = errors.New("conflicting record")
	ErrUnsupportedTokenType = errors.New("unsupported token type")
)
