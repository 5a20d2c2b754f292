package auth

import (
	"context"
	"errors"
)

var (
	// ErrTokenExpired signals an expired credential.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals a malformed, badly signed or otherwise unusable credential.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// Claims is the verified content of a bearer credential.
type Claims struct {
	Subject string
	Email   string
	// Role is the raw role claim; it is parsed against the closed role set by the middleware.
	Role string
}

// TokenVerifier checks a bearer credential and returns its claims.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

// VerifierFunc adapts a function to TokenVerifier.
type VerifierFunc func(ctx context.Context, token string) (Claims, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (Claims, error) {
	if f == nil {
		return Claims{}, ErrTokenInvalid
	}
	return f(ctx, token)
}
