// Package identity turns a bearer credential into the account ID it was
// issued for.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidCredential is returned when a credential cannot be verified or
// does not carry a well-formed subject.
var ErrInvalidCredential = errors.New("abacus: invalid credential")

// Verifier checks a credential and returns its claims. Signature checking,
// if any, happens here.
type Verifier interface {
	Verify(ctx context.Context, credential string) (jwt.MapClaims, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, credential string) (jwt.MapClaims, error)

// Verify calls f.
func (f VerifierFunc) Verify(ctx context.Context, credential string) (jwt.MapClaims, error) {
	return f(ctx, credential)
}

// Resolver extracts the account ID from the "sub" claim.
type Resolver struct {
	verifier Verifier
}

// NewResolver creates a Resolver backed by v.
func NewResolver(v Verifier) *Resolver {
	return &Resolver{verifier: v}
}

// Resolve verifies credential and parses its subject as a UUID. A leading
// "Bearer " is accepted.
func (r *Resolver) Resolve(ctx context.Context, credential string) (uuid.UUID, error) {
	token := StripBearer(credential)
	if token == "" {
		return uuid.Nil, fmt.Errorf("%w: empty credential", ErrInvalidCredential)
	}

	claims, err := r.verifier.Verify(ctx, token)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidCredential, err)
	}
	if sub == "" {
		return uuid.Nil, fmt.Errorf("%w: token does not contain a subject", ErrInvalidCredential)
	}

	accountID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: subject is not a valid account id", ErrInvalidCredential)
	}
	return accountID, nil
}

// StripBearer removes a case-insensitive "Bearer " prefix and surrounding
// whitespace.
func StripBearer(credential string) string {
	c := strings.TrimSpace(credential)
	if len(c) >= 7 && strings.EqualFold(c[:7], "bearer ") {
		c = strings.TrimSpace(c[7:])
	}
	return c
}
