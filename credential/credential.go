// Package credential defines the contract with the remote identity
// provider: sign-in, sign-up, sign-out, and an identity-changed feed
// that replays the last known identity (or none) once at startup.
package credential

import (
	"context"
	"errors"
)

// Identity is the opaque handle for a signed-in account.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	// Token is the provider-issued ID token for downstream calls.
	Token string `json:"token,omitempty"`
}

// Gateway performs credential operations against the identity provider.
//
// IdentityChanges subscriptions receive the current identity (nil when
// signed out) at least once after the provider starts, then again on
// every successful sign-in, sign-up, and sign-out.
type Gateway interface {
	SignIn(ctx context.Context, email, password string) (*Identity, error)
	SignUp(ctx context.Context, email, password, displayName string) (*Identity, error)
	SignOut(ctx context.Context) error
	// IdentityChanges registers a subscriber; the cancel func releases it.
	IdentityChanges() (<-chan *Identity, func())
}

// Sign-in and sign-up failures. The session layer maps these onto its
// user-facing error sentences; everything else falls through as unknown.
var (
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrWrongPassword     = errors.New("wrong password")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrTooManyRequests   = errors.New("too many requests")
	ErrNetwork           = errors.New("network request failed")
	ErrEmailInUse        = errors.New("email already in use")
	ErrWeakPassword      = errors.New("weak password")
)
