package session

import (
	"errors"

	"github.com/Muhametii00/calendar/credential"
)

// Cause classifies a login/sign-up failure into something the UI can
// present verbatim.
type Cause string

const (
	CauseUnknown            Cause = "unknown"
	CauseInvalidEmail       Cause = "invalid_email"
	CauseWrongPassword      Cause = "wrong_password"
	CauseUserNotFound       Cause = "user_not_found"
	CauseInvalidCredential  Cause = "invalid_credential"
	CauseTooManyRequests    Cause = "too_many_requests"
	CauseOffline            Cause = "offline"
	CauseEmailInUse         Cause = "email_in_use"
	CauseWeakPassword       Cause = "weak_password"
	CauseBiometricDeclined  Cause = "biometric_declined"
	CauseBiometricCancelled Cause = "biometric_cancelled"
)

// FlowError carries a stable cause plus a user-facing message. Known
// causes use a fixed sentence; CauseUnknown carries the source error's
// own text when it has one.
type FlowError struct {
	Cause   Cause
	Message string
	Err     error
}

func (e *FlowError) Error() string { return e.Message }

func (e *FlowError) Unwrap() error { return e.Err }

func newFlowError(cause Cause, message string, err error) *FlowError {
	return &FlowError{Cause: cause, Message: message, Err: err}
}

const (
	msgInvalidEmail       = "Invalid email address format."
	msgWrongPassword      = "Incorrect password."
	msgUserNotFound       = "No account found with this email."
	msgInvalidCredential  = "Invalid email or password."
	msgTooManyRequests    = "Too many failed attempts. Please try again later."
	msgOffline            = "Network error. Please check your connection."
	msgEmailInUse         = "An account with this email already exists."
	msgWeakPassword       = "Password should be at least 6 characters."
	msgBiometricDeclined  = "Biometric verification is required to complete login. Please try again."
	msgBiometricCancelled = "Biometric verification was cancelled. Please try again."
	msgLoginFallback      = "Login failed. Please try again."
	msgSignUpFallback     = "Failed to create account. Please try again."
)

// mapCredentialError translates gateway sentinels into FlowErrors with
// the canonical message for each cause. An unrecognized error surfaces
// its own text; the generic fallback covers errors with none.
func mapCredentialError(err error, fallback string) *FlowError {
	switch {
	case errors.Is(err, credential.ErrInvalidEmail):
		return newFlowError(CauseInvalidEmail, msgInvalidEmail, err)
	case errors.Is(err, credential.ErrWrongPassword):
		return newFlowError(CauseWrongPassword, msgWrongPassword, err)
	case errors.Is(err, credential.ErrUserNotFound):
		return newFlowError(CauseUserNotFound, msgUserNotFound, err)
	case errors.Is(err, credential.ErrInvalidCredential):
		return newFlowError(CauseInvalidCredential, msgInvalidCredential, err)
	case errors.Is(err, credential.ErrTooManyRequests):
		return newFlowError(CauseTooManyRequests, msgTooManyRequests, err)
	case errors.Is(err, credential.ErrNetwork):
		return newFlowError(CauseOffline, msgOffline, err)
	case errors.Is(err, credential.ErrEmailInUse):
		return newFlowError(CauseEmailInUse, msgEmailInUse, err)
	case errors.Is(err, credential.ErrWeakPassword):
		return newFlowError(CauseWeakPassword, msgWeakPassword, err)
	default:
		msg := fallback
		if err != nil && err.Error() != "" {
			msg = err.Error()
		}
		return newFlowError(CauseUnknown, msg, err)
	}
}
