package biometric

import "strings"

// Reason classifies why a challenge concluded without success.
type Reason int

const (
	// ReasonNone is set on successful results.
	ReasonNone Reason = iota
	// ReasonUserCancel: the user dismissed the prompt.
	ReasonUserCancel
	// ReasonSystemCancel: the platform dismissed the prompt (app
	// backgrounded, incoming call).
	ReasonSystemCancel
	// ReasonInProgress: another authentication dialog was already
	// showing. A transient platform race worth retrying.
	ReasonInProgress
	// ReasonLockout: too many failed attempts; biometry is locked.
	ReasonLockout
	// ReasonNotEnrolled: hardware present but no biometry enrolled.
	ReasonNotEnrolled
	// ReasonNotAvailable: no usable biometry hardware.
	ReasonNotAvailable
	// ReasonUnknown: anything unrecognized.
	ReasonUnknown
)

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonUserCancel:
		return "user_cancel"
	case ReasonSystemCancel:
		return "system_cancel"
	case ReasonInProgress:
		return "in_progress"
	case ReasonLockout:
		return "lockout"
	case ReasonNotEnrolled:
		return "not_enrolled"
	case ReasonNotAvailable:
		return "not_available"
	default:
		return "unknown"
	}
}

// NormalizeReason maps a raw platform error string to a canonical
// Reason. It recognizes iOS LAError names, Android BiometricPrompt
// error constants, and the looser prose some bridges emit. Matching is
// substring-based because the platforms do not agree on exact wording.
func NormalizeReason(message string) Reason {
	if message == "" {
		return ReasonUnknown
	}
	m := strings.ToLower(message)

	switch {
	case contains(m, "in progress", "already in progress", "pending authentication"):
		return ReasonInProgress
	case contains(m, "usercancel", "user cancel", "user_canceled", "user cancellation", "canceled by user", "cancelled by user"):
		return ReasonUserCancel
	case contains(m, "systemcancel", "system cancel", "error_canceled", "appcancel", "app cancel"):
		return ReasonSystemCancel
	case contains(m, "lockout"):
		return ReasonLockout
	case contains(m, "notenrolled", "not enrolled", "no_biometrics", "no biometrics", "no identities are enrolled"):
		return ReasonNotEnrolled
	case contains(m, "notavailable", "not available", "hw_unavailable", "hw_not_present", "notpaired"):
		return ReasonNotAvailable
	// Bare "cancel" last: every platform has a more specific form, but
	// some bridges collapse them.
	case contains(m, "cancel"):
		return ReasonUserCancel
	default:
		return ReasonUnknown
	}
}

func contains(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
