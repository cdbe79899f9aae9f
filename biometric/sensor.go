// Package biometric defines the contract for the on-device biometric
// sensor and normalizes the platform error taxonomies (iOS
// LocalAuthentication, Android BiometricPrompt) into a small canonical
// set the session layer can act on.
package biometric

import "context"

// Kind identifies the biometry hardware reported by the platform.
type Kind string

const (
	KindNone        Kind = ""
	KindFaceID      Kind = "FaceID"
	KindTouchID     Kind = "TouchID"
	KindFingerprint Kind = "Biometrics"
)

// DisplayName returns a user-facing name for the biometry kind.
func (k Kind) DisplayName() string {
	switch k {
	case KindFaceID:
		return "Face ID"
	case KindTouchID:
		return "Touch ID"
	default:
		return "Biometric"
	}
}

// Availability reports whether the sensor can be used and what kind of
// biometry it offers.
type Availability struct {
	Available bool
	Kind      Kind
}

// Outcome is the canonical result of one challenge.
type Outcome int

const (
	// OutcomeSuccess means the user passed the challenge.
	OutcomeSuccess Outcome = iota
	// OutcomeCancelled means the user dismissed the prompt. This is a
	// decision, not a failure.
	OutcomeCancelled
	// OutcomeFailed means the challenge concluded without success for
	// any other reason; inspect Reason.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "failed"
	}
}

// Result describes how a challenge concluded. Message carries the raw
// platform error text, if any, for logging.
type Result struct {
	Outcome Outcome
	Reason  Reason
	Message string
}

// Sensor is the device biometric hardware. At most one challenge may be
// outstanding on a device at a time; a second concurrent Challenge call
// must itself conclude failed with ReasonInProgress rather than resolve
// successfully.
type Sensor interface {
	// Available reports whether the sensor can run a challenge.
	Available(ctx context.Context) (Availability, error)
	// Challenge shows the interactive prompt and waits for the user.
	// There is no timeout beyond the platform's own; cancellation is
	// reported through the Result, not ctx.
	Challenge(ctx context.Context, prompt string) (Result, error)
}

// Unavailable returns a Sensor that reports no biometry hardware. Used
// when no sensor agent is configured; the session layer treats an
// unavailable sensor as vacuously passing.
func Unavailable() Sensor {
	return unavailableSensor{}
}

type unavailableSensor struct{}

func (unavailableSensor) Available(context.Context) (Availability, error) {
	return Availability{}, nil
}

func (unavailableSensor) Challenge(context.Context, string) (Result, error) {
	return Result{Outcome: OutcomeFailed, Reason: ReasonNotAvailable, Message: "no biometric sensor"}, nil
}
