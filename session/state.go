package session

import (
	"time"

	"github.com/Muhametii00/calendar/credential"
)

// Snapshot is the observable session record. It is a value copy; the
// underlying state is mutated only by the Controller.
type Snapshot struct {
	// Identity is the signed-in account, nil when unauthenticated.
	Identity *credential.Identity
	// Authorized is true iff Identity is present.
	Authorized bool
	// Bootstrapping is true from construction until the first
	// identity notification resolves, so consumers can distinguish
	// "don't know yet" from "known unauthenticated".
	Bootstrapping bool
	// ChallengeVisible is true exactly while a biometric challenge is
	// being prepared or awaited; the router renders the opaque cover.
	ChallengeVisible bool
	// SelectedDate is shared UI state, unrelated to authorization.
	SelectedDate time.Time
}

// challengeState is the explicit state of the biometric challenge
// machinery. All transitions happen under the Controller's lock, which
// makes "start a second attempt while one is prompting" representable
// only as a rejected call.
type challengeState int

const (
	challengeIdle challengeState = iota
	challengePrompting
	challengeRetrying
)

func (s challengeState) String() string {
	switch s {
	case challengeIdle:
		return "idle"
	case challengePrompting:
		return "prompting"
	case challengeRetrying:
		return "retrying"
	default:
		return "unknown"
	}
}
