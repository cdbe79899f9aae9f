package localidp

import (
	"sync"
	"time"
)

const (
	// maxFailures is the number of consecutive failures before lockout.
	maxFailures = 5
	// lockoutDuration is how long sign-in is refused after lockout.
	lockoutDuration = 1 * time.Minute
	// attemptExpiry is how long after the last failure a record lives.
	attemptExpiry = 1 * time.Hour
)

// signInLimiter tracks consecutive failed sign-ins per normalized email
// and refuses further attempts for a fixed lockout window.
type signInLimiter struct {
	mu       sync.Mutex
	attempts map[string]*attemptRecord
}

type attemptRecord struct {
	failures    int
	lastFailure time.Time
	lockedUntil time.Time
}

func newSignInLimiter() *signInLimiter {
	return &signInLimiter{attempts: make(map[string]*attemptRecord)}
}

func (rl *signInLimiter) blocked(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rec, ok := rl.attempts[key]
	if !ok {
		return false
	}
	if time.Since(rec.lastFailure) > attemptExpiry {
		delete(rl.attempts, key)
		return false
	}
	return time.Now().Before(rec.lockedUntil)
}

func (rl *signInLimiter) recordFailure(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rec, ok := rl.attempts[key]
	if !ok {
		rec = &attemptRecord{}
		rl.attempts[key] = rec
	}
	rec.failures++
	rec.lastFailure = time.Now()
	if rec.failures >= maxFailures {
		rec.lockedUntil = time.Now().Add(lockoutDuration)
	}
}

func (rl *signInLimiter) reset(key string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.attempts, key)
}
