// Package session owns the authentication session state machine: who is
// signed in, whether the biometric re-entry challenge is pending, and
// what downstream surfaces are allowed to see while it is.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/Muhametii00/calendar/biometric"
	"github.com/Muhametii00/calendar/credential"
	"github.com/Muhametii00/calendar/flags"
	"github.com/Muhametii00/calendar/lifecycle"
)

const (
	flagBiometricEnabled = "biometricEnabled"
	flagUserEmail        = "userEmail"

	promptReentry  = "Authenticate to access your calendar"
	promptContinue = "Authenticate to continue"

	// coverDelay gives the watcher time to render the opaque cover
	// before the platform prompt appears, so protected content is never
	// visible behind the dialog.
	defaultCoverDelay = 100 * time.Millisecond
	// retryBackoff spaces out retries when the platform reports a stale
	// in-progress prompt.
	defaultRetryBackoff = 300 * time.Millisecond
	// retryBudget bounds the in-progress retry loop. When the budget is
	// exhausted the challenge concludes denied, never allowed.
	retryBudget = 4
)

// ErrChallengeInProgress is returned by CheckBiometrics when another
// challenge is already outstanding.
var ErrChallengeInProgress = errors.New("biometric challenge already in progress")

// verdict is the conclusion of one challenge run.
type verdict int

const (
	verdictAllowed verdict = iota
	// verdictVacuous: no usable sensor, challenge passes without a
	// prompt and without proving anything.
	verdictVacuous
	verdictCancelled
	verdictDenied
	verdictBusy
)

func (v verdict) String() string {
	switch v {
	case verdictAllowed:
		return "allowed"
	case verdictVacuous:
		return "vacuous"
	case verdictCancelled:
		return "cancelled"
	case verdictDenied:
		return "denied"
	default:
		return "busy"
	}
}

// ProfileWriter persists a profile record for a freshly created account.
// Failures are logged, never surfaced: the account exists either way.
type ProfileWriter interface {
	Create(ctx context.Context, accountID, name, email string) error
}

// Seeder populates starter content for a freshly created account.
// Best-effort, like ProfileWriter.
type Seeder interface {
	Seed(ctx context.Context, accountID string) error
}

// Controller drives the session state machine. All state transitions
// happen under one lock and are published to watchers as immutable
// snapshots.
type Controller struct {
	gateway credential.Gateway
	sensor  biometric.Sensor
	flags   flags.Store
	feed    *lifecycle.Feed
	profile ProfileWriter
	seeder  Seeder
	log     *slog.Logger

	coverDelay   time.Duration
	retryBackoff time.Duration

	mu            sync.Mutex
	identity      *credential.Identity
	bootstrapping bool
	challenge     challengeState
	coverVisible  bool
	selectedDate  time.Time
	lastPhase     lifecycle.Phase
	interactive   bool // an in-process sign-in/up already challenged
	promptShown   bool // challenge already passed this foreground span

	subs    map[int]chan Snapshot
	nextSub int

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithProfileWriter wires profile record creation into sign-up.
func WithProfileWriter(w ProfileWriter) Option {
	return func(c *Controller) { c.profile = w }
}

// WithSeeder wires starter-content seeding into sign-up.
func WithSeeder(s Seeder) Option {
	return func(c *Controller) { c.seeder = s }
}

// WithTimings overrides the cover delay and retry backoff. Intended for
// tests; zero values keep the defaults.
func WithTimings(coverDelay, retryBackoff time.Duration) Option {
	return func(c *Controller) {
		if coverDelay > 0 {
			c.coverDelay = coverDelay
		}
		if retryBackoff > 0 {
			c.retryBackoff = retryBackoff
		}
	}
}

// NewController constructs a Controller in the bootstrapping state. Call
// Start to begin consuming identity and lifecycle notifications.
func NewController(gw credential.Gateway, sensor biometric.Sensor, fl flags.Store, feed *lifecycle.Feed, opts ...Option) *Controller {
	c := &Controller{
		gateway:       gw,
		sensor:        sensor,
		flags:         fl,
		feed:          feed,
		log:           slog.Default(),
		coverDelay:    defaultCoverDelay,
		retryBackoff:  defaultRetryBackoff,
		bootstrapping: true,
		selectedDate:  time.Now(),
		lastPhase:     lifecycle.PhaseActive,
		subs:          make(map[int]chan Snapshot),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start subscribes to the identity and lifecycle feeds and launches the
// run loop. The controller stays bootstrapping until the first identity
// notification arrives.
func (c *Controller) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	identities, cancelID := c.gateway.IdentityChanges()
	phases, cancelPh := c.feed.Subscribe()

	go func() {
		defer close(c.done)
		defer cancelID()
		defer cancelPh()
		c.run(runCtx, identities, phases)
	}()
}

// Close stops the run loop and waits for it to drain.
func (c *Controller) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	<-c.done
}

func (c *Controller) run(ctx context.Context, identities <-chan *credential.Identity, phases <-chan lifecycle.Phase) {
	for {
		select {
		case <-ctx.Done():
			return
		case id, ok := <-identities:
			if !ok {
				return
			}
			c.onIdentity(ctx, id)
		case p, ok := <-phases:
			if !ok {
				return
			}
			c.onPhase(ctx, p)
		}
	}
}

// onIdentity applies an identity notification. The first notification
// resolves bootstrapping; a restored identity with the re-entry flag set
// must pass a challenge before the session is usable.
func (c *Controller) onIdentity(ctx context.Context, id *credential.Identity) {
	needChallenge := false
	if id != nil {
		c.mu.Lock()
		restored := c.bootstrapping && !c.interactive
		c.mu.Unlock()
		needChallenge = restored && c.reentryEnabled()
	}

	c.mu.Lock()
	wasBootstrapping := c.bootstrapping
	c.bootstrapping = false
	c.identity = id
	if id == nil {
		c.coverVisible = false
		c.promptShown = false
	}
	c.publishLocked()
	c.mu.Unlock()

	if id == nil {
		c.log.Info("session cleared")
		return
	}
	c.log.Info("identity resolved", "uid", id.UID, "restored", wasBootstrapping)

	if needChallenge {
		c.resolveCover(ctx, promptReentry)
	}
}

// onPhase applies a lifecycle transition. Leaving the foreground clears
// the prompt-shown marker; returning to it re-runs the re-entry
// challenge when the marker is clear and the persisted flag is set.
func (c *Controller) onPhase(ctx context.Context, p lifecycle.Phase) {
	c.mu.Lock()
	prev := c.lastPhase
	c.lastPhase = p
	authorized := c.identity != nil
	if p != lifecycle.PhaseActive {
		c.promptShown = false
	}
	shown := c.promptShown
	c.mu.Unlock()

	if !authorized || p != lifecycle.PhaseActive || prev == lifecycle.PhaseActive {
		return
	}
	if shown || !c.reentryEnabled() {
		return
	}
	c.resolveCover(ctx, promptReentry)
}

// resolveCover runs the re-entry challenge and signs the session out
// when it concludes denied. Cancellation keeps the session but leaves
// the prompt-shown marker clear, so the next foreground-return asks
// again.
func (c *Controller) resolveCover(ctx context.Context, prompt string) {
	switch v := c.runChallenge(ctx, prompt); v {
	case verdictAllowed, verdictVacuous:
		c.mu.Lock()
		c.promptShown = true
		c.mu.Unlock()
		c.log.Info("re-entry challenge passed", "verdict", v.String())
	case verdictCancelled:
		c.log.Info("re-entry challenge cancelled")
	case verdictBusy:
		// Another caller holds the prompt; let that challenge settle
		// the session.
		c.log.Warn("re-entry challenge skipped, prompt busy")
	default:
		c.log.Warn("re-entry challenge denied, signing out")
		if err := c.Logout(ctx); err != nil {
			c.log.Error("sign-out after denied challenge", "error", err)
		}
	}
}

// reentryEnabled reports whether the persisted re-entry flag is set.
func (c *Controller) reentryEnabled() bool {
	v, ok, err := c.flags.Get(flagBiometricEnabled)
	if err != nil {
		c.log.Error("read re-entry flag", "error", err)
		return false
	}
	return ok && v == "true"
}

// runChallenge performs one guarded biometric challenge: raise the
// cover, wait for it to paint, prompt, and retry a bounded number of
// times when the platform reports a prompt already in progress. Exactly
// one challenge may run at a time; concurrent calls get verdictBusy.
func (c *Controller) runChallenge(ctx context.Context, prompt string) verdict {
	c.mu.Lock()
	if c.challenge != challengeIdle {
		c.mu.Unlock()
		return verdictBusy
	}
	c.challenge = challengePrompting
	c.coverVisible = true
	c.publishLocked()
	c.mu.Unlock()

	v := c.promptLoop(ctx, prompt)

	// Guaranteed release: the guard and the cover drop on every exit
	// path, whatever the verdict.
	c.mu.Lock()
	c.challenge = challengeIdle
	c.coverVisible = false
	c.publishLocked()
	c.mu.Unlock()

	c.log.Debug("challenge concluded", "verdict", v.String())
	return v
}

func (c *Controller) promptLoop(ctx context.Context, prompt string) verdict {
	if !sleepCtx(ctx, c.coverDelay) {
		return verdictDenied
	}

	av, err := c.sensor.Available(ctx)
	if err != nil {
		c.log.Error("sensor availability", "error", err)
		return verdictDenied
	}
	if !av.Available {
		return verdictVacuous
	}

	for attempt := 0; attempt < retryBudget; attempt++ {
		res, err := c.sensor.Challenge(ctx, prompt)
		if err != nil {
			c.log.Error("sensor challenge", "error", err, "attempt", attempt)
			return verdictDenied
		}
		switch res.Outcome {
		case biometric.OutcomeSuccess:
			return verdictAllowed
		case biometric.OutcomeCancelled:
			return verdictCancelled
		}
		if res.Reason != biometric.ReasonInProgress {
			c.log.Warn("challenge failed", "reason", res.Reason.String(), "message", res.Message)
			return verdictDenied
		}
		// A stale prompt is still settling on the platform side.
		c.mu.Lock()
		c.challenge = challengeRetrying
		c.mu.Unlock()
		if !sleepCtx(ctx, c.retryBackoff) {
			return verdictDenied
		}
		c.mu.Lock()
		c.challenge = challengePrompting
		c.mu.Unlock()
	}
	return verdictDenied
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Login signs in and, when a sensor is present, requires a biometric
// confirmation before the session is kept. A declined or cancelled
// confirmation undoes the sign-in.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	c.setInteractive(true)

	id, err := c.gateway.SignIn(ctx, email, password)
	if err != nil {
		// The flow is over; a later identity restore must still be
		// treated as a restore, challenge included.
		c.setInteractive(false)
		c.log.Warn("sign-in rejected", "error", err)
		return mapCredentialError(err, msgLoginFallback)
	}
	c.setFlag(flagUserEmail, id.Email)

	switch v := c.runChallenge(ctx, promptContinue); v {
	case verdictAllowed:
		c.setFlag(flagBiometricEnabled, "true")
		c.markPromptShown()
	case verdictVacuous:
		// No sensor on this device; the session stands on the
		// password alone.
	case verdictCancelled:
		c.undoSignIn(ctx)
		return newFlowError(CauseBiometricCancelled, msgBiometricCancelled, nil)
	case verdictBusy:
		// Another challenge holds the prompt. Not a user decision:
		// revert the sign-in and report the collision as such.
		c.undoSignIn(ctx)
		return ErrChallengeInProgress
	default:
		c.undoSignIn(ctx)
		return newFlowError(CauseBiometricDeclined, msgBiometricDeclined, nil)
	}

	c.log.Info("login complete", "uid", id.UID)
	return nil
}

func (c *Controller) markPromptShown() {
	c.mu.Lock()
	c.promptShown = true
	c.mu.Unlock()
}

func (c *Controller) setInteractive(v bool) {
	c.mu.Lock()
	c.interactive = v
	c.mu.Unlock()
}

// SignUp creates an account. The biometric confirmation here is an
// enrollment offer, not a gate: declining it keeps the account and the
// session, it just leaves re-entry challenges off.
func (c *Controller) SignUp(ctx context.Context, email, password, name string) error {
	c.setInteractive(true)

	id, err := c.gateway.SignUp(ctx, email, password, name)
	if err != nil {
		c.setInteractive(false)
		c.log.Warn("sign-up rejected", "error", err)
		return mapCredentialError(err, msgSignUpFallback)
	}

	if c.profile != nil {
		if err := c.profile.Create(ctx, id.UID, name, id.Email); err != nil {
			c.log.Error("profile record", "uid", id.UID, "error", err)
		}
	}
	if c.seeder != nil {
		if err := c.seeder.Seed(ctx, id.UID); err != nil {
			c.log.Error("seed starter content", "uid", id.UID, "error", err)
		}
	}

	c.setFlag(flagUserEmail, id.Email)

	if v := c.runChallenge(ctx, promptContinue); v == verdictAllowed {
		c.setFlag(flagBiometricEnabled, "true")
		c.markPromptShown()
	} else if v != verdictVacuous {
		c.log.Info("biometric enrollment declined", "verdict", v.String())
	}

	c.log.Info("sign-up complete", "uid", id.UID)
	return nil
}

// Logout signs out and clears the persisted session markers. Local
// state is cleared unconditionally, even when the provider or the flag
// store errors; the accumulated errors are returned for logging.
func (c *Controller) Logout(ctx context.Context) error {
	var errs error
	if err := c.gateway.SignOut(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := c.flags.Remove(flagBiometricEnabled); err != nil {
		errs = multierr.Append(errs, err)
	}
	if err := c.flags.Remove(flagUserEmail); err != nil {
		errs = multierr.Append(errs, err)
	}

	c.mu.Lock()
	c.identity = nil
	c.coverVisible = false
	c.promptShown = false
	c.publishLocked()
	c.mu.Unlock()

	if errs != nil {
		c.log.Warn("logout finished with errors", "error", errs)
	} else {
		c.log.Info("logout complete")
	}
	return errs
}

// CheckBiometrics runs a standalone challenge, for settings-style "test
// your biometrics" flows. It reports false without error when no sensor
// is present, and ErrChallengeInProgress when a challenge is already
// outstanding.
func (c *Controller) CheckBiometrics(ctx context.Context) (bool, error) {
	switch v := c.runChallenge(ctx, promptContinue); v {
	case verdictAllowed:
		return true, nil
	case verdictBusy:
		return false, ErrChallengeInProgress
	default:
		return false, nil
	}
}

// undoSignIn reverts a sign-in whose mandatory confirmation failed. The
// session must not remain authorized past this point.
func (c *Controller) undoSignIn(ctx context.Context) {
	if err := c.Logout(ctx); err != nil {
		c.log.Error("revert sign-in", "error", err)
	}
}

func (c *Controller) setFlag(key, value string) {
	if err := c.flags.Set(key, value); err != nil {
		c.log.Error("persist flag", "key", key, "error", err)
	}
}

// SavedEmail returns the last signed-in email for login prefill, or ""
// when none is persisted.
func (c *Controller) SavedEmail() string {
	v, ok, err := c.flags.Get(flagUserEmail)
	if err != nil || !ok {
		return ""
	}
	return v
}

// SetSelectedDate updates the shared selected-date state.
func (c *Controller) SetSelectedDate(t time.Time) {
	c.mu.Lock()
	c.selectedDate = t
	c.publishLocked()
	c.mu.Unlock()
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	var id *credential.Identity
	if c.identity != nil {
		cp := *c.identity
		id = &cp
	}
	return Snapshot{
		Identity:         id,
		Authorized:       c.identity != nil,
		Bootstrapping:    c.bootstrapping,
		ChallengeVisible: c.coverVisible,
		SelectedDate:     c.selectedDate,
	}
}

// Watch registers a snapshot subscriber. The current snapshot is
// delivered immediately; delivery thereafter is non-blocking with the
// oldest pending snapshot dropped, so a slow watcher always converges on
// the newest state. The cancel func releases the subscription.
func (c *Controller) Watch() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Snapshot, 4)
	c.subs[id] = ch
	ch <- c.snapshotLocked()

	cancel := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

// publishLocked fans the current snapshot out to watchers. Callers hold
// c.mu.
func (c *Controller) publishLocked() {
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
