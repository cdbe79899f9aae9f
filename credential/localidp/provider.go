// Package localidp is an embedded identity provider backed by the
// storage repository. It exists so the calendar service runs without a
// network identity provider: accounts are kept locally with argon2id
// password hashes, and sign-ins issue short-lived HS256 ID tokens.
package localidp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"os"
	"sync"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/awnumar/memguard"
	"github.com/google/uuid"

	"github.com/Muhametii00/calendar/credential"
	"github.com/Muhametii00/calendar/internal/util"
	"github.com/Muhametii00/calendar/storage"
)

const (
	idpScope          = "__idp"
	accountRecordType = "ACCOUNT"
	stateRecordType   = "STATE"
	stateRecordID     = "current"

	accountKeyInfo = "idp:accounts"
	signingKeyInfo = "idp:token-signing"

	minPasswordLen  = 6
	defaultTokenTTL = time.Hour
)

// accountRecord is the persisted form of an account, sealed at rest.
type accountRecord struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name,omitempty"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// stateRecord remembers which account is signed in across restarts, so
// the identity feed can replay it at startup.
type stateRecord struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
}

// Provider implements credential.Gateway against local storage.
type Provider struct {
	repo       storage.Repository
	accountKey []byte
	signingKey *memguard.Enclave
	tokenTTL   time.Duration
	logger     *slog.Logger
	limiter    *signInLimiter

	mu      sync.Mutex
	subs    map[int]chan *credential.Identity
	nextSub int
	current *credential.Identity
	started bool
}

var _ credential.Gateway = (*Provider)(nil)

// Option configures the Provider.
type Option func(*Provider)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// WithTokenTTL overrides the ID-token lifetime.
func WithTokenTTL(ttl time.Duration) Option {
	return func(p *Provider) { p.tokenTTL = ttl }
}

// New creates a Provider. masterKey is the 32-byte service master key;
// the account sealing key and the token signing key are derived from it
// and the signing key is kept in a memguard enclave between uses.
func New(repo storage.Repository, masterKey []byte, opts ...Option) (*Provider, error) {
	accountKey, err := util.DeriveKey(masterKey, accountKeyInfo)
	if err != nil {
		return nil, fmt.Errorf("deriving account key: %w", err)
	}
	signingKey, err := util.DeriveKey(masterKey, signingKeyInfo)
	if err != nil {
		return nil, fmt.Errorf("deriving signing key: %w", err)
	}

	p := &Provider{
		repo:       repo,
		accountKey: accountKey,
		// NewEnclave wipes the source slice.
		signingKey: memguard.NewEnclave(signingKey),
		tokenTTL:   defaultTokenTTL,
		limiter:    newSignInLimiter(),
		subs:       make(map[int]chan *credential.Identity),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	p.logger = p.logger.With("component", "localidp")
	return p, nil
}

// Start loads the persisted sign-in state and replays the current
// identity (or none) to all subscribers.
func (p *Provider) Start(ctx context.Context) error {
	var current *credential.Identity

	env, err := p.repo.Get(idpScope, stateRecordType, stateRecordID)
	switch {
	case err == nil:
		data, openErr := storage.OpenRecord(p.accountKey, env, []byte(stateAAD()))
		if openErr != nil {
			// Unreadable state is treated as signed out rather than fatal.
			p.logger.Warn("discarding unreadable sign-in state", "error", openErr)
			break
		}
		var st stateRecord
		if jsonErr := json.Unmarshal(data, &st); jsonErr != nil {
			p.logger.Warn("discarding corrupt sign-in state", "error", jsonErr)
			break
		}
		acct, loadErr := p.loadAccount(st.Email)
		if loadErr != nil {
			p.logger.Warn("signed-in account no longer readable", "error", loadErr)
			break
		}
		token, tokenErr := p.issueToken(acct)
		if tokenErr != nil {
			return fmt.Errorf("issuing startup token: %w", tokenErr)
		}
		current = &credential.Identity{
			UID:         acct.ID,
			Email:       acct.Email,
			DisplayName: acct.DisplayName,
			Token:       token,
		}
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, storage.ErrScopeNotFound):
		// First run or signed out.
	default:
		return fmt.Errorf("loading sign-in state: %w", err)
	}

	p.mu.Lock()
	p.current = current
	p.started = true
	p.mu.Unlock()

	p.emit(current)
	return nil
}

// IdentityChanges registers a subscriber. If the provider has already
// started, the current identity is replayed immediately.
func (p *Provider) IdentityChanges() (<-chan *credential.Identity, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSub
	p.nextSub++
	ch := make(chan *credential.Identity, 4)
	p.subs[id] = ch

	if p.started {
		ch <- p.current
	}

	cancel := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if _, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (p *Provider) SignIn(ctx context.Context, email, password string) (*credential.Identity, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, credential.ErrInvalidEmail
	}

	key := util.NormalizeEmail(email)
	if p.limiter.blocked(key) {
		return nil, credential.ErrTooManyRequests
	}

	acct, err := p.loadAccount(email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrScopeNotFound) {
			p.limiter.recordFailure(key)
			return nil, credential.ErrUserNotFound
		}
		return nil, fmt.Errorf("loading account: %w", err)
	}

	match, err := argon2id.ComparePasswordAndHash(password, acct.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password: %w", err)
	}
	if !match {
		p.limiter.recordFailure(key)
		return nil, credential.ErrWrongPassword
	}
	p.limiter.reset(key)

	return p.completeSignIn(acct)
}

func (p *Provider) SignUp(ctx context.Context, email, password, displayName string) (*credential.Identity, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, credential.ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return nil, credential.ErrWeakPassword
	}

	if _, err := p.loadAccount(email); err == nil {
		return nil, credential.ErrEmailInUse
	} else if !errors.Is(err, storage.ErrNotFound) && !errors.Is(err, storage.ErrScopeNotFound) {
		return nil, fmt.Errorf("checking for existing account: %w", err)
	}

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	acct := &accountRecord{
		ID:           uuid.NewString(),
		Email:        util.NormalizeEmail(email),
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.saveAccount(acct); err != nil {
		return nil, fmt.Errorf("saving account: %w", err)
	}
	p.logger.Info("account created", "account_id", acct.ID)

	return p.completeSignIn(acct)
}

func (p *Provider) SignOut(ctx context.Context) error {
	err := p.repo.Delete(idpScope, stateRecordType, stateRecordID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) && !errors.Is(err, storage.ErrScopeNotFound) {
		return fmt.Errorf("clearing sign-in state: %w", err)
	}

	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()

	p.emit(nil)
	return nil
}

// completeSignIn issues a token, persists the sign-in state, and emits
// the identity change.
func (p *Provider) completeSignIn(acct *accountRecord) (*credential.Identity, error) {
	token, err := p.issueToken(acct)
	if err != nil {
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	identity := &credential.Identity{
		UID:         acct.ID,
		Email:       acct.Email,
		DisplayName: acct.DisplayName,
		Token:       token,
	}

	if err := p.saveState(&stateRecord{AccountID: acct.ID, Email: acct.Email}); err != nil {
		// The sign-in itself succeeded; state only affects restart replay.
		p.logger.Warn("persisting sign-in state failed", "error", err)
	}

	p.mu.Lock()
	p.current = identity
	p.mu.Unlock()

	p.emit(identity)
	return identity, nil
}

func (p *Provider) emit(identity *credential.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ch := range p.subs {
		select {
		case ch <- identity:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- identity:
			default:
			}
		}
	}
}

func accountAAD(email string) string {
	return "account:" + util.NormalizeEmail(email)
}

func stateAAD() string {
	return "idp:state"
}

func (p *Provider) loadAccount(email string) (*accountRecord, error) {
	key := util.NormalizeEmail(email)
	env, err := p.repo.Get(idpScope, accountRecordType, key)
	if err != nil {
		return nil, err
	}
	data, err := storage.OpenRecord(p.accountKey, env, []byte(accountAAD(email)))
	if err != nil {
		return nil, fmt.Errorf("opening account record: %w", err)
	}
	var acct accountRecord
	if err := json.Unmarshal(data, &acct); err != nil {
		return nil, fmt.Errorf("decoding account record: %w", err)
	}
	return &acct, nil
}

func (p *Provider) saveAccount(acct *accountRecord) error {
	data, err := json.Marshal(acct)
	if err != nil {
		return err
	}
	env, err := storage.SealRecord(p.accountKey, data, []byte(accountAAD(acct.Email)))
	if err != nil {
		return err
	}
	return p.repo.Put(idpScope, accountRecordType, acct.Email, env)
}

func (p *Provider) saveState(st *stateRecord) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	env, err := storage.SealRecord(p.accountKey, data, []byte(stateAAD()))
	if err != nil {
		return err
	}
	return p.repo.Put(idpScope, stateRecordType, stateRecordID, env)
}
