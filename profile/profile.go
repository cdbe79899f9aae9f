// Package profile keeps per-account profile records, sealed at rest.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Muhametii00/calendar/internal/util"
	"github.com/Muhametii00/calendar/storage"
)

const (
	recordType = "PROFILE"
	recordID   = "self"
	keyInfo    = "profile:records"
)

// ErrNotFound is returned when the account has no profile record.
var ErrNotFound = errors.New("profile not found")

// Record is the stored profile.
type Record struct {
	AccountID string    `json:"account_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Store reads and writes profile records.
type Store struct {
	repo   storage.Repository
	key    []byte
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store sealing records under a key derived from
// masterKey.
func NewStore(repo storage.Repository, masterKey []byte, opts ...Option) (*Store, error) {
	key, err := util.DeriveKey(masterKey, keyInfo)
	if err != nil {
		return nil, fmt.Errorf("deriving profile key: %w", err)
	}
	s := &Store{
		repo: repo,
		key:  key,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	s.logger = s.logger.With("component", "profile")
	return s, nil
}

func aad(accountID string) []byte {
	return []byte("profile:" + accountID)
}

// Create writes the profile record for a fresh account, replacing any
// existing one.
func (s *Store) Create(ctx context.Context, accountID, name, email string) error {
	rec := Record{
		AccountID: accountID,
		Name:      name,
		Email:     email,
		CreatedAt: s.now().UTC(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	env, err := storage.SealRecord(s.key, data, aad(accountID))
	if err != nil {
		return fmt.Errorf("sealing profile: %w", err)
	}
	if err := s.repo.Put(accountID, recordType, recordID, env); err != nil {
		return fmt.Errorf("storing profile: %w", err)
	}
	s.logger.InfoContext(ctx, "profile created", "account", accountID)
	return nil
}

// Get returns the account's profile record.
func (s *Store) Get(ctx context.Context, accountID string) (*Record, error) {
	env, err := s.repo.Get(accountID, recordType, recordID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrScopeNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	data, err := storage.OpenRecord(s.key, env, aad(accountID))
	if err != nil {
		return nil, fmt.Errorf("opening profile: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding profile: %w", err)
	}
	return &rec, nil
}
