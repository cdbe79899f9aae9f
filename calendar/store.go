package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/Muhametii00/calendar/internal/util"
	"github.com/Muhametii00/calendar/storage"
)

const dayRecordType = "DAY"

// ErrEventNotFound is returned when the referenced event does not exist
// on the given day.
var ErrEventNotFound = errors.New("event not found")

// Store keeps per-day event documents. Each day is one sealed record
// holding the full event list; the sealing key is derived per account
// so records cannot be opened across accounts even with repository
// access.
type Store struct {
	repo      storage.Repository
	masterKey []byte
	logger    *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = logger }
}

// NewStore creates a Store sealing records under keys derived from
// masterKey.
func NewStore(repo storage.Repository, masterKey []byte, opts ...StoreOption) *Store {
	s := &Store{
		repo:      repo,
		masterKey: util.CopyBytes(masterKey),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	s.logger = s.logger.With("component", "calendar")
	return s
}

func (s *Store) accountKey(accountID string) ([]byte, error) {
	return util.DeriveKey(s.masterKey, "calendar:events:"+accountID)
}

func dayAAD(accountID string, day DateKey) []byte {
	return []byte("event:" + accountID + ":" + day.String())
}

// Add validates the event, assigns it an ID and the default color if
// none was given, and appends it to the day's record.
func (s *Store) Add(ctx context.Context, accountID string, day DateKey, ev Event) (*Event, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	ev.ID = uuid.NewString()
	ev.Title = strings.TrimSpace(ev.Title)
	ev.Time = strings.TrimSpace(ev.Time)
	if ev.Color == "" {
		ev.Color = DefaultColor
	}

	events, err := s.load(accountID, day)
	if err != nil {
		return nil, err
	}
	events = append(events, ev)
	if err := s.save(accountID, day, events); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "event added", "account", accountID, "day", day.String(), "event", ev.ID)
	return &ev, nil
}

// Events returns the day's events ordered by clock time, titles
// breaking ties case-insensitively.
func (s *Store) Events(ctx context.Context, accountID string, day DateKey) ([]Event, error) {
	events, err := s.load(accountID, day)
	if err != nil {
		return nil, err
	}
	sortEvents(events)
	return events, nil
}

// Days lists the day keys for which the account has records.
func (s *Store) Days(ctx context.Context, accountID string) ([]DateKey, error) {
	ids, err := s.repo.List(accountID, dayRecordType)
	if err != nil {
		if errors.Is(err, storage.ErrScopeNotFound) {
			return nil, nil
		}
		return nil, err
	}
	days := make([]DateKey, 0, len(ids))
	for _, id := range ids {
		days = append(days, DateKey(id))
	}
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days, nil
}

// Update replaces the stored event with the same ID. Fields are
// replaced wholesale; the ID and an absent color are preserved.
func (s *Store) Update(ctx context.Context, accountID string, day DateKey, ev Event) (*Event, error) {
	if ev.ID == "" {
		return nil, ErrEventNotFound
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	events, err := s.load(accountID, day)
	if err != nil {
		return nil, err
	}
	for i := range events {
		if events[i].ID != ev.ID {
			continue
		}
		if ev.Color == "" {
			ev.Color = events[i].Color
		}
		ev.Title = strings.TrimSpace(ev.Title)
		ev.Time = strings.TrimSpace(ev.Time)
		events[i] = ev
		if err := s.save(accountID, day, events); err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "event updated", "account", accountID, "day", day.String(), "event", ev.ID)
		return &ev, nil
	}
	return nil, ErrEventNotFound
}

// Delete removes the event from the day. Deleting the last event
// removes the day record entirely.
func (s *Store) Delete(ctx context.Context, accountID string, day DateKey, eventID string) error {
	events, err := s.load(accountID, day)
	if err != nil {
		return err
	}
	kept := events[:0]
	found := false
	for _, e := range events {
		if e.ID == eventID {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return ErrEventNotFound
	}
	if len(kept) == 0 {
		if err := s.repo.Delete(accountID, dayRecordType, string(day)); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return err
		}
	} else if err := s.save(accountID, day, kept); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "event deleted", "account", accountID, "day", day.String(), "event", eventID)
	return nil
}

// SeedSamples populates today's record with starter events for a fresh
// account. It does nothing when the day already has events.
func (s *Store) SeedSamples(ctx context.Context, accountID string, day DateKey) error {
	existing, err := s.load(accountID, day)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	samples := []Event{
		{Title: "Team Meeting", Time: "10:00 AM", Description: "Weekly team sync", Color: "#007AFF"},
		{Title: "Lunch with Client", Time: "12:30 PM", Description: "Discuss project requirements", Color: "#34C759"},
		{Title: "Project Review", Time: "3:00 PM", Description: "Review quarterly progress", Color: "#FF9500"},
	}
	for i := range samples {
		samples[i].ID = uuid.NewString()
	}
	if err := s.save(accountID, day, samples); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "sample events seeded", "account", accountID, "day", day.String())
	return nil
}

func (s *Store) load(accountID string, day DateKey) ([]Event, error) {
	env, err := s.repo.Get(accountID, dayRecordType, string(day))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrScopeNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading day record: %w", err)
	}
	key, err := s.accountKey(accountID)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(key)

	data, err := storage.OpenRecord(key, env, dayAAD(accountID, day))
	if err != nil {
		return nil, fmt.Errorf("opening day record: %w", err)
	}
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decoding day record: %w", err)
	}
	return events, nil
}

func (s *Store) save(accountID string, day DateKey, events []Event) error {
	data, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encoding day record: %w", err)
	}
	key, err := s.accountKey(accountID)
	if err != nil {
		return err
	}
	defer util.WipeBytes(key)

	env, err := storage.SealRecord(key, data, dayAAD(accountID, day))
	if err != nil {
		return fmt.Errorf("sealing day record: %w", err)
	}
	return s.repo.Put(accountID, dayRecordType, string(day), env)
}

func sortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		mi, ti := sortKey(events[i])
		mj, tj := sortKey(events[j])
		if mi != mj {
			return mi < mj
		}
		return ti < tj
	})
}
