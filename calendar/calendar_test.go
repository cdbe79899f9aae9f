package calendar

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muhametii00/calendar/internal/util"
	"github.com/Muhametii00/calendar/storage/memory"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	key, err := util.RandomBytes(util.AESKeySize)
	require.NoError(t, err)
	return NewStore(memory.NewRepository(), key)
}

func TestEventValidate(t *testing.T) {
	cases := []struct {
		name string
		ev   Event
		want error
	}{
		{"valid 12h", Event{Title: "Standup", Time: "9:30 AM"}, nil},
		{"valid 24h", Event{Title: "Standup", Time: "14:00"}, nil},
		{"valid lowercase meridiem", Event{Title: "Standup", Time: "9:30 pm"}, nil},
		{"missing title", Event{Time: "9:30 AM"}, ErrTitleRequired},
		{"short title", Event{Title: "x", Time: "9:30 AM"}, ErrTitleLength},
		{"missing time", Event{Title: "Standup"}, ErrTimeRequired},
		{"bad time", Event{Title: "Standup", Time: "25:99"}, ErrTimeFormat},
		{"bad meridiem hour", Event{Title: "Standup", Time: "13:00 PM"}, ErrTimeFormat},
		{"bad color", Event{Title: "Standup", Time: "9:30 AM", Color: "blue"}, ErrBadColor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.ev.Validate()
			if tc.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
}

func TestParseDateKey(t *testing.T) {
	k, err := ParseDateKey("2026-08-31")
	require.NoError(t, err)
	assert.Equal(t, "2026-08-31", k.String())

	for _, bad := range []string{"2026-8-31", "31-08-2026", "2026-02-30", "yesterday", ""} {
		_, err := ParseDateKey(bad)
		assert.ErrorIs(t, err, ErrBadDateKey, bad)
	}
}

func TestAddAndListSorted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := DateKey("2026-08-31")

	for _, ev := range []Event{
		{Title: "Evening review", Time: "6:15 PM"},
		{Title: "standup", Time: "9:30 AM"},
		{Title: "Deploy window", Time: "14:00"},
	} {
		_, err := s.Add(ctx, "acct-1", day, ev)
		require.NoError(t, err)
	}

	events, err := s.Events(ctx, "acct-1", day)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "standup", events[0].Title)
	assert.Equal(t, "Deploy window", events[1].Title)
	assert.Equal(t, "Evening review", events[2].Title)
	assert.Equal(t, DefaultColor, events[0].Color)
	assert.NotEmpty(t, events[0].ID)
}

func TestEventsEmptyDay(t *testing.T) {
	s := newTestStore(t)
	events, err := s.Events(context.Background(), "acct-1", DateKey("2026-01-01"))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestUpdate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := DateKey("2026-08-31")

	created, err := s.Add(ctx, "acct-1", day, Event{Title: "Standup", Time: "9:30 AM", Color: "#34C759"})
	require.NoError(t, err)

	updated, err := s.Update(ctx, "acct-1", day, Event{ID: created.ID, Title: "Standup (moved)", Time: "10:00 AM"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "#34C759", updated.Color, "absent color keeps the stored one")

	events, err := s.Events(ctx, "acct-1", day)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Standup (moved)", events[0].Title)

	_, err = s.Update(ctx, "acct-1", day, Event{ID: "nope", Title: "Ghost", Time: "1:00 PM"})
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := DateKey("2026-08-31")

	a, err := s.Add(ctx, "acct-1", day, Event{Title: "Keep me", Time: "9:00 AM"})
	require.NoError(t, err)
	b, err := s.Add(ctx, "acct-1", day, Event{Title: "Drop me", Time: "10:00 AM"})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "acct-1", day, b.ID))
	events, err := s.Events(ctx, "acct-1", day)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, a.ID, events[0].ID)

	assert.ErrorIs(t, s.Delete(ctx, "acct-1", day, b.ID), ErrEventNotFound)

	require.NoError(t, s.Delete(ctx, "acct-1", day, a.ID))
	events, err = s.Events(ctx, "acct-1", day)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAccountsAreIsolated(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := DateKey("2026-08-31")

	_, err := s.Add(ctx, "acct-1", day, Event{Title: "Private", Time: "9:00 AM"})
	require.NoError(t, err)

	events, err := s.Events(ctx, "acct-2", day)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestSeedSamples(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := DateKey("2026-08-31")

	require.NoError(t, s.SeedSamples(ctx, "acct-1", day))
	events, err := s.Events(ctx, "acct-1", day)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "Team Meeting", events[0].Title)

	// Seeding again must not duplicate.
	require.NoError(t, s.SeedSamples(ctx, "acct-1", day))
	events, err = s.Events(ctx, "acct-1", day)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestDays(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Add(ctx, "acct-1", DateKey("2026-09-02"), Event{Title: "Later", Time: "9:00 AM"})
	require.NoError(t, err)
	_, err = s.Add(ctx, "acct-1", DateKey("2026-08-31"), Event{Title: "Sooner", Time: "9:00 AM"})
	require.NoError(t, err)

	days, err := s.Days(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, []DateKey{"2026-08-31", "2026-09-02"}, days)

	days, err = s.Days(ctx, "acct-2")
	require.NoError(t, err)
	assert.Empty(t, days)
}
