package bbolt

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Muhametii00/calendar/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calendar.db")
	s, err := NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_PutGetDelete(t *testing.T) {
	s := newTestStore(t)

	env := &storage.Envelope{Ver: 1, Scheme: "aes256gcm", Nonce: []byte("123456789012"), Ciphertext: []byte("ct")}
	require.NoError(t, s.Put("acct-1", "EVENT", "2026-09-01", env))

	got, err := s.Get("acct-1", "EVENT", "2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, env.Ciphertext, got.Ciphertext)
	assert.Equal(t, env.Nonce, got.Nonce)

	require.NoError(t, s.Delete("acct-1", "EVENT", "2026-09-01"))
	_, err = s.Get("acct-1", "EVENT", "2026-09-01")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestStore_MissingScope(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("nobody", "EVENT", "2026-09-01")
	assert.True(t, errors.Is(err, storage.ErrScopeNotFound))

	err = s.Delete("nobody", "EVENT", "2026-09-01")
	assert.True(t, errors.Is(err, storage.ErrScopeNotFound))
}

func TestStore_ListFiltersByRecordType(t *testing.T) {
	s := newTestStore(t)
	env := &storage.Envelope{Ver: 1, Scheme: "aes256gcm"}

	require.NoError(t, s.Put("acct-1", "EVENT", "2026-09-01", env))
	require.NoError(t, s.Put("acct-1", "EVENT", "2026-09-02", env))
	require.NoError(t, s.Put("acct-1", "PROFILE", "profile", env))
	require.NoError(t, s.Put("acct-2", "EVENT", "2026-09-03", env))

	ids, err := s.List("acct-1", "EVENT")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"2026-09-01", "2026-09-02"}, ids)

	// Listing an unknown scope is empty, not an error.
	ids, err = s.List("nobody", "EVENT")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calendar.db")
	s, err := NewRepositoryFromFile(path, nil)
	require.NoError(t, err)

	env := &storage.Envelope{Ver: 1, Scheme: "aes256gcm", Ciphertext: []byte("persisted")}
	require.NoError(t, s.Put("acct-1", "FLAG", "biometricEnabled", env))
	require.NoError(t, s.Close())

	s2, err := NewRepositoryFromFile(path, nil)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get("acct-1", "FLAG", "biometricEnabled")
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got.Ciphertext)
}
