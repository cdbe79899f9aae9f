package memflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGetRemove(t *testing.T) {
	s := NewStore()

	_, ok, err := s.Get("biometricEnabled")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("biometricEnabled", "true"))
	v, ok, err := s.Get("biometricEnabled")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	require.NoError(t, s.Remove("biometricEnabled"))
	_, ok, err = s.Get("biometricEnabled")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Remove("never-set"))
}
