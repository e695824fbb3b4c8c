package credential

import (
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGetDelete(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring(nil))

	require.NoError(t, s.Set(KeyAPIKey, "secret"))

	v, err := s.Get(KeyAPIKey)
	require.NoError(t, err)
	assert.Equal(t, "secret", v)

	require.NoError(t, s.Delete(KeyAPIKey))

	_, err = s.Get(KeyAPIKey)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_EnvironmentWins(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring([]keyring.Item{
		{Key: KeyEmailPassword, Data: []byte("from-keyring")},
	}))
	t.Setenv(EnvEmailPassword, "from-env")

	v, err := s.Resolve(KeyEmailPassword, EnvEmailPassword)
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)
}

func TestResolve_FallsBackToKeyring(t *testing.T) {
	s := NewStore(keyring.NewArrayKeyring([]keyring.Item{
		{Key: KeyEmailPassword, Data: []byte("from-keyring")},
	}))
	t.Setenv(EnvEmailPassword, "  ")

	v, err := s.Resolve(KeyEmailPassword, EnvEmailPassword)
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", v)
}

func TestResolve_Missing(t *testing.T) {
	t.Setenv(EnvAPIKey, "")

	var nilStore *Store
	_, err := nilStore.Resolve(KeyAPIKey, EnvAPIKey)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = NewStore(keyring.NewArrayKeyring(nil)).Resolve(KeyAPIKey, EnvAPIKey)
	assert.ErrorIs(t, err, ErrNotFound)
}
