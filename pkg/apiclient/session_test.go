package apiclient

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio-api/internal/domain"
)

func testSession() *domain.Session {
	return &domain.Session{
		User:         &domain.UserProfile{UID: "uid-123", Email: "owner@example.com"},
		Token:        "token-1",
		RefreshToken: "refresh-1",
		ExpiresIn:    3600,
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	require.NoError(t, store.Save(testSession()))

	loaded, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "token-1", loaded.Token)

	// Mutating a loaded copy must not leak into the store.
	loaded.Token = "tampered"

	reloaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "token-1", reloaded.Token)

	require.NoError(t, store.Clear())

	loaded, err = store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded, "missing file reads as no session")

	require.NoError(t, store.Save(testSession()))

	loaded, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "token-1", loaded.Token)
	assert.Equal(t, "refresh-1", loaded.RefreshToken)
	assert.Equal(t, "uid-123", loaded.User.UID)
}

func TestFileStoreSaveReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path)

	require.NoError(t, store.Save(testSession()))

	updated := testSession()
	updated.Token = "token-2"
	require.NoError(t, store.Save(updated))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "token-2", loaded.Token)
}

func TestFileStoreClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path)

	// Clearing a store that never saved is not an error.
	require.NoError(t, store.Clear())

	require.NoError(t, store.Save(testSession()))
	require.NoError(t, store.Clear())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
