package sessions

import (
	"context"
	"path/filepath"
	"testing"

	tdsession "github.com/gotd/td/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSessionRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "acc_1", "session.json")
	store := NewFileSession(path)
	ctx := context.Background()

	_, err := store.LoadSession(ctx)
	assert.ErrorIs(t, err, tdsession.ErrNotFound)

	require.NoError(t, store.StoreSession(ctx, []byte(`{"key":"value"}`)))

	data, err := store.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"key":"value"}`, string(data))

	require.NoError(t, store.DeleteSession())
	_, err = store.LoadSession(ctx)
	assert.ErrorIs(t, err, tdsession.ErrNotFound)

	// Deleting twice is fine.
	assert.NoError(t, store.DeleteSession())
}

func TestGetSessionFilePathForAccount(t *testing.T) {
	t.Setenv("SESSIONS_BASE_DIR", "")
	assert.Equal(t, filepath.Join("sessions", "acc_7", "session.json"), GetSessionFilePathForAccount("acc_7"))
	assert.Equal(t, filepath.Join("sessions", "default", "session.json"), GetSessionFilePathForAccount(""))

	t.Setenv("SESSIONS_BASE_DIR", "/tmp/tt")
	assert.Equal(t, filepath.Join("/tmp/tt", "acc_7", "session.json"), GetSessionFilePathForAccount("acc_7"))
}
