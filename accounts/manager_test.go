package accounts

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	store := filepath.Join(dir, "accounts.json")
	m, err := NewManager(store, filepath.Join(dir, "sessions"))
	require.NoError(t, err)
	return m, store
}

func TestCreateAndGet(t *testing.T) {
	m, _ := newTestManager(t)

	acc, err := m.Create("+15551234567", "primary")
	require.NoError(t, err)
	assert.Equal(t, 1, acc.ID)
	assert.Equal(t, "acc_1", acc.Key)
	assert.Equal(t, "+15551234567", acc.Phone)
	assert.NotNil(t, acc.Device)
	assert.False(t, acc.Authorized)

	got, err := m.Get(1)
	require.NoError(t, err)
	assert.Equal(t, acc.Key, got.Key)

	byKey, err := m.GetByKey("acc_1")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, byKey.ID)

	_, err = m.Get(99)
	assert.Error(t, err)
}

func TestPersistenceAcrossReload(t *testing.T) {
	m, store := newTestManager(t)

	acc, err := m.Create("+15551234567", "primary")
	require.NoError(t, err)
	m.MarkAuthorized(acc.Key, true)

	reloaded, err := NewManager(store, filepath.Dir(store))
	require.NoError(t, err)

	got, err := reloaded.Get(acc.ID)
	require.NoError(t, err)
	assert.True(t, got.Authorized)
	assert.Equal(t, acc.Device.DeviceModel, got.Device.DeviceModel)

	// IDs keep incrementing after reload.
	next, err := reloaded.Create("", "")
	require.NoError(t, err)
	assert.Equal(t, acc.ID+1, next.ID)
}

func TestSetPhoneResetsAuthorization(t *testing.T) {
	m, _ := newTestManager(t)

	acc, err := m.Create("+15551234567", "")
	require.NoError(t, err)
	m.MarkAuthorized(acc.Key, true)

	updated, err := m.SetPhone(acc.ID, "+15559876543")
	require.NoError(t, err)
	assert.False(t, updated.Authorized)
}

func TestDelete(t *testing.T) {
	m, _ := newTestManager(t)

	acc, err := m.Create("", "")
	require.NoError(t, err)

	require.NoError(t, m.Delete(acc.ID))
	_, err = m.Get(acc.ID)
	assert.Error(t, err)
	assert.Error(t, m.Delete(acc.ID))
}
