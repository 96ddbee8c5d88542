package authsession

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panny/internal/api"
)

func newTestRecordStore(t *testing.T) *RecordStore {
	t.Helper()
	store, err := OpenRecordStore(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testIdentity() *api.Identity {
	return &api.Identity{UserID: "u1", Email: "a@b.c", DisplayName: "Ada"}
}

func TestRecordSaveLoadClear(t *testing.T) {
	store := newTestRecordStore(t)

	_, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(testIdentity()))
	record, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, testIdentity(), record.Identity)
	assert.Equal(t, record.SavedAt, record.LastActiveAt)

	require.NoError(t, store.Clear())
	_, ok, err = store.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRecordExpiryBoundary(t *testing.T) {
	now := time.Now()
	record := &Record{Identity: testIdentity()}

	record.LastActiveAt = now.Add(-InactivityExpiry).Add(-time.Millisecond).UnixMilli()
	assert.True(t, record.Expired(now))

	record.LastActiveAt = now.Add(-InactivityExpiry).Add(time.Millisecond).UnixMilli()
	assert.False(t, record.Expired(now))
}

func TestTouchIsMonotoneAndNeverResurrects(t *testing.T) {
	store := newTestRecordStore(t)
	base := time.Now()
	store.now = func() time.Time { return base }

	require.NoError(t, store.Save(testIdentity()))

	// Later touch moves lastActiveAt forward.
	store.now = func() time.Time { return base.Add(time.Minute) }
	require.NoError(t, store.Touch())
	record, _, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Minute).UnixMilli(), record.LastActiveAt)

	// A clock that went backwards never decreases it.
	store.now = func() time.Time { return base.Add(-time.Hour) }
	require.NoError(t, store.Touch())
	record, _, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Minute).UnixMilli(), record.LastActiveAt)

	// Touching a cleared record does not resurrect it.
	require.NoError(t, store.Clear())
	require.NoError(t, store.Touch())
	_, ok, err := store.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTokenArtifacts(t *testing.T) {
	store := newTestRecordStore(t)

	require.NoError(t, store.SetToken("access_token", "at"))
	require.NoError(t, store.SetToken("refresh_token", "rt"))

	token, err := store.Token("access_token")
	require.NoError(t, err)
	assert.Equal(t, "at", token)

	require.NoError(t, store.ClearTokens())
	token, err = store.Token("access_token")
	require.NoError(t, err)
	assert.Empty(t, token)
	token, err = store.Token("refresh_token")
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestCooldownPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")
	store, err := OpenRecordStore(path)
	require.NoError(t, err)

	until := time.Now().Add(time.Minute).Truncate(time.Millisecond)
	require.NoError(t, store.SetCooldown("a@b.c", until))
	require.NoError(t, store.Close())

	reopened, err := OpenRecordStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.Cooldown("a@b.c")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, until.UnixMilli(), got.UnixMilli())

	require.NoError(t, reopened.ClearCooldown("a@b.c"))
	_, ok, err = reopened.Cooldown("a@b.c")
	require.NoError(t, err)
	assert.False(t, ok)
}
