package cache

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panny/internal/api"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "chats.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func message(role, text string) *api.Message {
	return &api.Message{
		ID:        fmt.Sprintf("%s-%s", role, text),
		Role:      role,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	store := newTestStore(t)

	messages := []*api.Message{
		message(api.RoleUser, "hello"),
		message(api.RoleAssistant, "hi there"),
	}
	require.NoError(t, store.Set("abc", messages))

	got, ok, err := store.Get("abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, messages, got)
}

func TestGetUnknownConversation(t *testing.T) {
	store := newTestStore(t)
	got, ok, err := store.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestAppendWithoutActiveConversationIsNoop(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Append(message(api.RoleUser, "orphan")))

	ids, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestAppendToActiveConversation(t *testing.T) {
	store := newTestStore(t)
	store.SetActive("abc")

	require.NoError(t, store.Append(message(api.RoleUser, "one")))
	require.NoError(t, store.Append(message(api.RoleAssistant, "two")))

	got, ok, err := store.Get("abc")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Text)
	assert.Equal(t, "two", got[1].Text)
}

func TestPrependBatchNeverReordersExisting(t *testing.T) {
	store := newTestStore(t)
	store.SetActive("abc")

	existing := []*api.Message{
		message(api.RoleUser, "a"),
		message(api.RoleAssistant, "b"),
	}
	require.NoError(t, store.Set("abc", existing))

	older := []*api.Message{
		message(api.RoleAssistant, "older-1"),
		message(api.RoleAssistant, "older-2"),
	}
	require.NoError(t, store.PrependBatch(older))

	got, _, err := store.Get("abc")
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "older-1", got[0].Text)
	assert.Equal(t, "older-2", got[1].Text)
	assert.Equal(t, "a", got[2].Text)
	assert.Equal(t, "b", got[3].Text)
}

func TestClearActiveAccumulatesSessionTime(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	store.now = func() time.Time { return now }
	store.SetActive("abc")

	// First message of a fresh conversation starts the timer.
	require.NoError(t, store.Append(message(api.RoleUser, "hello")))
	now = now.Add(90 * time.Second)
	require.NoError(t, store.ClearActive())

	total, err := store.TotalSessionTime()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, total)

	// The active message list was wiped, not deleted.
	got, ok, err := store.Get("abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, got)

	// A second clear without a running timer adds nothing.
	require.NoError(t, store.ClearActive())
	total, err = store.TotalSessionTime()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, total)
}

func TestSessionTimeAccumulatesAcrossConversations(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	store.now = func() time.Time { return now }

	store.SetActive("one")
	require.NoError(t, store.Append(message(api.RoleUser, "hi")))
	now = now.Add(30 * time.Second)
	require.NoError(t, store.ClearActive())

	store.SetActive("two")
	require.NoError(t, store.Append(message(api.RoleUser, "hi again")))
	now = now.Add(60 * time.Second)
	require.NoError(t, store.ClearActive())

	total, err := store.TotalSessionTime()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, total)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chats.db")
	store, err := New(path)
	require.NoError(t, err)

	messages := []*api.Message{message(api.RoleUser, "durable")}
	require.NoError(t, store.Set("abc", messages))
	require.NoError(t, store.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, ok, err := reopened.Get("abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, messages, got)
}

func TestListOrdersByMostRecentUpdate(t *testing.T) {
	store := newTestStore(t)
	base := time.Now()
	store.now = func() time.Time { return base }
	require.NoError(t, store.Set("first", []*api.Message{message(api.RoleUser, "1")}))
	store.now = func() time.Time { return base.Add(time.Second) }
	require.NoError(t, store.Set("second", []*api.Message{message(api.RoleUser, "2")}))

	ids, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first"}, ids)
}
