package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"panny/internal/api"
)

func conversationWithUserCount(userCount int) []*api.Message {
	messages := make([]*api.Message, 0, userCount*2)
	for i := 0; i < userCount; i++ {
		messages = append(messages,
			&api.Message{ID: fmt.Sprintf("u%d", i), Role: api.RoleUser, Text: fmt.Sprintf("user %d", i)},
			&api.Message{ID: fmt.Sprintf("a%d", i), Role: api.RoleAssistant, Text: fmt.Sprintf("reply %d", i)},
		)
	}
	return messages
}

func newThrottler(t *testing.T, handler http.HandlerFunc) (*Throttler, *atomic.Int64) {
	t.Helper()
	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	client := api.New(server.URL, server.URL, 5*time.Second)
	return New(client, zap.NewNop()), &requests
}

// settle blocks until the outstanding background refresh, if any, finished.
func settle(t *testing.T, throttler *Throttler) {
	t.Helper()
	require.Eventually(t, func() bool { return !throttler.Computing() },
		2*time.Second, 5*time.Millisecond)
}

func TestRefreshCadence(t *testing.T) {
	throttler, requests := newThrottler(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"reply": "an insight"})
	})

	// Counts 1,1,2,2,3,4 issue refreshes at 1, 2 and 4 only.
	expected := []int64{1, 1, 2, 2, 2, 3}
	for i, userCount := range []int{1, 1, 2, 2, 3, 4} {
		throttler.MaybeRefresh(context.Background(), "abc", conversationWithUserCount(userCount))
		settle(t, throttler)
		assert.Equal(t, expected[i], requests.Load(), "after count %d", userCount)
	}
}

func TestNoRefreshWithoutUserMessages(t *testing.T) {
	throttler, requests := newThrottler(t, func(w http.ResponseWriter, r *http.Request) {})

	throttler.MaybeRefresh(context.Background(), "abc", nil)
	throttler.MaybeRefresh(context.Background(), "abc", []*api.Message{
		{ID: "a1", Role: api.RoleAssistant, Text: "hello there"},
	})
	assert.False(t, throttler.Computing())
	assert.Zero(t, requests.Load())
	assert.Equal(t, Default, throttler.Insight())
}

func TestRefreshRunsInBackground(t *testing.T) {
	release := make(chan struct{})
	throttler, _ := newThrottler(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		json.NewEncoder(w).Encode(map[string]string{"reply": "a slow insight"})
	})

	// MaybeRefresh returns while the request is still in flight.
	throttler.MaybeRefresh(context.Background(), "abc", conversationWithUserCount(1))
	assert.True(t, throttler.Computing())
	assert.Equal(t, Default, throttler.Insight())

	close(release)
	settle(t, throttler)
	assert.Equal(t, "a slow insight", throttler.Insight())
}

func TestSupersededRefreshIsCancelled(t *testing.T) {
	var mu sync.Mutex
	var cancelled bool
	arrived := make(chan struct{})
	throttler, _ := newThrottler(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if !strings.Contains(body["prompt"], "user 1") {
			// First request (count 1): hold until its context is cancelled.
			close(arrived)
			<-r.Context().Done()
			mu.Lock()
			cancelled = true
			mu.Unlock()
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"reply": "second insight"})
	})

	throttler.MaybeRefresh(context.Background(), "abc", conversationWithUserCount(1))
	require.True(t, throttler.Computing())
	// Only supersede once the first request is demonstrably in flight.
	<-arrived

	// The next qualifying count supersedes the in-flight request.
	throttler.MaybeRefresh(context.Background(), "abc", conversationWithUserCount(2))
	settle(t, throttler)
	assert.Equal(t, "second insight", throttler.Insight())

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return cancelled
	}, 2*time.Second, 5*time.Millisecond)

	// The superseded request's outcome never clobbers the newer one.
	assert.Equal(t, "second insight", throttler.Insight())
	assert.False(t, throttler.Computing())
}

func TestRefreshStripsLabelArtifact(t *testing.T) {
	throttler, _ := newThrottler(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"reply": "Insight:  feeling hopeful today"})
	})

	throttler.MaybeRefresh(context.Background(), "abc", conversationWithUserCount(1))
	settle(t, throttler)
	assert.Equal(t, "feeling hopeful today", throttler.Insight())
}

func TestRefreshFailureRevertsToDefault(t *testing.T) {
	status := atomic.Int64{}
	status.Store(http.StatusOK)
	throttler, _ := newThrottler(t, func(w http.ResponseWriter, r *http.Request) {
		if status.Load() != http.StatusOK {
			w.WriteHeader(int(status.Load()))
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"reply": "a real insight"})
	})

	throttler.MaybeRefresh(context.Background(), "abc", conversationWithUserCount(1))
	settle(t, throttler)
	require.Equal(t, "a real insight", throttler.Insight())

	status.Store(http.StatusBadGateway)
	throttler.MaybeRefresh(context.Background(), "abc", conversationWithUserCount(2))
	settle(t, throttler)
	assert.Equal(t, Default, throttler.Insight())
}

func TestResetRestoresDefaultAndCounters(t *testing.T) {
	throttler, requests := newThrottler(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"reply": "an insight"})
	})

	throttler.MaybeRefresh(context.Background(), "abc", conversationWithUserCount(1))
	settle(t, throttler)
	require.Equal(t, int64(1), requests.Load())
	throttler.Reset()
	assert.Equal(t, Default, throttler.Insight())

	// After a reset the first user message qualifies again.
	throttler.MaybeRefresh(context.Background(), "abc", conversationWithUserCount(1))
	settle(t, throttler)
	assert.Equal(t, int64(2), requests.Load())
}

func TestPromptCarriesRecentConversation(t *testing.T) {
	var mu sync.Mutex
	var prompt string
	throttler, _ := newThrottler(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		prompt = body["prompt"]
		mu.Unlock()
		json.NewEncoder(w).Encode(map[string]string{"reply": "ok"})
	})

	messages := conversationWithUserCount(8) // 16 messages, window is 10
	throttler.MaybeRefresh(context.Background(), "abc", messages)
	settle(t, throttler)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, prompt, "User: user 7")
	assert.Contains(t, prompt, "Panny: reply 7")
	assert.NotContains(t, prompt, "user 1\n")
	assert.True(t, strings.HasSuffix(prompt, "Insight:"))
}
