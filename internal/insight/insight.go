// Package insight derives a lazy one-line summary of the conversation at a
// throttled cadence: the first user message triggers a refresh, then every
// even user-message count, never twice for the same count.
package insight

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"

	"panny/internal/api"
)

// Default is shown until a conversation produces an insight, and again
// whenever a refresh fails.
const Default = "Start a conversation with Panny to receive personalized insights."

// summaryWindow is how many trailing messages feed the summary prompt.
const summaryWindow = 10

var labelPrefix = regexp.MustCompile(`(?i)^insight:\s*`)

// Throttler computes the conversation insight.
type Throttler struct {
	client *api.Client
	log    *zap.Logger

	mu         sync.Mutex
	insight    string
	lastCount  int
	computing  bool
	cancel     context.CancelFunc
	generation int
}

// New throttler.
func New(client *api.Client, log *zap.Logger) *Throttler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Throttler{
		client:  client,
		log:     log,
		insight: Default,
	}
}

// Insight returns the current insight text.
func (t *Throttler) Insight() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.insight
}

// Computing reports whether a refresh is outstanding.
func (t *Throttler) Computing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.computing
}

// Reset clears the counters and restores the default insight, for a fresh
// conversation.
func (t *Throttler) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.generation++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.insight = Default
	t.lastCount = 0
	t.computing = false
}

// qualifies implements the cadence: fire on the first user message, then on
// every even user-message count.
func qualifies(userCount int) bool {
	return userCount > 0 && (userCount == 1 || userCount%2 == 0)
}

// MaybeRefresh issues a summarization request when the user-message count
// qualifies and differs from the count at the last issuance. A repeat call
// with an unchanged qualifying count is a no-op; a superseding call cancels
// the outstanding request. The request itself runs in the background so
// callers never wait on it.
func (t *Throttler) MaybeRefresh(ctx context.Context, conversationID string, messages []*api.Message) {
	userCount := 0
	for _, message := range messages {
		if message.Role == api.RoleUser {
			userCount++
		}
	}

	t.mu.Lock()
	if userCount == 0 {
		t.insight = Default
		t.mu.Unlock()
		return
	}
	if !qualifies(userCount) || userCount == t.lastCount {
		t.mu.Unlock()
		return
	}
	t.lastCount = userCount
	t.generation++
	generation := t.generation
	if t.cancel != nil {
		// Supersede the outstanding request.
		t.cancel()
	}
	ctx, t.cancel = context.WithCancel(ctx)
	t.computing = true
	t.mu.Unlock()

	go t.refresh(ctx, generation, conversationID, buildPrompt(messages))
}

// refresh settles the outcome of one summarization request. A stale
// generation means the request was superseded or reset while in flight, and
// its outcome is discarded.
func (t *Throttler) refresh(ctx context.Context, generation int, conversationID, prompt string) {
	response, err := t.client.SendChat(ctx, prompt, conversationID)

	t.mu.Lock()
	defer t.mu.Unlock()
	if generation != t.generation {
		return
	}
	t.computing = false
	if t.cancel != nil {
		// Release the completed request's context.
		t.cancel()
		t.cancel = nil
	}
	if err != nil {
		// Background enrichment never surfaces errors to the user.
		t.log.Debug("insight refresh failed", zap.Error(err))
		t.insight = Default
		return
	}
	if clean := strings.TrimSpace(labelPrefix.ReplaceAllString(response.Reply, "")); clean != "" {
		t.insight = clean
	}
}

func buildPrompt(messages []*api.Message) string {
	window := messages
	if len(window) > summaryWindow {
		window = window[len(window)-summaryWindow:]
	}
	lines := make([]string, 0, len(window))
	for _, message := range window {
		author := "Panny"
		if message.Role == api.RoleUser {
			author = "User"
		}
		lines = append(lines, author+": "+message.Text)
	}
	return "Based on this brief conversation, write a short empathetic insight (1-2 sentences max) " +
		"about what the user might be feeling or processing. Be warm and supportive. " +
		"Do not ask questions, just observe:\n\n" +
		strings.Join(lines, "\n") +
		"\n\nInsight:"
}
