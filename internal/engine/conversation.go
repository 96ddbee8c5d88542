package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"panny/internal/api"
	"panny/internal/authsession"
)

// StartNewConversation persists the outgoing conversation best-effort when
// authenticated, resets the view, the cache's active entry and the insight
// counters, and mints a fresh conversation id via a stack-pushing
// navigation so the new id's lifecycle restarts cleanly.
func (e *Engine) StartNewConversation(ctx context.Context) string {
	outgoing := e.Messages()
	state, _ := e.auth.State()
	if len(outgoing) > 0 && state == authsession.StateAuthenticated {
		conversationID := e.resolver.ActiveID()
		response, err := e.client.SaveHistory(ctx, conversationID, outgoing)
		if err != nil {
			// Best-effort: the outgoing conversation stays in the cache.
			e.log.Info("persisting outgoing conversation failed", zap.Error(err))
		} else if response.Warning != "" {
			e.notify.Warn(saveConfigWarning)
		}
	}

	if err := e.store.ClearActive(); err != nil {
		e.log.Warn("clearing active conversation failed", zap.Error(err))
	}
	e.insights.Reset()

	newID := e.resolver.PushNewID()
	e.store.SetActive(newID)
	if err := e.store.Set(newID, nil); err != nil {
		e.log.Warn("initializing new conversation failed", zap.Error(err))
	}

	e.mu.Lock()
	e.view = nil
	e.lastLoaded = ""
	e.mu.Unlock()
	return newID
}

// LoadOlder prepends a batch of earlier messages to the active view and
// cache. Overlapping invocations are rejected while one is in flight.
func (e *Engine) LoadOlder(ctx context.Context) {
	e.mu.Lock()
	if e.loadingOlder {
		e.mu.Unlock()
		return
	}
	e.loadingOlder = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.loadingOlder = false
		e.mu.Unlock()
	}()

	conversationID := e.resolver.ActiveID()
	e.store.SetActive(conversationID)

	batch := e.older(ctx, conversationID, e.Messages())
	if len(batch) == 0 {
		return
	}

	if err := e.store.PrependBatch(batch); err != nil {
		e.log.Warn("caching older messages failed", zap.Error(err))
	}

	e.mu.Lock()
	combined := make([]*api.Message, 0, len(batch)+len(e.view))
	combined = append(combined, batch...)
	combined = append(combined, e.view...)
	e.view = combined
	e.mu.Unlock()
}

// synthesizeOlder is the minimal-contract older-message source.
func synthesizeOlder(_ context.Context, _ string, _ []*api.Message) []*api.Message {
	now := time.Now()
	batch := make([]*api.Message, 0, 4)
	for i := 0; i < 4; i++ {
		batch = append(batch, &api.Message{
			ID:        uuid.New().String(),
			Role:      api.RoleAssistant,
			Text:      fmt.Sprintf("Older thought %d", i+1),
			Timestamp: now.Add(-time.Duration(i+1) * time.Hour).UnixMilli(),
		})
	}
	return batch
}
