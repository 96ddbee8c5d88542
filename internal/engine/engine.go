// Package engine orchestrates, per conversation id and per auth state,
// where the active conversation's history comes from (remote store or local
// cache), and writes every new turn through to both.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"panny/internal/api"
	"panny/internal/authsession"
	"panny/internal/cache"
	"panny/internal/insight"
	"panny/internal/nav"
)

// Notifier surfaces user-visible warnings and errors.
type Notifier interface {
	Warn(text string)
	Error(text string)
}

// NopNotifier discards everything.
type NopNotifier struct{}

func (NopNotifier) Warn(string)  {}
func (NopNotifier) Error(string) {}

// OlderSource produces a batch of messages older than the existing ones,
// for the load-older operation.
type OlderSource func(ctx context.Context, conversationID string, existing []*api.Message) []*api.Message

// Engine reconciles the active conversation across the remote store, the
// local cache and the in-memory view.
type Engine struct {
	store    *cache.Store
	client   *api.Client
	auth     *authsession.Manager
	insights *insight.Throttler
	resolver *nav.Resolver
	notify   Notifier
	log      *zap.Logger
	now      func() time.Time
	older    OlderSource

	mu                    sync.Mutex
	view                  []*api.Message
	lastLoaded            string
	warnedUnauthenticated bool
	loadingOlder          bool
	otherConversations    int
}

// New engine.
func New(
	store *cache.Store,
	client *api.Client,
	auth *authsession.Manager,
	insights *insight.Throttler,
	resolver *nav.Resolver,
	notify Notifier,
	log *zap.Logger,
) *Engine {
	if notify == nil {
		notify = NopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:    store,
		client:   client,
		auth:     auth,
		insights: insights,
		resolver: resolver,
		notify:   notify,
		log:      log,
		now:      time.Now,
		older:    synthesizeOlder,
	}
}

// SetOlderSource overrides where load-older batches come from.
func (e *Engine) SetOlderSource(source OlderSource) {
	e.older = source
}

// Messages returns a copy of the active view.
func (e *Engine) Messages() []*api.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*api.Message(nil), e.view...)
}

// OtherConversationCount returns how many other conversations the remote
// store reported on the last load.
func (e *Engine) OtherConversationCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.otherConversations
}

// Reconcile loads the active conversation's history for the current
// (conversation id, auth state) pair. Each distinct pair is processed at
// most once; re-invocations with an unchanged pair are no-ops. While the
// auth state is still unknown, nothing is loaded.
func (e *Engine) Reconcile(ctx context.Context) {
	state, _ := e.auth.State()
	if state == authsession.StateUnknown {
		return
	}

	conversationID := e.resolver.ActiveID()
	e.store.SetActive(conversationID)

	authenticated := state == authsession.StateAuthenticated
	key := fmt.Sprintf("%s:%t", conversationID, authenticated)
	e.mu.Lock()
	if e.lastLoaded == key {
		e.mu.Unlock()
		return
	}
	e.lastLoaded = key
	e.mu.Unlock()

	if !authenticated {
		e.loadLocal(conversationID)
		return
	}

	history, err := e.client.GetHistory(ctx, conversationID, true)
	if err != nil {
		if api.IsUnauthenticated(err) {
			e.warnOnce("Please log in to view your chat history.")
		} else {
			e.log.Info("remote history load failed, falling back to cache",
				zap.String("conversation_id", conversationID), zap.Error(err))
		}
		e.loadLocal(conversationID)
		return
	}

	var messages []*api.Message
	if history.Conversation != nil {
		messages = history.Conversation.Messages
	}
	if len(messages) > 0 {
		e.setView(messages)
		if err := e.store.Set(conversationID, messages); err != nil {
			e.log.Warn("caching remote history failed", zap.Error(err))
		}
		e.insights.MaybeRefresh(ctx, conversationID, messages)
	} else {
		// The remote store has nothing for this conversation; the cache
		// may still hold turns taken while logged out.
		e.loadLocal(conversationID)
	}

	e.mu.Lock()
	e.otherConversations = len(history.OtherConversations)
	e.mu.Unlock()
}

// loadLocal adopts the cached entry as the active view, when present and
// non-empty.
func (e *Engine) loadLocal(conversationID string) {
	messages, ok, err := e.store.Get(conversationID)
	if err != nil {
		e.log.Warn("loading cached history failed", zap.Error(err))
		return
	}
	if ok && len(messages) > 0 {
		e.setView(messages)
	}
}

// warnOnce surfaces an unauthenticated warning a single time for the life
// of the engine.
func (e *Engine) warnOnce(text string) {
	e.mu.Lock()
	warned := e.warnedUnauthenticated
	e.warnedUnauthenticated = true
	e.mu.Unlock()
	if !warned {
		e.notify.Error(text)
	}
}

func (e *Engine) setView(messages []*api.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view = append([]*api.Message(nil), messages...)
}

func (e *Engine) appendView(message *api.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.view = append(e.view, message)
}
