package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"panny/internal/api"
	"panny/internal/authsession"
)

const (
	fallbackReply      = "I'm here and listening."
	signedOutReply     = "You're signed out. Please log in again to continue."
	unreachableReply   = "I couldn't reach the server. Please try again."
	saveLoginWarning   = "Please log in again to save chat history."
	saveFailedWarning  = "Failed to save chat history. Your chat will remain local."
	saveConfigWarning  = "Chat saving is not configured on the server. Your messages will remain local."
)

// SendTurn appends the user's message optimistically, asks the assistant
// for a reply, and writes the result through to the local cache and, when
// authenticated, the remote store. The conversation is never left without a
// visible response: remote failures synthesize an apology instead. Remote
// outcomes never roll back the optimistic local append.
func (e *Engine) SendTurn(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	conversationID := e.resolver.ActiveID()
	e.store.SetActive(conversationID)

	userMessage := &api.Message{
		ID:        uuid.New().String(),
		Role:      api.RoleUser,
		Text:      text,
		Timestamp: e.now().UnixMilli(),
	}
	e.appendView(userMessage)
	if err := e.store.Append(userMessage); err != nil {
		e.log.Warn("caching user message failed", zap.Error(err))
	}

	response, err := e.client.SendChat(ctx, e.contextualPrompt(text), conversationID)
	replyText := fallbackReply
	switch {
	case err == nil:
		if response.Reply != "" {
			replyText = response.Reply
		}
	case api.IsUnauthenticated(err):
		replyText = signedOutReply
	default:
		replyText = unreachableReply
	}
	reply := &api.Message{
		ID:        uuid.New().String(),
		Role:      api.RoleAssistant,
		Text:      replyText,
		Timestamp: e.now().UnixMilli(),
	}
	e.appendView(reply)

	messages := e.Messages()
	if err := e.store.Set(conversationID, messages); err != nil {
		e.log.Warn("caching conversation failed", zap.Error(err))
	}

	state, _ := e.auth.State()
	if state == authsession.StateAuthenticated {
		e.persistRemote(ctx, conversationID, messages)
		e.insights.MaybeRefresh(ctx, conversationID, messages)
	}
}

// contextualPrompt prepends a light hint carrying the display name, when an
// identity is known.
func (e *Engine) contextualPrompt(text string) string {
	_, identity := e.auth.State()
	if identity == nil {
		return text
	}
	name := identity.Name()
	if name == "" {
		return text
	}
	return fmt.Sprintf("[User's name is %s. Address them by name occasionally.]\n\n%s", name, text)
}

// persistRemote attempts a best-effort remote save, surfacing the failure
// taxonomy without ever failing the turn.
func (e *Engine) persistRemote(ctx context.Context, conversationID string, messages []*api.Message) {
	response, err := e.client.SaveHistory(ctx, conversationID, messages)
	if err != nil {
		if api.IsUnauthenticated(err) {
			e.warnOnce(saveLoginWarning)
			return
		}
		e.notify.Error(saveFailedWarning)
		return
	}
	if response.Warning != "" {
		e.notify.Warn(saveConfigWarning)
	}
}
