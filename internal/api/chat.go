package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/pkg/errors"
)

// Role of a chat message author.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn. Immutable once created.
type Message struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// ChatResponse is the reply-generation response.
type ChatResponse struct {
	Reply          string `json:"reply"`
	Model          string `json:"model,omitempty"`
	Source         string `json:"source,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
}

// Conversation as returned by the history endpoint.
type Conversation struct {
	ID       string     `json:"id,omitempty"`
	Messages []*Message `json:"messages"`
}

// HistoryResponse is the history endpoint response.
type HistoryResponse struct {
	Conversation       *Conversation   `json:"conversation"`
	OtherConversations []*Conversation `json:"otherConversations"`
}

// SaveHistoryResponse acknowledges a history save. Warning is set when the
// server has no persistence backing configured.
type SaveHistoryResponse struct {
	Warning string `json:"warning,omitempty"`
}

// SendChat asks the assistant to generate a reply.
func (c *Client) SendChat(ctx context.Context, prompt, conversationID string) (*ChatResponse, error) {
	body := map[string]string{"prompt": prompt, "conversationId": conversationID}
	response := &ChatResponse{}
	if err := c.post(ctx, c.apiHost+"/api/chat", body, response); err != nil {
		return nil, errors.Wrap(err, "sending chat")
	}
	return response, nil
}

// GetHistory fetches the remote history of a conversation.
func (c *Client) GetHistory(ctx context.Context, conversationID string, includeMessages bool) (*HistoryResponse, error) {
	query := url.Values{}
	query.Set("conversationId", conversationID)
	if includeMessages {
		query.Set("includeMessages", "true")
	}
	response := &HistoryResponse{}
	endpoint := fmt.Sprintf("%s/api/chat/history/get?%s", c.apiHost, query.Encode())
	if err := c.get(ctx, endpoint, response); err != nil {
		return nil, errors.Wrap(err, "getting history")
	}
	return response, nil
}

// SaveHistory persists the full message list of a conversation remotely.
func (c *Client) SaveHistory(ctx context.Context, conversationID string, messages []*Message) (*SaveHistoryResponse, error) {
	body := map[string]any{"conversationId": conversationID, "messages": messages}
	response := &SaveHistoryResponse{}
	if err := c.post(ctx, c.apiHost+"/api/chat/history", body, response); err != nil {
		return nil, errors.Wrap(err, "saving history")
	}
	return response, nil
}
