package cache

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"panny/internal/api"
)

// Get returns the cached messages for a conversation. A conversation the
// cache has never seen yields (nil, false, nil).
func (s *Store) Get(id string) ([]*api.Message, bool, error) {
	var messagesJSON string
	err := s.db.QueryRow(`
		SELECT messages
		FROM conversations
		WHERE id = ?
	`, id).Scan(&messagesJSON)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "querying conversation")
	}

	var messages []*api.Message
	if err := json.Unmarshal([]byte(messagesJSON), &messages); err != nil {
		return nil, false, errors.Wrap(err, "unmarshaling messages")
	}
	return messages, true, nil
}

// Set replaces the full message list of a conversation.
func (s *Store) Set(id string, messages []*api.Message) error {
	if messages == nil {
		messages = []*api.Message{}
	}
	encoded, err := json.Marshal(messages)
	if err != nil {
		return errors.Wrap(err, "marshaling messages")
	}

	now := s.now().UnixMilli()
	// REPLACE INTO handles both insert and update; creation_timestamp is
	// preserved for existing rows via the coalescing subquery.
	_, err = s.db.Exec(`
		REPLACE INTO conversations (id, creation_timestamp, update_timestamp, messages)
		VALUES (?, COALESCE((SELECT creation_timestamp FROM conversations WHERE id = ?), ?), ?, ?)
	`, id, id, now, now, string(encoded))
	if err != nil {
		return errors.Wrap(err, "writing conversation")
	}
	return nil
}

// Append adds a message to the active conversation. With no active
// conversation set this is a no-op: there is no default bucket. The very
// first message of a fresh conversation starts the elapsed-time timer.
func (s *Store) Append(message *api.Message) error {
	s.mu.Lock()
	id := s.activeID
	s.mu.Unlock()
	if id == "" {
		return nil
	}

	messages, _, err := s.Get(id)
	if err != nil {
		return errors.Wrap(err, "loading active conversation")
	}
	if len(messages) == 0 {
		s.mu.Lock()
		if s.startedAt.IsZero() {
			s.startedAt = s.now()
		}
		s.mu.Unlock()
	}
	return s.Set(id, append(messages, message))
}

// PrependBatch splices a batch of older messages at the head of the active
// conversation. Existing order is preserved: result is older ++ existing.
func (s *Store) PrependBatch(older []*api.Message) error {
	s.mu.Lock()
	id := s.activeID
	s.mu.Unlock()
	if id == "" || len(older) == 0 {
		return nil
	}

	messages, _, err := s.Get(id)
	if err != nil {
		return errors.Wrap(err, "loading active conversation")
	}
	combined := make([]*api.Message, 0, len(older)+len(messages))
	combined = append(combined, older...)
	combined = append(combined, messages...)
	return s.Set(id, combined)
}

// ClearActive wipes the active conversation's message list, first folding
// the elapsed session time into the lifetime total.
func (s *Store) ClearActive() error {
	s.mu.Lock()
	id := s.activeID
	if !s.startedAt.IsZero() {
		elapsed := s.now().Sub(s.startedAt)
		s.startedAt = time.Time{}
		s.mu.Unlock()
		if err := s.addSessionTime(elapsed); err != nil {
			return errors.Wrap(err, "accumulating session time")
		}
	} else {
		s.mu.Unlock()
	}

	if id == "" {
		return nil
	}
	return s.Set(id, nil)
}
