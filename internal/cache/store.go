// Package cache implements the persisted local conversation cache. It owns
// the canonical in-process message lists; callers only ever hold copies.
package cache

import (
	"database/sql"
	"sync"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// Store implements a SQLite cache mapping conversation id to its messages,
// plus a lifetime time-in-session counter.
type Store struct {
	db *sql.DB

	mu        sync.Mutex
	activeID  string
	startedAt time.Time
	now       func() time.Time
}

// New store.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			creation_timestamp INTEGER NOT NULL,
			update_timestamp INTEGER NOT NULL,
			messages TEXT NOT NULL
		)
	`)
	if err != nil {
		return nil, errors.Wrap(err, "creating conversations table")
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS stats (
			name TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, errors.Wrap(err, "creating stats table")
	}

	return &Store{
		db:  db,
		now: time.Now,
	}, nil
}

// SetActive marks the conversation all appends go to.
func (s *Store) SetActive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == id {
		return
	}
	s.activeID = id
	s.startedAt = time.Time{}
}

// ActiveID returns the currently active conversation id, if any.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
