package cache

import (
	"database/sql"
	"time"

	"github.com/pkg/errors"
)

const totalSessionTimeStat = "total_session_time_ms"

// addSessionTime folds an elapsed duration into the lifetime total.
func (s *Store) addSessionTime(elapsed time.Duration) error {
	if elapsed <= 0 {
		return nil
	}
	_, err := s.db.Exec(`
		INSERT INTO stats (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = value + excluded.value
	`, totalSessionTimeStat, elapsed.Milliseconds())
	if err != nil {
		return errors.Wrap(err, "updating session time stat")
	}
	return nil
}

// TotalSessionTime returns the accumulated lifetime time spent in
// conversations. It does not include the currently running session.
func (s *Store) TotalSessionTime() (time.Duration, error) {
	var milliseconds int64
	err := s.db.QueryRow(`
		SELECT value FROM stats WHERE name = ?
	`, totalSessionTimeStat).Scan(&milliseconds)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "querying session time stat")
	}
	return time.Duration(milliseconds) * time.Millisecond, nil
}

// List returns the ids of all cached conversations, most recently updated
// first.
func (s *Store) List() ([]string, error) {
	rows, err := s.db.Query(`
		SELECT id
		FROM conversations
		ORDER BY update_timestamp DESC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "querying conversations")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scanning conversation row")
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating conversation rows")
	}
	return ids, nil
}
