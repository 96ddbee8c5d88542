// Package authsession resolves and persists the client's authentication
// state: a remote-verified identity when the network cooperates, a
// non-expired persisted record as fallback when it does not.
package authsession

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	"panny/internal/api"
)

// InactivityExpiry is how long a persisted record survives without activity.
const InactivityExpiry = 30 * 24 * time.Hour

var (
	recordBucket   = []byte("session")
	tokenBucket    = []byte("tokens")
	cooldownBucket = []byte("signup_cooldowns")

	recordKey = []byte("current")
)

// Record is the persisted auth record: the last known identity plus a save
// timestamp and a last-activity timestamp. LastActiveAt is monotonically
// non-decreasing.
type Record struct {
	Identity     *api.Identity `json:"identity"`
	SavedAt      int64         `json:"savedAt"`
	LastActiveAt int64         `json:"lastActiveAt"`
}

// Expired reports whether the record has outlived the inactivity window.
func (r *Record) Expired(now time.Time) bool {
	return now.UnixMilli()-r.LastActiveAt > InactivityExpiry.Milliseconds()
}

// RecordStore persists the auth record, bearer-token artifacts and signup
// cooldowns, independent of the chat cache.
type RecordStore struct {
	db  *bolt.DB
	now func() time.Time
}

// OpenRecordStore opens (or creates) the store at the given path.
func OpenRecordStore(path string) (*RecordStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "opening session database")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{recordBucket, tokenBucket, cooldownBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating buckets")
	}
	return &RecordStore{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *RecordStore) Close() error {
	return s.db.Close()
}

// Load reads the persisted record. A missing or malformed record yields
// (nil, false, nil) rather than an error.
func (s *RecordStore) Load() (*Record, bool, error) {
	var record *Record
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(recordBucket).Get(recordKey)
		if len(raw) == 0 {
			return nil
		}
		decoded := &Record{}
		if err := json.Unmarshal(raw, decoded); err != nil {
			// Treat a malformed record as absent.
			return nil
		}
		if decoded.Identity == nil || decoded.SavedAt == 0 || decoded.LastActiveAt == 0 {
			return nil
		}
		record = decoded
		return nil
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "reading record")
	}
	return record, record != nil, nil
}

// Save persists the identity with fresh timestamps.
func (s *RecordStore) Save(identity *api.Identity) error {
	now := s.now().UnixMilli()
	record := &Record{Identity: identity, SavedAt: now, LastActiveAt: now}
	encoded, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshaling record")
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recordBucket).Put(recordKey, encoded)
	})
	return errors.Wrap(err, "writing record")
}

// Touch bumps LastActiveAt on an existing record. It never resurrects a
// cleared record and never moves LastActiveAt backwards.
func (s *RecordStore) Touch() error {
	record, ok, err := s.Load()
	if err != nil || !ok {
		return err
	}
	if now := s.now().UnixMilli(); now > record.LastActiveAt {
		record.LastActiveAt = now
	}
	encoded, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, "marshaling record")
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recordBucket).Put(recordKey, encoded)
	})
	return errors.Wrap(err, "writing record")
}

// Clear purges the persisted record.
func (s *RecordStore) Clear() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(recordBucket).Delete(recordKey)
	})
	return errors.Wrap(err, "deleting record")
}

// SetToken stores a bearer-token artifact.
func (s *RecordStore) SetToken(name, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(tokenBucket).Put([]byte(name), []byte(value))
	})
	return errors.Wrap(err, "writing token")
}

// Token returns a stored token artifact, or "" when absent.
func (s *RecordStore) Token(name string) (string, error) {
	var value string
	err := s.db.View(func(tx *bolt.Tx) error {
		value = string(tx.Bucket(tokenBucket).Get([]byte(name)))
		return nil
	})
	return value, errors.Wrap(err, "reading token")
}

// ClearTokens removes every token artifact.
func (s *RecordStore) ClearTokens() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(tokenBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(tokenBucket)
		return err
	})
	return errors.Wrap(err, "clearing tokens")
}

// SetCooldown persists a signup cooldown deadline for an email.
func (s *RecordStore) SetCooldown(email string, until time.Time) error {
	encoded, err := json.Marshal(until.UnixMilli())
	if err != nil {
		return errors.Wrap(err, "marshaling cooldown")
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cooldownBucket).Put([]byte(email), encoded)
	})
	return errors.Wrap(err, "writing cooldown")
}

// Cooldown returns the persisted cooldown deadline for an email, if any.
func (s *RecordStore) Cooldown(email string) (time.Time, bool, error) {
	var until time.Time
	var ok bool
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(cooldownBucket).Get([]byte(email))
		if len(raw) == 0 {
			return nil
		}
		var milliseconds int64
		if err := json.Unmarshal(raw, &milliseconds); err != nil {
			// Skip malformed entries instead of failing the read.
			return nil
		}
		until = time.UnixMilli(milliseconds)
		ok = true
		return nil
	})
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, "reading cooldown")
	}
	return until, ok, nil
}

// ClearCooldown removes the cooldown for an email.
func (s *RecordStore) ClearCooldown(email string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cooldownBucket).Delete([]byte(email))
	})
	return errors.Wrap(err, "deleting cooldown")
}
