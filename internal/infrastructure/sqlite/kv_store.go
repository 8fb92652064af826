package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/handwerkpro/handwerk-api/internal/domain/repository"
)

var _ repository.KVStore = (*KVStore)(nil)

// KVStore durable key-value store on the kv table. Values round-trip
// byte-for-byte; the sync engine stores JSON arrays in them.
type KVStore struct {
	db *sql.DB
}

// NewKVStore builds the adapter.
func NewKVStore(db *sql.DB) *KVStore {
	return &KVStore{db: db}
}

// Get returns the value and whether the key exists.
func (s *KVStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv get %q: %w", key, err)
	}
	return value, true, nil
}

// Set inserts or replaces the value. Failures here (disk full, locked
// beyond the busy timeout) are fatal to the calling operation.
func (s *KVStore) Set(key string, value []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

// Delete removes the key; deleting a missing key is not an error.
func (s *KVStore) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kv delete %q: %w", key, err)
	}
	return nil
}
