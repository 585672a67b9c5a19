package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Well-known kv keys. Each holds one JSON document with an explicit
// schema owned by its writing component; readers validate on load.
const (
	KeyVisitFrequency  = "visitFrequency"
	KeyTopVisitedURLs  = "topVisitedUrls"
	KeyLastCleanupTime = "lastCleanupTime"
)

// ErrQuotaExceeded is returned by PutJSON when the serialized payload is
// larger than the byte budget for the key. Callers are expected to shrink
// their payload and retry rather than treat this as fatal.
var ErrQuotaExceeded = errors.New("storage: value exceeds quota")

// ErrNotFound is returned by GetJSON when the key has never been written.
var ErrNotFound = errors.New("storage: key not found")

// PutJSON serializes v and upserts it under key. maxBytes > 0 enforces a
// quota on the serialized form; 0 disables the check.
func PutJSON(db *sql.DB, key string, v any, maxBytes int) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %q: %w", key, err)
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return fmt.Errorf("%w: key %q is %d bytes (limit %d)", ErrQuotaExceeded, key, len(data), maxBytes)
	}

	_, err = db.Exec(`
INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, string(data),
	)
	if err != nil {
		return fmt.Errorf("upsert %q: %w", key, err)
	}
	return nil
}

// GetJSON loads the document stored under key into v.
func GetJSON(db *sql.DB, key string, v any) error {
	var raw string
	err := db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		return fmt.Errorf("query %q: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode %q: %w", key, err)
	}
	return nil
}

// DeleteKey removes a kv entry. Deleting a missing key is not an error.
func DeleteKey(db *sql.DB, key string) error {
	if _, err := db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}
