package db

import (
	"database/sql"
	"fmt"
	"time"
)

// GetSlot reads a local persistence slot. The second return value reports
// whether the slot exists.
func GetSlot(db *sql.DB, key string) (string, bool, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM slots WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read slot %s: %w", key, err)
	}
	return value, true, nil
}

// SetSlot writes a local persistence slot, replacing any existing value.
func SetSlot(db *sql.DB, key, value string) error {
	_, err := db.Exec(`
		INSERT INTO slots (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write slot %s: %w", key, err)
	}
	return nil
}

// DeleteSlot removes a local persistence slot if present.
func DeleteSlot(db *sql.DB, key string) error {
	if _, err := db.Exec(`DELETE FROM slots WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete slot %s: %w", key, err)
	}
	return nil
}

// GetDocument reads the remote replica document for a user. The second
// return value reports whether a document exists.
func GetDocument(db *sql.DB, userID string) (string, bool, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM documents WHERE user_id = ?`, userID).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read document for %s: %w", userID, err)
	}
	return value, true, nil
}

// SetDocument writes the remote replica document for a user (full overwrite).
func SetDocument(db *sql.DB, userID, value string) error {
	_, err := db.Exec(`
		INSERT INTO documents (user_id, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		userID, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to write document for %s: %w", userID, err)
	}
	return nil
}
