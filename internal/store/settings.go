package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"fmt"

	"github.com/fetcharr/fetcharr/internal/crypto"
)

const secretSaltKey = "secret_salt"

// SettingsStore is a small key/value table for process-level durable
// settings, such as the key-derivation salt.
type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SettingsStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// EnsureSecretSalt returns the persistent key-derivation salt, generating
// and storing one on first boot. The salt is not secret by itself; it only
// has to stay stable for previously encrypted values to remain readable.
func (s *SettingsStore) EnsureSecretSalt(ctx context.Context) ([]byte, error) {
	encoded, err := s.Get(ctx, secretSaltKey)
	if err == nil {
		salt, decodeErr := base64.StdEncoding.DecodeString(encoded)
		if decodeErr != nil {
			return nil, fmt.Errorf("stored salt is corrupt: %w", decodeErr)
		}
		return salt, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	if err := s.Set(ctx, secretSaltKey, base64.StdEncoding.EncodeToString(salt)); err != nil {
		return nil, err
	}
	return salt, nil
}
