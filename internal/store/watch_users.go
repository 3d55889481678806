package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/crypto"
)

// WatchUser is a member of the household whose watchlist is polled.
type WatchUser struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"displayName"`
	AccessToken string    `json:"-"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// WatchUserStore provides durable access to watch users.
// Access tokens are encrypted at rest.
type WatchUserStore struct {
	db      *sql.DB
	secrets *crypto.SecretStore
	logger  zerolog.Logger
}

// NewWatchUserStore creates a new watch user store.
func NewWatchUserStore(db *sql.DB, secrets *crypto.SecretStore, logger zerolog.Logger) *WatchUserStore {
	return &WatchUserStore{
		db:      db,
		secrets: secrets,
		logger:  logger.With().Str("component", "watch-user-store").Logger(),
	}
}

const watchUserColumns = "id, display_name, access_token, active, created_at, updated_at"

// ListActive returns all users whose watchlists should be polled, in ID order.
func (s *WatchUserStore) ListActive(ctx context.Context) ([]WatchUser, error) {
	return s.list(ctx, "SELECT "+watchUserColumns+" FROM watch_users WHERE active = 1 ORDER BY id")
}

// List returns all users in ID order.
func (s *WatchUserStore) List(ctx context.Context) ([]WatchUser, error) {
	return s.list(ctx, "SELECT "+watchUserColumns+" FROM watch_users ORDER BY id")
}

func (s *WatchUserStore) list(ctx context.Context, query string) ([]WatchUser, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query watch users: %w", err)
	}
	defer rows.Close()

	var users []WatchUser
	for rows.Next() {
		u, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// Get returns a single user by ID.
func (s *WatchUserStore) Get(ctx context.Context, id int64) (*WatchUser, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+watchUserColumns+" FROM watch_users WHERE id = ?", id)
	u, err := s.scan(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return u, err
}

// Create inserts a new user and returns it with its assigned ID.
func (s *WatchUserStore) Create(ctx context.Context, u *WatchUser) error {
	token, err := s.secrets.Encrypt(u.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO watch_users (display_name, access_token, active) VALUES (?, ?, ?)",
		u.DisplayName, token, u.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to create watch user: %w", err)
	}

	u.ID, err = res.LastInsertId()
	return err
}

// Update persists display name, token, and active flag.
func (s *WatchUserStore) Update(ctx context.Context, u *WatchUser) error {
	token, err := s.secrets.Encrypt(u.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE watch_users SET display_name = ?, access_token = ?, active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		u.DisplayName, token, u.Active, u.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update watch user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user. The orchestrator never calls this; operators do.
func (s *WatchUserStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM watch_users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete watch user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *WatchUserStore) scan(row rowScanner) (*WatchUser, error) {
	var u WatchUser
	var token string
	if err := row.Scan(&u.ID, &u.DisplayName, &token, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}

	decrypted, err := s.secrets.Decrypt(token)
	if err != nil {
		s.logger.Error().Err(err).Int64("userID", u.ID).Msg("failed to decrypt access token")
		return nil, fmt.Errorf("failed to decrypt access token for user %d: %w", u.ID, err)
	}
	u.AccessToken = decrypted
	return &u, nil
}
