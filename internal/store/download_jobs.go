package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/catalog"
	"github.com/fetcharr/fetcharr/internal/crypto"
)

// DownloadJob is the durable record that a watchlist entry is being acquired.
// torrent_hash is unique across all rows; for any guid at most one job exists
// at a time.
type DownloadJob struct {
	ID          int64             `json:"id"`
	TorrentHash string            `json:"torrentHash"`
	GUID        string            `json:"guid"`
	ReleaseGUID string            `json:"releaseGuid"`
	RatingKey   string            `json:"ratingKey"`
	AccessToken string            `json:"-"`
	Title       string            `json:"title"`
	Year        int               `json:"year"`
	Kind        catalog.MediaKind `json:"kind"`
	FileName    string            `json:"fileName"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// DownloadJobStore provides durable access to download jobs.
type DownloadJobStore struct {
	db      *sql.DB
	secrets *crypto.SecretStore
	logger  zerolog.Logger
}

// NewDownloadJobStore creates a new download job store.
func NewDownloadJobStore(db *sql.DB, secrets *crypto.SecretStore, logger zerolog.Logger) *DownloadJobStore {
	return &DownloadJobStore{
		db:      db,
		secrets: secrets,
		logger:  logger.With().Str("component", "download-job-store").Logger(),
	}
}

const downloadJobColumns = "id, torrent_hash, guid, release_guid, rating_key, access_token, title, year, kind, file_name, created_at, updated_at"

// GetByHash returns the job tracking the given torrent hash.
func (s *DownloadJobStore) GetByHash(ctx context.Context, hash string) (*DownloadJob, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+downloadJobColumns+" FROM download_jobs WHERE torrent_hash = ?",
		strings.ToLower(hash),
	)
	j, err := s.scan(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return j, err
}

// GetByGUID returns all jobs for a catalog guid.
func (s *DownloadJobStore) GetByGUID(ctx context.Context, guid string) ([]DownloadJob, error) {
	return s.query(ctx, "SELECT "+downloadJobColumns+" FROM download_jobs WHERE guid = ? ORDER BY id", guid)
}

// GetByReleaseGUID returns all jobs for an indexer release guid.
func (s *DownloadJobStore) GetByReleaseGUID(ctx context.Context, releaseGUID string) ([]DownloadJob, error) {
	return s.query(ctx, "SELECT "+downloadJobColumns+" FROM download_jobs WHERE release_guid = ? ORDER BY id", releaseGUID)
}

// ListAll returns every job.
func (s *DownloadJobStore) ListAll(ctx context.Context) ([]DownloadJob, error) {
	return s.query(ctx, "SELECT "+downloadJobColumns+" FROM download_jobs ORDER BY id")
}

// IsGUIDInFlight reports whether any job exists for the catalog guid.
func (s *DownloadJobStore) IsGUIDInFlight(ctx context.Context, guid string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM download_jobs WHERE guid = ?", guid,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count download jobs: %w", err)
	}
	return count > 0, nil
}

// Create inserts a new job. A duplicate torrent hash surfaces as
// ErrDuplicateHash so a concurrent tick can treat the candidate as tracked.
func (s *DownloadJobStore) Create(ctx context.Context, j *DownloadJob) error {
	token, err := s.secrets.Encrypt(j.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO download_jobs (torrent_hash, guid, release_guid, rating_key, access_token, title, year, kind, file_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		strings.ToLower(j.TorrentHash), j.GUID, j.ReleaseGUID, j.RatingKey, token,
		j.Title, j.Year, string(j.Kind), j.FileName,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateHash
		}
		return fmt.Errorf("failed to create download job: %w", err)
	}

	j.ID, err = res.LastInsertId()
	return err
}

// Update persists the downloader-authoritative fields of a job.
func (s *DownloadJobStore) Update(ctx context.Context, j *DownloadJob) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE download_jobs SET file_name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		j.FileName, j.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update download job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a job.
func (s *DownloadJobStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM download_jobs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete download job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *DownloadJobStore) query(ctx context.Context, query string, args ...any) ([]DownloadJob, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query download jobs: %w", err)
	}
	defer rows.Close()

	var jobs []DownloadJob
	for rows.Next() {
		j, err := s.scan(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

func (s *DownloadJobStore) scan(row rowScanner) (*DownloadJob, error) {
	var j DownloadJob
	var token, kind string
	if err := row.Scan(&j.ID, &j.TorrentHash, &j.GUID, &j.ReleaseGUID, &j.RatingKey,
		&token, &j.Title, &j.Year, &kind, &j.FileName, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	j.Kind = catalog.MediaKind(kind)

	decrypted, err := s.secrets.Decrypt(token)
	if err != nil {
		// Older rows may predate encryption or the key may have rotated.
		// The token only gates re-queue on infection, so degrade to empty.
		s.logger.Warn().Err(err).Int64("jobID", j.ID).Msg("failed to decrypt job access token")
		decrypted = ""
	}
	j.AccessToken = decrypted
	return &j, nil
}
