package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ScanRecord is the outcome of scanning a completed payload.
// A release_guid is known-bad iff at least one infected record exists for it.
// Records are written once and only mutated to fill in the post-move
// destination.
type ScanRecord struct {
	ID              string    `json:"id"`
	ReleaseGUID     string    `json:"releaseGuid"`
	SourcePath      string    `json:"sourcePath"`
	DestinationPath string    `json:"destinationPath,omitempty"`
	Infected        bool      `json:"infected"`
	ThreatName      string    `json:"threatName,omitempty"`
	ScannedAt       time.Time `json:"scannedAt"`
}

// ScanRecordStore provides durable access to scan records.
type ScanRecordStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewScanRecordStore creates a new scan record store.
func NewScanRecordStore(db *sql.DB, logger zerolog.Logger) *ScanRecordStore {
	return &ScanRecordStore{
		db:     db,
		logger: logger.With().Str("component", "scan-record-store").Logger(),
	}
}

const scanRecordColumns = "id, release_guid, source_path, destination_path, infected, threat_name, scanned_at"

// Create inserts a new scan record, assigning it an ID when absent.
func (s *ScanRecordStore) Create(ctx context.Context, r *ScanRecord) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.ScannedAt.IsZero() {
		r.ScannedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scan_records (id, release_guid, source_path, destination_path, infected, threat_name, scanned_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ReleaseGUID, r.SourcePath, r.DestinationPath, r.Infected, r.ThreatName, r.ScannedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create scan record: %w", err)
	}
	return nil
}

// SetDestination records where a clean payload was filed.
func (s *ScanRecordStore) SetDestination(ctx context.Context, id, destination string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE scan_records SET destination_path = ? WHERE id = ?", destination, id)
	if err != nil {
		return fmt.Errorf("failed to set scan record destination: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// HasInfected reports whether any infected scan exists for the release guid.
func (s *ScanRecordStore) HasInfected(ctx context.Context, releaseGUID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM scan_records WHERE release_guid = ? AND infected = 1",
		releaseGUID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count infected scans: %w", err)
	}
	return count > 0, nil
}

// ListByReleaseGUID returns all scans recorded for a release, newest first.
func (s *ScanRecordStore) ListByReleaseGUID(ctx context.Context, releaseGUID string) ([]ScanRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+scanRecordColumns+" FROM scan_records WHERE release_guid = ? ORDER BY scanned_at DESC",
		releaseGUID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query scan records: %w", err)
	}
	defer rows.Close()

	var records []ScanRecord
	for rows.Next() {
		var r ScanRecord
		if err := rows.Scan(&r.ID, &r.ReleaseGUID, &r.SourcePath, &r.DestinationPath,
			&r.Infected, &r.ThreatName, &r.ScannedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
