package orchestrator

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/store"
)

// ScanOutcome is returned from a scan trigger: the verdict that was
// recorded plus, for clean payloads, where the payload was filed.
type ScanOutcome struct {
	Record      store.ScanRecord `json:"record"`
	Destination string           `json:"destination,omitempty"`
	Requeued    bool             `json:"requeued"`
}

// HandleScan runs the clean/infected pipeline for one completed download,
// identified by torrent hash. The scan itself can take minutes; no store
// call is held open across it.
func (s *Service) HandleScan(ctx context.Context, torrentHash string) (*ScanOutcome, error) {
	job, err := s.jobs.GetByHash(ctx, torrentHash)
	if err != nil {
		return nil, fmt.Errorf("lookup job for %s: %w", torrentHash, err)
	}

	log := s.logger.With().Str("hash", job.TorrentHash).Str("title", job.Title).Logger()
	path := s.files.QuarantinePath(job.FileName)
	if !s.files.Exists(path) {
		return nil, fmt.Errorf("quarantine payload missing: %s", path)
	}

	// junk files must not influence the verdict
	stripped, err := s.files.StripNonMedia(path)
	if err != nil {
		return nil, fmt.Errorf("strip non-media: %w", err)
	}
	if stripped > 0 {
		log.Info().Int("removed", stripped).Msg("non-media files stripped before scan")
	}

	verdict, err := s.scanner.Scan(ctx, path)
	if err != nil {
		// job stays in place; the next trigger retries
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}

	record := &store.ScanRecord{
		ReleaseGUID: job.ReleaseGUID,
		SourcePath:  path,
		Infected:    verdict.Infected,
		ThreatName:  verdict.ThreatName,
	}
	if err := s.scans.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("record verdict: %w", err)
	}

	if verdict.Infected {
		return s.handleInfected(ctx, job, record, log)
	}
	return s.handleClean(ctx, job, record, log)
}

func (s *Service) handleInfected(ctx context.Context, job *store.DownloadJob, record *store.ScanRecord, log zerolog.Logger) (*ScanOutcome, error) {
	log.Warn().Str("threat", record.ThreatName).Msg("payload infected, purging")

	if err := s.downloader.Remove(ctx, job.TorrentHash, true); err != nil {
		return nil, fmt.Errorf("remove infected torrent: %w", err)
	}
	if err := s.jobs.Delete(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("delete job: %w", err)
	}

	outcome := &ScanOutcome{Record: *record}
	if job.RatingKey != "" && job.AccessToken != "" {
		if err := s.catalog.AddToWatchlist(ctx, job.AccessToken, job.RatingKey); err != nil {
			return nil, fmt.Errorf("re-add to watchlist: %w", err)
		}
		outcome.Requeued = true
		log.Info().Msg("entry re-queued on watchlist")
	} else {
		// jobs created before tokens were recorded cannot be re-queued
		log.Warn().Msg("job carries no rating key or token, not re-queuing")
	}
	return outcome, nil
}

func (s *Service) handleClean(ctx context.Context, job *store.DownloadJob, record *store.ScanRecord, log zerolog.Logger) (*ScanOutcome, error) {
	destination := s.files.LibraryDestination(job.Kind, job.FileName)
	if err := s.files.Move(record.SourcePath, destination); err != nil {
		return nil, fmt.Errorf("file payload: %w", err)
	}
	if err := s.scans.SetDestination(ctx, record.ID, destination); err != nil {
		return nil, fmt.Errorf("record destination: %w", err)
	}
	record.DestinationPath = destination

	// the job stays; the reconciler purges it once the daemon lets go
	log.Info().Str("destination", destination).Msg("payload filed into library")
	return &ScanOutcome{Record: *record, Destination: destination}, nil
}
