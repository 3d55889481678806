package orchestrator

import (
	"context"
	"fmt"
)

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Removed      int `json:"removed"`
	Updated      int `json:"updated"`
	TotalChecked int `json:"totalChecked"`
}

// Reconcile aligns the job table with what the download daemon actually
// tracks. Jobs whose hash the daemon no longer lists are deleted (the user
// removed the torrent, it finished and was auto-removed, or it failed for
// good); surviving jobs get their daemon-authoritative fields refreshed.
// Runs at the head of every tick and is also exposed as a manual trigger.
func (s *Service) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	jobs, err := s.jobs.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	torrents, err := s.downloader.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list torrents: %w", err)
	}
	byHash := make(map[string]int, len(torrents))
	for i, t := range torrents {
		byHash[t.Hash] = i
	}

	result := &ReconcileResult{TotalChecked: len(jobs)}
	for i := range jobs {
		job := &jobs[i]

		idx, tracked := byHash[job.TorrentHash]
		if !tracked {
			if err := s.jobs.Delete(ctx, job.ID); err != nil {
				s.logger.Error().Err(err).Str("hash", job.TorrentHash).Msg("stale job delete failed")
				continue
			}
			s.logger.Info().Str("hash", job.TorrentHash).Str("title", job.Title).Msg("stale job removed")
			result.Removed++
			continue
		}

		if name := torrents[idx].Name; name != "" && name != job.FileName {
			job.FileName = name
			if err := s.jobs.Update(ctx, job); err != nil {
				s.logger.Error().Err(err).Str("hash", job.TorrentHash).Msg("job refresh failed")
				continue
			}
			result.Updated++
		}
	}

	s.logger.Debug().
		Int("removed", result.Removed).
		Int("updated", result.Updated).
		Int("checked", result.TotalChecked).
		Msg("reconciliation finished")
	return result, nil
}
