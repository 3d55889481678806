// Package orchestrator drives the acquisition pipeline: collect the union
// watchlist across active users, search the indexer aggregator for each
// entry, push the best release to the download daemon, and track the
// resulting job until a scan verdict files or rejects it. One tick runs at
// a time; entries are processed sequentially so upstream rate limits are
// respected naturally.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/catalog"
	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/downloader"
	"github.com/fetcharr/fetcharr/internal/indexer"
	"github.com/fetcharr/fetcharr/internal/metadata"
	"github.com/fetcharr/fetcharr/internal/scanner"
	"github.com/fetcharr/fetcharr/internal/scoring"
	"github.com/fetcharr/fetcharr/internal/store"
)

// ErrTickInProgress is returned when a manual run overlaps the scheduled one.
var ErrTickInProgress = errors.New("a tick is already in progress")

type CatalogClient interface {
	FetchWatchlist(ctx context.Context, token string) ([]catalog.WatchlistEntry, error)
	ExistsInLibrary(ctx context.Context, token string, entry catalog.WatchlistEntry) (bool, error)
	RemoveFromWatchlist(ctx context.Context, token, ratingKey string) error
	AddToWatchlist(ctx context.Context, token, ratingKey string) error
}

type MetadataClient interface {
	Lookup(ctx context.Context, title string, year int, kind catalog.MediaKind) *metadata.OriginalTitle
}

type IndexerClient interface {
	Search(ctx context.Context, query string, kind catalog.MediaKind) ([]indexer.SearchResult, error)
	Enqueue(ctx context.Context, releaseGUID string, indexerID int) error
}

type DownloaderClient interface {
	ListActive(ctx context.Context) ([]downloader.TorrentStatus, error)
	Remove(ctx context.Context, hash string, removeData bool) error
}

type ScannerClient interface {
	Scan(ctx context.Context, path string) (*scanner.Verdict, error)
}

type Filesystem interface {
	QuarantinePath(name string) string
	LibraryDestination(kind catalog.MediaKind, name string) string
	StripNonMedia(path string) (int, error)
	Move(src, dst string) error
	Exists(path string) bool
}

type WatchUserRepo interface {
	ListActive(ctx context.Context) ([]store.WatchUser, error)
}

type DownloadJobRepo interface {
	GetByHash(ctx context.Context, hash string) (*store.DownloadJob, error)
	IsGUIDInFlight(ctx context.Context, guid string) (bool, error)
	ListAll(ctx context.Context) ([]store.DownloadJob, error)
	Create(ctx context.Context, j *store.DownloadJob) error
	Update(ctx context.Context, j *store.DownloadJob) error
	Delete(ctx context.Context, id int64) error
}

type ScanRecordRepo interface {
	Create(ctx context.Context, r *store.ScanRecord) error
	SetDestination(ctx context.Context, id, destination string) error
	HasInfected(ctx context.Context, releaseGUID string) (bool, error)
}

// TickSummary is the outcome of one orchestrator pass.
type TickSummary struct {
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt time.Time       `json:"finishedAt"`
	Reconcile  ReconcileResult `json:"reconcile"`
	Processed  int             `json:"processed"`
	Searched   int             `json:"searched"`
	Added      int             `json:"addedToDownloader"`
	Errors     []string        `json:"errors"`
}

// Status is the process-scoped view served to operators: whether a tick is
// in flight and what the last completed tick did.
type Status struct {
	Running bool         `json:"running"`
	LastRun *TickSummary `json:"lastRun,omitempty"`
}

type Service struct {
	cfg        config.SyncConfig
	catalog    CatalogClient
	metadata   MetadataClient
	indexer    IndexerClient
	downloader DownloaderClient
	scanner    ScannerClient
	files      Filesystem
	users      WatchUserRepo
	jobs       DownloadJobRepo
	scans      ScanRecordRepo
	logger     zerolog.Logger

	running atomic.Bool

	mu      sync.RWMutex
	lastRun *TickSummary

	// sleep is swapped out in tests
	sleep func(ctx context.Context, d time.Duration) error
}

func NewService(
	cfg config.SyncConfig,
	catalogClient CatalogClient,
	metadataClient MetadataClient,
	indexerClient IndexerClient,
	downloaderClient DownloaderClient,
	scannerClient ScannerClient,
	files Filesystem,
	users WatchUserRepo,
	jobs DownloadJobRepo,
	scans ScanRecordRepo,
	logger zerolog.Logger,
) *Service {
	return &Service{
		cfg:        cfg,
		catalog:    catalogClient,
		metadata:   metadataClient,
		indexer:    indexerClient,
		downloader: downloaderClient,
		scanner:    scannerClient,
		files:      files,
		users:      users,
		jobs:       jobs,
		scans:      scans,
		logger:     logger.With().Str("component", "orchestrator").Logger(),
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Status returns the current run state and the last completed summary.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{Running: s.running.Load(), LastRun: s.lastRun}
}

// Run executes one full tick. Only one tick runs at a time; a second caller
// gets ErrTickInProgress instead of queueing.
func (s *Service) Run(ctx context.Context) (*TickSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrTickInProgress
	}
	defer s.running.Store(false)

	summary := &TickSummary{StartedAt: time.Now(), Errors: []string{}}
	s.logger.Info().Msg("tick started")

	// prune stale jobs first so the duplicate gate below does not skip
	// entries on the strength of jobs the daemon no longer tracks
	reconcile, err := s.Reconcile(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("reconcile: %v", err))
		s.logger.Error().Err(err).Msg("reconcile failed, continuing tick")
	} else {
		summary.Reconcile = *reconcile
	}

	entries, err := s.collectWatchlist(ctx, summary)
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("watchlist: %v", err))
	}

	for _, entry := range entries {
		summary.Processed++
		added, searched, err := s.processEntry(ctx, entry)
		if searched {
			summary.Searched++
		}
		if added {
			summary.Added++
		}
		if err != nil {
			// per-entry failures never abort the tick, cancellation does
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", entry.GUID, err))
			s.logger.Error().Err(err).Str("guid", entry.GUID).Msg("entry failed")
			if ctx.Err() != nil {
				break
			}
		}
	}

	summary.FinishedAt = time.Now()
	s.mu.Lock()
	s.lastRun = summary
	s.mu.Unlock()

	s.logger.Info().
		Int("processed", summary.Processed).
		Int("searched", summary.Searched).
		Int("added", summary.Added).
		Int("errors", len(summary.Errors)).
		Dur("elapsed", summary.FinishedAt.Sub(summary.StartedAt)).
		Msg("tick finished")
	return summary, nil
}

// trackedEntry is a watchlist entry plus the (token, ratingKey) pair used
// to remove it on success or re-add it on infection.
type trackedEntry struct {
	catalog.WatchlistEntry
	token string
}

// collectWatchlist builds the union watchlist across active users,
// deduplicated by guid. The first user observed for a guid contributes the
// (token, ratingKey) pair kept for that entry.
func (s *Service) collectWatchlist(ctx context.Context, summary *TickSummary) ([]trackedEntry, error) {
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}

	seen := make(map[string]bool)
	var entries []trackedEntry
	for _, user := range users {
		watchlist, err := s.catalog.FetchWatchlist(ctx, user.AccessToken)
		if err != nil {
			// a single user's failure must not starve the others
			summary.Errors = append(summary.Errors, fmt.Sprintf("watchlist %s: %v", user.DisplayName, err))
			s.logger.Error().Err(err).Str("user", user.DisplayName).Msg("watchlist fetch failed")
			continue
		}
		for _, entry := range watchlist {
			if seen[entry.GUID] {
				continue
			}
			seen[entry.GUID] = true
			entries = append(entries, trackedEntry{WatchlistEntry: entry, token: user.AccessToken})
		}
	}

	s.logger.Debug().Int("entries", len(entries)).Int("users", len(users)).Msg("union watchlist collected")
	return entries, nil
}

// processEntry runs the per-entry pipeline. Returns whether a download was
// queued and whether the indexer was searched.
func (s *Service) processEntry(ctx context.Context, entry trackedEntry) (added, searched bool, err error) {
	log := s.logger.With().Str("guid", entry.GUID).Str("title", entry.Title).Logger()

	inLibrary, err := s.catalog.ExistsInLibrary(ctx, entry.token, entry.WatchlistEntry)
	if err != nil {
		return false, false, fmt.Errorf("library check: %w", err)
	}
	if inLibrary {
		log.Info().Msg("already in library, removing from watchlist")
		return false, false, s.catalog.RemoveFromWatchlist(ctx, entry.token, entry.RatingKey)
	}

	inFlight, err := s.jobs.IsGUIDInFlight(ctx, entry.GUID)
	if err != nil {
		return false, false, fmt.Errorf("duplicate gate: %w", err)
	}
	if inFlight {
		log.Info().Msg("download already in flight, removing from watchlist")
		return false, false, s.catalog.RemoveFromWatchlist(ctx, entry.token, entry.RatingKey)
	}

	if entry.Year == 0 {
		log.Warn().Msg("entry has no year, skipping")
		return false, false, nil
	}

	original := s.metadata.Lookup(ctx, entry.Title, entry.Year, entry.Kind)
	query := metadata.BuildQuery(entry.WatchlistEntry, original)

	results, err := s.indexer.Search(ctx, query, entry.Kind)
	if err != nil {
		return false, false, fmt.Errorf("search %q: %w", query, err)
	}
	searched = true

	candidates := scoring.SelectCandidates(results)
	if len(candidates) == 0 {
		log.Info().Str("query", query).Msg("no usable candidates")
		return false, true, nil
	}

	for _, candidate := range candidates {
		ok, err := s.tryCandidate(ctx, entry, candidate, log)
		if err != nil {
			return false, true, err
		}
		if ok {
			return true, true, nil
		}
		if ctx.Err() != nil {
			return false, true, ctx.Err()
		}
	}

	log.Info().Int("candidates", len(candidates)).Msg("no candidate appeared in downloader, will retry next tick")
	return false, true, nil
}

func (s *Service) tryCandidate(ctx context.Context, entry trackedEntry, candidate scoring.Candidate, log zerolog.Logger) (bool, error) {
	infected, err := s.scans.HasInfected(ctx, candidate.ReleaseGUID)
	if err != nil {
		return false, fmt.Errorf("infection gate: %w", err)
	}
	if infected {
		log.Debug().Str("release", candidate.Title).Msg("release previously infected, skipping")
		return false, nil
	}

	if err := s.indexer.Enqueue(ctx, candidate.ReleaseGUID, candidate.IndexerID); err != nil {
		log.Warn().Err(err).Str("release", candidate.Title).Msg("enqueue failed, trying next candidate")
		return false, nil
	}

	// give the daemon a moment to register the payload
	if err := s.sleep(ctx, s.cfg.AppearanceDelay); err != nil {
		return false, err
	}

	torrents, err := s.downloader.ListActive(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("downloader list failed, trying next candidate")
		return false, nil
	}

	match := findAppearedTorrent(torrents, candidate.Title, time.Now(), s.cfg.AppearanceWindow, s.cfg.SimilarityThreshold)
	if match == nil {
		log.Debug().Str("release", candidate.Title).Msg("no matching torrent appeared")
		return false, nil
	}

	job := &store.DownloadJob{
		TorrentHash: match.Hash,
		GUID:        entry.GUID,
		ReleaseGUID: candidate.ReleaseGUID,
		RatingKey:   entry.RatingKey,
		AccessToken: entry.token,
		Title:       entry.Title,
		Year:        entry.Year,
		Kind:        entry.Kind,
		FileName:    match.Name,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		if errors.Is(err, store.ErrDuplicateHash) {
			// another tick claimed this hash; the candidate is abandoned
			log.Info().Str("hash", match.Hash).Msg("torrent already tracked")
			return false, nil
		}
		return false, fmt.Errorf("create job: %w", err)
	}

	if err := s.catalog.RemoveFromWatchlist(ctx, entry.token, entry.RatingKey); err != nil {
		// the job exists; the entry will hit the duplicate gate next tick
		log.Warn().Err(err).Msg("watchlist removal failed after queueing")
	}

	log.Info().
		Str("hash", match.Hash).
		Str("torrent", match.Name).
		Int("score", candidate.Score).
		Msg("download queued")
	return true, nil
}
