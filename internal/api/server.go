// Package api exposes the operator-facing HTTP surface: manual triggers
// for the pipeline, passthrough views of the daemon and indexers, and
// watch user management. Every /api/v1 route sits behind the X-API-Key
// header.
package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/downloader"
	"github.com/fetcharr/fetcharr/internal/indexer"
	"github.com/fetcharr/fetcharr/internal/orchestrator"
	"github.com/fetcharr/fetcharr/internal/scheduler"
	"github.com/fetcharr/fetcharr/internal/store"
)

const apiKeyHeader = "X-API-Key"

type Orchestrator interface {
	Run(ctx context.Context) (*orchestrator.TickSummary, error)
	Reconcile(ctx context.Context) (*orchestrator.ReconcileResult, error)
	HandleScan(ctx context.Context, torrentHash string) (*orchestrator.ScanOutcome, error)
	Status() orchestrator.Status
}

type DownloaderClient interface {
	ListActive(ctx context.Context) ([]downloader.TorrentStatus, error)
}

type IndexerClient interface {
	TestConnection(ctx context.Context) error
	ListIndexers(ctx context.Context) ([]indexer.Indexer, error)
	CountEnabledIndexers(ctx context.Context) (int, error)
}

type WatchUserStore interface {
	List(ctx context.Context) ([]store.WatchUser, error)
	Get(ctx context.Context, id int64) (*store.WatchUser, error)
	Create(ctx context.Context, u *store.WatchUser) error
	Update(ctx context.Context, u *store.WatchUser) error
	Delete(ctx context.Context, id int64) error
}

// Server handles HTTP requests for the fetcharr API.
type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger zerolog.Logger

	orchestrator Orchestrator
	downloader   DownloaderClient
	indexer      IndexerClient
	users        WatchUserStore
	scheduler    *scheduler.Scheduler
}

// NewServer creates a new API server instance.
func NewServer(
	cfg *config.Config,
	orch Orchestrator,
	downloaderClient DownloaderClient,
	indexerClient IndexerClient,
	users WatchUserStore,
	sched *scheduler.Scheduler,
	logger zerolog.Logger,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:         e,
		cfg:          cfg,
		logger:       logger.With().Str("component", "api").Logger(),
		orchestrator: orch,
		downloader:   downloaderClient,
		indexer:      indexerClient,
		users:        users,
		scheduler:    sched,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestID())

	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)

	api := s.echo.Group("/api/v1", s.requireAPIKey)

	api.POST("/orchestrator/run", s.runOrchestrator)
	api.POST("/orchestrator/reconcile", s.runReconcile)
	api.GET("/orchestrator/status", s.orchestratorStatus)

	api.POST("/scanner/scan", s.triggerScan)

	api.GET("/downloader/torrents", s.listTorrents)

	api.GET("/indexer/indexers", s.listIndexers)
	api.GET("/indexer/status", s.indexerStatus)

	api.GET("/users", s.listUsers)
	api.POST("/users", s.createUser)
	api.GET("/users/:id", s.getUser)
	api.PUT("/users/:id", s.updateUser)
	api.DELETE("/users/:id", s.deleteUser)

	if s.scheduler != nil {
		api.GET("/system/tasks", s.listTasks)
	}
}

// requireAPIKey guards the API group. The comparison is constant time and
// the rejection message deliberately generic.
func (s *Server) requireAPIKey(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		provided := c.Request().Header.Get(apiKeyHeader)
		expected := s.cfg.Auth.APIKey
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		return next(c)
	}
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// Start begins listening. Blocks until the server stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.Info().Str("addr", addr).Msg("API server starting")
	return s.echo.Start(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
