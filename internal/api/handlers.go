package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fetcharr/fetcharr/internal/orchestrator"
	"github.com/fetcharr/fetcharr/internal/store"
)

func (s *Server) runOrchestrator(c echo.Context) error {
	summary, err := s.orchestrator.Run(c.Request().Context())
	if err != nil {
		if errors.Is(err, orchestrator.ErrTickInProgress) {
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, summary)
}

func (s *Server) runReconcile(c echo.Context) error {
	result, err := s.orchestrator.Reconcile(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) orchestratorStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.orchestrator.Status())
}

type scanRequest struct {
	TorrentHash string `json:"torrent_hash"`
}

func (s *Server) triggerScan(c echo.Context) error {
	var req scanRequest
	if err := c.Bind(&req); err != nil || req.TorrentHash == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "torrent_hash is required")
	}

	outcome, err := s.orchestrator.HandleScan(c.Request().Context(), req.TorrentHash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "no job tracks that hash")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, outcome)
}

func (s *Server) listTorrents(c echo.Context) error {
	torrents, err := s.downloader.ListActive(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, torrents)
}

func (s *Server) listIndexers(c echo.Context) error {
	indexers, err := s.indexer.ListIndexers(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, indexers)
}

func (s *Server) indexerStatus(c echo.Context) error {
	ctx := c.Request().Context()

	reachable := true
	if err := s.indexer.TestConnection(ctx); err != nil {
		reachable = false
	}

	enabled := 0
	if reachable {
		n, err := s.indexer.CountEnabledIndexers(ctx)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadGateway, err.Error())
		}
		enabled = n
	}

	return c.JSON(http.StatusOK, map[string]any{
		"reachable": reachable,
		"enabled":   enabled,
	})
}

func (s *Server) listTasks(c echo.Context) error {
	return c.JSON(http.StatusOK, s.scheduler.ListTasks())
}
