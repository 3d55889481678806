package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/downloader"
	"github.com/fetcharr/fetcharr/internal/indexer"
	"github.com/fetcharr/fetcharr/internal/orchestrator"
	"github.com/fetcharr/fetcharr/internal/store"
)

const testAPIKey = "test-api-key"

type stubOrchestrator struct {
	runErr  error
	scanErr error
	outcome *orchestrator.ScanOutcome
}

func (s *stubOrchestrator) Run(context.Context) (*orchestrator.TickSummary, error) {
	if s.runErr != nil {
		return nil, s.runErr
	}
	return &orchestrator.TickSummary{Processed: 2, Added: 1, Errors: []string{}}, nil
}

func (s *stubOrchestrator) Reconcile(context.Context) (*orchestrator.ReconcileResult, error) {
	return &orchestrator.ReconcileResult{Removed: 1, TotalChecked: 3}, nil
}

func (s *stubOrchestrator) HandleScan(_ context.Context, hash string) (*orchestrator.ScanOutcome, error) {
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	return s.outcome, nil
}

func (s *stubOrchestrator) Status() orchestrator.Status {
	return orchestrator.Status{Running: false}
}

type stubDownloader struct {
	torrents []downloader.TorrentStatus
}

func (s *stubDownloader) ListActive(context.Context) ([]downloader.TorrentStatus, error) {
	return s.torrents, nil
}

type stubIndexer struct{}

func (stubIndexer) TestConnection(context.Context) error { return nil }
func (stubIndexer) ListIndexers(context.Context) ([]indexer.Indexer, error) {
	return []indexer.Indexer{{ID: 1, Name: "ix", Enabled: true}}, nil
}
func (stubIndexer) CountEnabledIndexers(context.Context) (int, error) { return 1, nil }

type stubUsers struct {
	users  []store.WatchUser
	nextID int64
}

func (s *stubUsers) List(context.Context) ([]store.WatchUser, error) { return s.users, nil }

func (s *stubUsers) Get(_ context.Context, id int64) (*store.WatchUser, error) {
	for i := range s.users {
		if s.users[i].ID == id {
			u := s.users[i]
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *stubUsers) Create(_ context.Context, u *store.WatchUser) error {
	s.nextID++
	u.ID = s.nextID
	s.users = append(s.users, *u)
	return nil
}

func (s *stubUsers) Update(_ context.Context, u *store.WatchUser) error {
	for i := range s.users {
		if s.users[i].ID == u.ID {
			s.users[i] = *u
			return nil
		}
	}
	return store.ErrNotFound
}

func (s *stubUsers) Delete(_ context.Context, id int64) error {
	for i := range s.users {
		if s.users[i].ID == id {
			s.users = append(s.users[:i], s.users[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func newTestServer(orch *stubOrchestrator) (*Server, *stubUsers, *stubDownloader) {
	cfg := &config.Config{}
	cfg.Auth.APIKey = testAPIKey
	users := &stubUsers{}
	dl := &stubDownloader{}
	server := NewServer(cfg, orch, dl, stubIndexer{}, users, nil, zerolog.Nop())
	return server, users, dl
}

func doRequest(server *Server, method, path, body string, withKey bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if withKey {
		req.Header.Set(apiKeyHeader, testAPIKey)
	}
	rec := httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealthNeedsNoKey(t *testing.T) {
	server, _, _ := newTestServer(&stubOrchestrator{})
	rec := doRequest(server, http.MethodGet, "/health", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "healthy") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestAPIKeyRequired(t *testing.T) {
	server, _, _ := newTestServer(&stubOrchestrator{})

	rec := doRequest(server, http.MethodPost, "/api/v1/orchestrator/run", "", false)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing key: status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orchestrator/run", nil)
	req.Header.Set(apiKeyHeader, "wrong-key")
	rec = httptest.NewRecorder()
	server.echo.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d", rec.Code)
	}
}

func TestRunOrchestrator(t *testing.T) {
	server, _, _ := newTestServer(&stubOrchestrator{})
	rec := doRequest(server, http.MethodPost, "/api/v1/orchestrator/run", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var summary orchestrator.TickSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.Processed != 2 || summary.Added != 1 {
		t.Errorf("summary = %+v", summary)
	}
}

func TestRunOrchestratorConflict(t *testing.T) {
	server, _, _ := newTestServer(&stubOrchestrator{runErr: orchestrator.ErrTickInProgress})
	rec := doRequest(server, http.MethodPost, "/api/v1/orchestrator/run", "", true)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestTriggerScan(t *testing.T) {
	orch := &stubOrchestrator{outcome: &orchestrator.ScanOutcome{
		Record:      store.ScanRecord{ID: "scan-1", Infected: false},
		Destination: "/library/movies/x",
	}}
	server, _, _ := newTestServer(orch)

	rec := doRequest(server, http.MethodPost, "/api/v1/scanner/scan", `{"torrent_hash":"aa01"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "/library/movies/x") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestTriggerScanValidation(t *testing.T) {
	server, _, _ := newTestServer(&stubOrchestrator{})
	rec := doRequest(server, http.MethodPost, "/api/v1/scanner/scan", `{}`, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestTriggerScanUnknownHash(t *testing.T) {
	server, _, _ := newTestServer(&stubOrchestrator{scanErr: store.ErrNotFound})
	rec := doRequest(server, http.MethodPost, "/api/v1/scanner/scan", `{"torrent_hash":"zz99"}`, true)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestListTorrents(t *testing.T) {
	server, _, dl := newTestServer(&stubOrchestrator{})
	dl.torrents = []downloader.TorrentStatus{{Hash: "aa01", Name: "x", State: "Seeding"}}

	rec := doRequest(server, http.MethodGet, "/api/v1/downloader/torrents", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var torrents []downloader.TorrentStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &torrents); err != nil {
		t.Fatal(err)
	}
	if len(torrents) != 1 || torrents[0].Hash != "aa01" {
		t.Errorf("torrents = %+v", torrents)
	}
}

func TestUserLifecycleMasksTokens(t *testing.T) {
	server, _, _ := newTestServer(&stubOrchestrator{})

	rec := doRequest(server, http.MethodPost, "/api/v1/users",
		`{"displayName":"alice","accessToken":"supersecrettoken"}`, true)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var created userResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.AccessToken != "supe****oken" {
		t.Errorf("token not masked: %q", created.AccessToken)
	}
	if strings.Contains(rec.Body.String(), "supersecrettoken") {
		t.Error("raw token leaked in response")
	}

	rec = doRequest(server, http.MethodGet, "/api/v1/users", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "supersecrettoken") {
		t.Error("raw token leaked in list")
	}

	rec = doRequest(server, http.MethodDelete, "/api/v1/users/1", "", true)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
	rec = doRequest(server, http.MethodGet, "/api/v1/users/1", "", true)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d", rec.Code)
	}
}
