package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/fetcharr/fetcharr/internal/catalog"
	"github.com/fetcharr/fetcharr/internal/crypto"
	"github.com/fetcharr/fetcharr/internal/database"
)

var testLogger = zerolog.Nop()

func setupDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db.Conn()
}

func testSecrets(t *testing.T) *crypto.SecretStore {
	t.Helper()
	salt, err := crypto.GenerateSalt()
	if err != nil {
		t.Fatalf("failed to generate salt: %v", err)
	}
	return crypto.NewSecretStore("test-key", salt)
}

func TestWatchUserCRUD(t *testing.T) {
	ctx := context.Background()
	secrets := testSecrets(t)
	users := NewWatchUserStore(setupDB(t), secrets, testLogger)

	u := &WatchUser{DisplayName: "alice", AccessToken: "alice-token-12345678", Active: true}
	if err := users.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.ID == 0 {
		t.Fatal("expected assigned ID")
	}

	got, err := users.Get(ctx, u.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.AccessToken != "alice-token-12345678" {
		t.Errorf("token round trip mismatch: %q", got.AccessToken)
	}

	u.Active = false
	if err := users.Update(ctx, u); err != nil {
		t.Fatalf("Update: %v", err)
	}

	active, err := users.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("expected no active users, got %d", len(active))
	}

	if err := users.Delete(ctx, u.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := users.Get(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestWatchUserTokenEncryptedAtRest(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	users := NewWatchUserStore(db, testSecrets(t), testLogger)

	u := &WatchUser{DisplayName: "bob", AccessToken: "bob-secret-token-0001", Active: true}
	if err := users.Create(ctx, u); err != nil {
		t.Fatalf("Create: %v", err)
	}

	var stored string
	if err := db.QueryRow("SELECT access_token FROM watch_users WHERE id = ?", u.ID).Scan(&stored); err != nil {
		t.Fatalf("raw query: %v", err)
	}
	if !crypto.IsEncrypted(stored) {
		t.Errorf("token stored in plaintext: %q", stored)
	}
}

func TestDownloadJobDuplicateHash(t *testing.T) {
	ctx := context.Background()
	jobs := NewDownloadJobStore(setupDB(t), testSecrets(t), testLogger)

	j := &DownloadJob{
		TorrentHash: "AA00BB11CC22DD33EE44FF5566778899AABBCCDD",
		GUID:        "catalog://m/1",
		ReleaseGUID: "release-1",
		Kind:        catalog.KindMovie,
	}
	if err := jobs.Create(ctx, j); err != nil {
		t.Fatalf("Create: %v", err)
	}

	dup := &DownloadJob{
		TorrentHash: "aa00bb11cc22dd33ee44ff5566778899aabbccdd",
		GUID:        "catalog://m/2",
		ReleaseGUID: "release-2",
		Kind:        catalog.KindMovie,
	}
	if err := jobs.Create(ctx, dup); !errors.Is(err, ErrDuplicateHash) {
		t.Errorf("expected ErrDuplicateHash, got %v", err)
	}
}

func TestDownloadJobInFlightPredicate(t *testing.T) {
	ctx := context.Background()
	jobs := NewDownloadJobStore(setupDB(t), testSecrets(t), testLogger)

	inFlight, err := jobs.IsGUIDInFlight(ctx, "catalog://m/9")
	if err != nil {
		t.Fatalf("IsGUIDInFlight: %v", err)
	}
	if inFlight {
		t.Error("empty table reported in-flight guid")
	}

	j := &DownloadJob{TorrentHash: "c1", GUID: "catalog://m/9", ReleaseGUID: "r9", Kind: catalog.KindShow}
	if err := jobs.Create(ctx, j); err != nil {
		t.Fatalf("Create: %v", err)
	}

	inFlight, err = jobs.IsGUIDInFlight(ctx, "catalog://m/9")
	if err != nil {
		t.Fatalf("IsGUIDInFlight: %v", err)
	}
	if !inFlight {
		t.Error("expected guid to be in flight")
	}

	if err := jobs.Delete(ctx, j.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	inFlight, _ = jobs.IsGUIDInFlight(ctx, "catalog://m/9")
	if inFlight {
		t.Error("deleted job still reported in flight")
	}
}

func TestDownloadJobLookups(t *testing.T) {
	ctx := context.Background()
	jobs := NewDownloadJobStore(setupDB(t), testSecrets(t), testLogger)

	j := &DownloadJob{
		TorrentHash: "1111111111111111111111111111111111111111",
		GUID:        "catalog://m/5",
		ReleaseGUID: "release-5",
		RatingKey:   "rk5",
		AccessToken: "user-token-000000001",
		Title:       "Blade Runner",
		Year:        2049,
		Kind:        catalog.KindMovie,
		FileName:    "Blade.Runner.2049.mkv",
	}
	if err := jobs.Create(ctx, j); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := jobs.GetByHash(ctx, "1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("GetByHash: %v", err)
	}
	if got.AccessToken != "user-token-000000001" {
		t.Errorf("access token mismatch: %q", got.AccessToken)
	}
	if got.Kind != catalog.KindMovie || got.Year != 2049 {
		t.Errorf("unexpected job fields: %+v", got)
	}

	byRelease, err := jobs.GetByReleaseGUID(ctx, "release-5")
	if err != nil {
		t.Fatalf("GetByReleaseGUID: %v", err)
	}
	if len(byRelease) != 1 {
		t.Fatalf("expected 1 job by release guid, got %d", len(byRelease))
	}

	got.FileName = "renamed.mkv"
	if err := jobs.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	again, _ := jobs.GetByHash(ctx, got.TorrentHash)
	if again.FileName != "renamed.mkv" {
		t.Errorf("file name not refreshed: %q", again.FileName)
	}
}

func TestScanRecordInfectedPredicate(t *testing.T) {
	ctx := context.Background()
	scans := NewScanRecordStore(setupDB(t), testLogger)

	infected, err := scans.HasInfected(ctx, "release-x")
	if err != nil {
		t.Fatalf("HasInfected: %v", err)
	}
	if infected {
		t.Error("empty table reported infected release")
	}

	clean := &ScanRecord{ReleaseGUID: "release-x", SourcePath: "/q/a", Infected: false}
	if err := scans.Create(ctx, clean); err != nil {
		t.Fatalf("Create clean: %v", err)
	}
	if infected, _ = scans.HasInfected(ctx, "release-x"); infected {
		t.Error("clean scan flagged release as infected")
	}

	bad := &ScanRecord{ReleaseGUID: "release-x", SourcePath: "/q/a", Infected: true, ThreatName: "EICAR-Test"}
	if err := scans.Create(ctx, bad); err != nil {
		t.Fatalf("Create infected: %v", err)
	}
	if infected, _ = scans.HasInfected(ctx, "release-x"); !infected {
		t.Error("infected scan not reflected in predicate")
	}

	if err := scans.SetDestination(ctx, clean.ID, "/library/movies/a"); err != nil {
		t.Fatalf("SetDestination: %v", err)
	}
	records, err := scans.ListByReleaseGUID(ctx, "release-x")
	if err != nil {
		t.Fatalf("ListByReleaseGUID: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}
