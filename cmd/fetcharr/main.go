package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/fetcharr/fetcharr/internal/api"
	"github.com/fetcharr/fetcharr/internal/catalog"
	"github.com/fetcharr/fetcharr/internal/config"
	"github.com/fetcharr/fetcharr/internal/crypto"
	"github.com/fetcharr/fetcharr/internal/database"
	"github.com/fetcharr/fetcharr/internal/downloader"
	"github.com/fetcharr/fetcharr/internal/indexer"
	"github.com/fetcharr/fetcharr/internal/library"
	"github.com/fetcharr/fetcharr/internal/logger"
	"github.com/fetcharr/fetcharr/internal/metadata"
	"github.com/fetcharr/fetcharr/internal/orchestrator"
	"github.com/fetcharr/fetcharr/internal/scanner"
	"github.com/fetcharr/fetcharr/internal/scheduler"
	"github.com/fetcharr/fetcharr/internal/store"
)

func main() {
	// .env is optional; real deployments use environment variables
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.Info().
		Str("logLevel", cfg.Logging.Level).
		Dur("tickInterval", cfg.Sync.TickInterval).
		Msg("starting fetcharr")

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	ctx := context.Background()

	settings := store.NewSettingsStore(db.Conn())
	salt, err := settings.EnsureSecretSalt(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize secret salt")
	}
	secrets := crypto.NewSecretStore(cfg.Auth.APIKey, salt)

	users := store.NewWatchUserStore(db.Conn(), secrets, log.Logger)
	jobs := store.NewDownloadJobStore(db.Conn(), secrets, log.Logger)
	scans := store.NewScanRecordStore(db.Conn(), log.Logger)

	catalogClient, err := catalog.NewClient(catalog.ClientConfig{
		URL:     cfg.Catalog.URL,
		Timeout: cfg.Catalog.Timeout,
	}, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create catalog client")
	}

	indexerClient, err := indexer.NewClient(indexer.ClientConfig{
		URL:        cfg.Indexer.URL,
		APIKey:     cfg.Indexer.APIKey,
		Timeout:    cfg.Indexer.Timeout,
		MinSeeders: cfg.Indexer.MinSeeders,
	}, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create indexer client")
	}

	downloaderClient := downloader.NewClient(
		cfg.Downloader.Host,
		cfg.Downloader.Port,
		cfg.Downloader.Username,
		cfg.Downloader.Password,
		cfg.Downloader.Timeout,
		log.Logger,
	)
	defer downloaderClient.Close()

	scannerClient := scanner.NewClient(cfg.Scanner.URL, cfg.Scanner.Timeout, log.Logger)

	metadataClient := metadata.NewClient(metadata.ClientConfig{
		URL:    cfg.Metadata.URL,
		APIKey: cfg.Metadata.APIKey,
	}, log.Logger)

	files := library.NewService(
		cfg.Library.QuarantineRoot,
		cfg.Library.MovieRoot,
		cfg.Library.ShowRoot,
		log.Logger,
	)

	orch := orchestrator.NewService(
		cfg.Sync,
		catalogClient,
		metadataClient,
		indexerClient,
		downloaderClient,
		scannerClient,
		files,
		users,
		jobs,
		scans,
		log.Logger,
	)

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}

	err = sched.RegisterTask(scheduler.TaskConfig{
		ID:          "orchestrator-tick",
		Name:        "Acquisition tick",
		Description: "Reconcile jobs and process the union watchlist",
		Interval:    cfg.Sync.TickInterval,
		RunOnStart:  true,
		Func: func(ctx context.Context) error {
			_, err := orch.Run(ctx)
			if err == orchestrator.ErrTickInProgress {
				return nil
			}
			return err
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register orchestrator tick")
	}

	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	server := api.NewServer(cfg, orch, downloaderClient, indexerClient, users, sched, log.Logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("API server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	// pending triggers are cancelled; an in-flight tick completes first
	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API server shutdown failed")
	}

	log.Info().Msg("shutdown complete")
}
