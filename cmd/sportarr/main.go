package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sportarr/sportarr/internal/api"
	"github.com/sportarr/sportarr/internal/autosearch"
	"github.com/sportarr/sportarr/internal/config"
	"github.com/sportarr/sportarr/internal/database"
	"github.com/sportarr/sportarr/internal/decisioning"
	"github.com/sportarr/sportarr/internal/downloader"
	"github.com/sportarr/sportarr/internal/history"
	"github.com/sportarr/sportarr/internal/importer"
	"github.com/sportarr/sportarr/internal/indexer"
	"github.com/sportarr/sportarr/internal/indexer/ratelimit"
	"github.com/sportarr/sportarr/internal/indexer/search"
	"github.com/sportarr/sportarr/internal/indexer/status"
	"github.com/sportarr/sportarr/internal/library/events"
	"github.com/sportarr/sportarr/internal/library/quality"
	"github.com/sportarr/sportarr/internal/library/rootfolder"
	"github.com/sportarr/sportarr/internal/library/scanner"
	"github.com/sportarr/sportarr/internal/logger"
	"github.com/sportarr/sportarr/internal/releasecache"
	"github.com/sportarr/sportarr/internal/rsssync"
	"github.com/sportarr/sportarr/internal/scheduler"
	"github.com/sportarr/sportarr/internal/scheduler/tasks"
	"github.com/sportarr/sportarr/internal/websocket"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:           cfg.Logging.Level,
		Format:          cfg.Logging.Format,
		Path:            cfg.Logging.Path,
		MaxSizeMB:       cfg.Logging.MaxSizeMB,
		MaxBackups:      cfg.Logging.MaxBackups,
		MaxAgeDays:      cfg.Logging.MaxAgeDays,
		Compress:        cfg.Logging.Compress,
		EnableStreaming: true,
		BufferSize:      1000,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Logging.Level).
		Msg("starting Sportarr")

	if cfg.Server.APIKey == "" {
		cfg.Server.APIKey = strings.ReplaceAll(uuid.NewString(), "-", "")
		log.Info().Str("apiKey", cfg.Server.APIKey).Msg("generated API key; set server.api_key to persist it")
	}

	db, err := database.New(cfg.Database.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	conn := db.Conn()
	ctx := context.Background()

	hub := websocket.NewHub()
	go hub.Run()

	// Library services.
	eventSvc := events.NewService(conn, hub, log.Logger)
	qualitySvc := quality.NewService(conn, log.Logger)
	if err := qualitySvc.EnsureDefaults(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to seed quality defaults")
	}
	delays := decisioning.NewDelayService(conn, log.Logger)
	if err := delays.EnsureDefault(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to seed delay profile")
	}
	rootSvc := rootfolder.NewService(conn, log.Logger)
	historySvc := history.NewService(conn, log.Logger)

	// Download pipeline.
	queue := downloader.NewQueue(conn, log.Logger)
	blocklist := downloader.NewBlocklist(conn, log.Logger)
	retries := downloader.NewRetryTracker(conn, log.Logger)
	downloaderSvc := downloader.NewService(conn, queue, retries, log.Logger)
	downloaderSvc.SetHistory(historySvc)
	checker := decisioning.NewGrabChecker(queue, blocklist, retries, log.Logger)

	// Indexer stack.
	indexerSvc := indexer.NewService(conn, log.Logger)
	statusSvc := status.NewService(conn, log.Logger)
	limiter := ratelimit.NewLimiter(ratelimit.DefaultConfig(), log.Logger)
	downloaderSvc.SetGrabLimiter(limiter)
	searchSvc := search.NewService(indexerSvc, statusSvc, limiter, downloaderSvc, hub, log.Logger)

	// Import pipeline.
	importSvc := importer.NewService(conn, eventSvc, downloaderSvc, rootSvc, historySvc, log.Logger)
	importSvc.SetScanner(scanner.NewService(log.Logger))
	if err := importSvc.EnsureSettings(ctx, importSettingsFromConfig(cfg.Media)); err != nil {
		log.Fatal().Err(err).Msg("failed to seed media management settings")
	}
	monitor := downloader.NewMonitor(downloaderSvc, queue, blocklist, retries, importSvc, hub, log.Logger)
	monitor.SetHistory(historySvc)
	hub.SetQueueRefreshHandler(func() error {
		pollCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		return monitor.Poll(pollCtx)
	})

	// Acquisition loops.
	cache := releasecache.NewService(conn, log.Logger)
	rssSettings := rsssync.DefaultSettings()
	rssSettings.MaxReleaseAge = time.Duration(cfg.Rss.ReleaseAgeLimitDays) * 24 * time.Hour
	rssSettings.PerIndexerLimit = cfg.Rss.MaxReleasesPerIndexer
	rssSettings.MinimumSeeders = cfg.Media.MinimumSeeders
	rssSettings.MultiPartEnabled = cfg.Media.EnableMultiPart
	rssSvc := rsssync.NewService(searchSvc, cache, eventSvc, qualitySvc, delays, checker,
		downloaderSvc, hub, rssSettings, log.Logger)

	searchSettings := autosearch.DefaultSettings()
	searchSettings.MinimumSeeders = cfg.Media.MinimumSeeders
	searchSettings.MultiPartEnabled = cfg.Media.EnableMultiPart
	searchOrch := autosearch.NewService(searchSvc, eventSvc, qualitySvc, delays, checker,
		downloaderSvc, historySvc, hub, searchSettings, log.Logger)

	// Background tasks.
	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create scheduler")
	}
	if err := tasks.RegisterRssSyncTask(sched, rssSvc, &cfg.Rss); err != nil {
		log.Fatal().Err(err).Msg("failed to register rss sync task")
	}
	if err := tasks.RegisterDownloadMonitorTask(sched, monitor); err != nil {
		log.Fatal().Err(err).Msg("failed to register download monitor task")
	}
	if err := tasks.RegisterScheduledSearchTask(sched, searchOrch); err != nil {
		log.Fatal().Err(err).Msg("failed to register scheduled search task")
	}
	if err := tasks.RegisterCacheSweepTask(sched, cache); err != nil {
		log.Fatal().Err(err).Msg("failed to register cache sweep task")
	}
	if err := tasks.RegisterHistoryCleanupTask(sched, historySvc); err != nil {
		log.Fatal().Err(err).Msg("failed to register history cleanup task")
	}
	if err := tasks.RegisterLibraryScanTask(sched, importSvc); err != nil {
		log.Fatal().Err(err).Msg("failed to register library scan task")
	}
	if err := tasks.RegisterQueuePruneTask(sched, queue); err != nil {
		log.Fatal().Err(err).Msg("failed to register queue prune task")
	}
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}

	srv := api.NewServer(cfg, api.Deps{
		DB:          conn,
		Hub:         hub,
		Scheduler:   sched,
		Queue:       queue,
		RssSync:     rssSvc,
		Search:      searchSvc,
		RootFolders: rootSvc,
	}, log.Logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("API server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := sched.Stop(); err != nil {
		log.Warn().Err(err).Msg("scheduler shutdown failed")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("API server shutdown failed")
	}
	log.Info().Msg("Sportarr stopped")
}

// importSettingsFromConfig maps the media section of the config file onto
// the first-boot media management settings row.
func importSettingsFromConfig(m config.MediaConfig) importer.Settings {
	st := importer.DefaultSettings()
	if m.FileFormat != "" {
		st.FileFormat = m.FileFormat
	}
	if m.FolderFormat != "" {
		st.FolderFormat = m.FolderFormat
	}
	switch {
	case m.DeleteAfterImport:
		st.TransferMode = importer.TransferMove
	case m.UseHardlinks:
		st.TransferMode = importer.TransferHardlink
	default:
		st.TransferMode = importer.TransferCopy
	}
	if m.MinimumFreeSpaceMB > 0 {
		st.MinimumFreeSpaceMB = m.MinimumFreeSpaceMB
	}
	st.SkipFreeSpaceCheck = m.SkipFreeSpaceCheck
	return st
}
