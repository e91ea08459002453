package main

import (
	"context"
	"fmt"
	"os"

	"github.com/JustJay7/docket-merger/internal/archive"
	"github.com/JustJay7/docket-merger/internal/cache"
	"github.com/JustJay7/docket-merger/internal/config"
	"github.com/JustJay7/docket-merger/internal/courts"
	"github.com/JustJay7/docket-merger/internal/database"
	"github.com/JustJay7/docket-merger/internal/judges"
	"github.com/JustJay7/docket-merger/internal/merger"
	"github.com/JustJay7/docket-merger/internal/pipeline"
	"github.com/JustJay7/docket-merger/pkg/logger"
	"gorm.io/gorm"
)

const (
	indexWorkers = 2
	indexBacklog = 256
)

// app is the wired process: store, collaborators and the engine.
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	db         *gorm.DB
	judgeCache cache.Cache[*uint]
	merger     *merger.Merger

	cancel  context.CancelFunc
	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}

	db, err := database.Initialize(cfg.DatabaseURL, cfg.LogLevel == "debug")
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	a := &app{cfg: cfg, log: log, db: db}

	registry, err := courts.Load(cfg.CourtsFile)
	if err != nil {
		a.Close()
		return nil, err
	}

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.judgeCache = cache.NewCache[*uint](cfg.CacheSize, cfg.CacheTTL)

	workerCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	indexer := pipeline.NewPartyIndexer(a.indexParties, indexWorkers, indexBacklog, log)
	indexer.Start(workerCtx)
	a.closers = append(a.closers, func() error {
		indexer.Close()
		return nil
	})

	a.merger = merger.New(db, registry, log,
		merger.WithJudgeFinder(judges.NewFinder(db, a.judgeCache, log)),
		merger.WithArchiver(archive.NewArchiver(db, store, log)),
		merger.WithPartyIndexer(indexer),
		merger.WithPDFProcessor(pipeline.NewRequeuer(db, log)),
		merger.WithPartyRetry(merger.RetryPolicy{
			Attempts: uint(max(cfg.PartyRetryAttempts, 1)),
			Delay:    cfg.PartyRetryDelay,
		}),
		merger.WithOrphanWindows(cfg.OrphanLookback, cfg.OrphanFallback),
	)
	return a, nil
}

func (a *app) openStore(ctx context.Context) (archive.Store, error) {
	if a.cfg.ArchiveBackend == "gcs" {
		store, err := archive.NewGCSStore(ctx, a.cfg.GCSBucket, a.cfg.GCSCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("open archive bucket: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	}
	if err := os.MkdirAll(a.cfg.ArchivePath, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}
	return archive.NewLocalStore(a.cfg.ArchivePath), nil
}

// indexParties refreshes the party summary the search side reads for a
// docket.
func (a *app) indexParties(ctx context.Context, docketID uint) error {
	var names []string
	err := a.db.WithContext(ctx).
		Model(&database.Party{}).
		Joins("JOIN party_types ON party_types.party_id = parties.id").
		Where("party_types.docket_id = ?", docketID).
		Distinct().
		Order("parties.name").
		Pluck("parties.name", &names).Error
	if err != nil {
		return fmt.Errorf("load parties for docket %d: %w", docketID, err)
	}
	a.log.Debug("Party index refreshed", "docketID", docketID, "parties", len(names))
	return nil
}

// Close stops background work and releases the store. Safe to call twice.
func (a *app) Close() {
	for _, closer := range a.closers {
		if err := closer(); err != nil {
			a.log.Error("Shutdown step failed", "error", err)
		}
	}
	a.closers = nil
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.log.Sync()
}
