package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/Aman-CERP/snipsearch/internal/config"
	snerrors "github.com/Aman-CERP/snipsearch/internal/errors"
	"github.com/Aman-CERP/snipsearch/internal/index"
	"github.com/Aman-CERP/snipsearch/internal/search"
	"github.com/Aman-CERP/snipsearch/internal/snippets"
	"github.com/Aman-CERP/snipsearch/internal/store"
	"github.com/Aman-CERP/snipsearch/internal/telemetry"
)

// app holds the wired components every command works with.
type app struct {
	cfg      *config.Config
	store    *store.SQLiteStore
	lookup   *store.CachedLookup
	backend  index.Service
	trigger  *index.Trigger
	engine   *search.Engine
	metrics  *telemetry.QueryMetrics
	stats    *telemetry.SQLiteStore
	snippets *snippets.Service

	// blobDir is the local blob directory; empty for the hosted backend.
	blobDir string
}

// openApp wires the system of record, the index backend, the search engine
// and the mutation service from cfg.
func openApp(cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.store, err = store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.lookup = store.NewCachedLookup(a.store, cfg.Database.LookupCacheSize)

	a.stats, err = telemetry.NewSQLiteStore(a.store.DB())
	if err != nil {
		return nil, fmt.Errorf("failed to open telemetry store: %w", err)
	}
	a.metrics = telemetry.NewQueryMetrics(a.stats)

	switch cfg.Index.Backend {
	case config.BackendHosted:
		hosted, herr := index.NewHostedClient(hostedConfig(cfg))
		if herr != nil {
			return nil, herr
		}
		a.backend = hosted
	default:
		crawler := blobCrawler(cfg)
		local, lerr := index.NewLocalService(index.LocalConfig{
			Path: cfg.Index.LocalPath,
			Top:  cfg.Index.Top,
			Crawlers: map[index.Kind]index.Crawler{
				index.KindMetadata:    &index.MetadataCrawler{Store: a.store},
				index.KindFileContent: crawler,
			},
		})
		if lerr != nil {
			return nil, lerr
		}
		a.backend = local
		a.blobDir = crawler.Dir()
	}

	a.trigger = index.NewTrigger(a.backend,
		index.WithRetryConfig(retryConfig(cfg)),
		index.WithRefreshTimeout(cfg.RefreshTimeout()))

	reconciler, err := search.NewReconciler(a.backend, search.StoreLookup(a.lookup), search.ReconcilerConfig{
		Layout:   cfg.Layout(),
		Parallel: cfg.IsParallel(),
		Timeout:  cfg.SearchTimeout(),
	})
	if err != nil {
		return nil, err
	}
	a.engine, err = search.NewEngine(reconciler,
		search.WithRatings(search.StoreRatings(a.store)),
		search.WithMetrics(a.metrics))
	if err != nil {
		return nil, err
	}

	svcOpts := []snippets.Option{snippets.WithCache(a.lookup)}
	if a.blobDir != "" {
		svcOpts = append(svcOpts, snippets.WithBlobStore(&snippets.FSBlobStore{Dir: a.blobDir}))
	}
	a.snippets, err = snippets.NewService(a.store, a.trigger, svcOpts...)
	if err != nil {
		return nil, err
	}

	slog.Debug("app_opened",
		slog.String("backend", cfg.Index.Backend),
		slog.String("database", cfg.Database.Path),
		slog.Bool("parallel", cfg.IsParallel()))
	return a, nil
}

func hostedConfig(cfg *config.Config) index.HostedConfig {
	return index.HostedConfig{
		Endpoint:   cfg.Index.Endpoint,
		APIKey:     cfg.Index.APIKey,
		APIVersion: cfg.Index.APIVersion,
		Indexes: map[index.Kind]string{
			index.KindMetadata:    cfg.Index.MetadataIndex,
			index.KindFileContent: cfg.Index.FileIndex,
		},
		Indexers: map[index.Kind]string{
			index.KindMetadata:    cfg.Index.MetadataIndexer,
			index.KindFileContent: cfg.Index.FileIndexer,
		},
		Top:     cfg.Index.Top,
		Timeout: cfg.IndexTimeout(),
	}
}

func blobCrawler(cfg *config.Config) *index.BlobCrawler {
	return &index.BlobCrawler{
		Root:      filepath.Clean(cfg.Storage.BlobRoot),
		Container: cfg.Storage.Container,
		Prefix:    cfg.PrefixSegments(),
		Layout:    cfg.Layout(),
	}
}

func retryConfig(cfg *config.Config) snerrors.RetryConfig {
	rc := snerrors.DefaultRetryConfig()
	if cfg.Refresh.MaxRetries >= 0 {
		rc.MaxRetries = cfg.Refresh.MaxRetries
	}
	if d := cfg.RefreshInitialDelay(); d > 0 {
		rc.InitialDelay = d
	}
	return rc
}

// settle waits for fired refreshes, bounded by timeout.
func (a *app) settle(timeout time.Duration) {
	if a.trigger == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		a.trigger.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		slog.Warn("index_refresh_pending", slog.Duration("waited", timeout))
	}
}

// Close releases every component in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	if a.trigger != nil {
		a.trigger.Close()
	}
	if a.backend != nil {
		errs = append(errs, a.backend.Close())
	}
	if a.metrics != nil {
		errs = append(errs, a.metrics.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

// loadConfig loads configuration for dir and applies command-line overrides.
func loadConfig(dir string) (*config.Config, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Server.LogLevel = logLevel
	}
	return cfg, nil
}

// withApp loads config, opens the app, runs fn and closes everything.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig(configDir)
	if err != nil {
		return err
	}
	a, err := openApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	if ctx == nil {
		ctx = context.Background()
	}
	return fn(ctx, a)
}
