package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samvad-hq/sanity-query/internal/config"
	"github.com/samvad-hq/sanity-query/internal/logger"
	"github.com/samvad-hq/sanity-query/internal/storage"
	"github.com/samvad-hq/sanity-query/internal/watcher"
	"github.com/samvad-hq/sanity-query/pkg/publishers"
	"github.com/samvad-hq/sanity-query/pkg/queries"
)

// Watcher is the change-watcher runtime. It owns the poll loop and the resources the
// watcher service needs: the saved-query registry, the publisher fan-out and the snapshot store.
type Watcher struct {
	cfg          *config.Config
	queryReg     *queries.Registry
	fanout       *publishers.Fanout
	service      *watcher.Service
	pollInterval time.Duration
	log          logger.Logger
	store        storage.Store
}

// NewWatcher builds a watcher runtime from config files.
func NewWatcher(ctx context.Context, cfg *config.Config, log logger.Logger) (*Watcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sanityCfg, err := NewSanityConfig(cfg, NewHTTPClient(cfg, log))
	if err != nil {
		return nil, err
	}

	queryReg, err := queries.LoadRegistry(cfg.QueriesFile)
	if err != nil {
		return nil, fmt.Errorf("load queries registry: %w", err)
	}
	enabledQueries := queryReg.Enabled()
	queryIDs := make([]string, 0, len(enabledQueries))
	for _, q := range enabledQueries {
		queryIDs = append(queryIDs, q.ID)
	}
	log.InfoObj("queries registry loaded", "queries_meta", map[string]any{
		"count": len(queryIDs),
		"ids":   queryIDs,
	})

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabledPublishers := publisherReg.Enabled()
	if len(enabledPublishers) == 0 {
		return nil, fmt.Errorf("no publishers configured")
	}

	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	fanout := publishers.NewFanout(pubClients)
	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})

	storeOpts := storage.Options{
		SnapshotTTL:     cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
		RedisAddr:       cfg.RedisAddr,
		RedisPassword:   cfg.RedisPassword,
		RedisDB:         cfg.RedisDB,
	}
	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storeOpts)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("init storage: %w", err), fanout.Close())
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"redis_addr":               cfg.RedisAddr,
		"snapshot_ttl_seconds":     int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	return &Watcher{
		cfg:          cfg,
		queryReg:     queryReg,
		fanout:       fanout,
		service:      watcher.NewService(sanityCfg, fanout, store, log, cfg.Concurrency),
		pollInterval: cfg.PollInterval,
		log:          log,
		store:        store,
	}, nil
}

// Run polls immediately and then on every tick until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if w == nil || w.service == nil {
		return fmt.Errorf("watcher is not initialized")
	}
	defer w.close()

	qs := w.queryReg.Enabled()
	if len(qs) == 0 {
		w.log.WarnObj("no enabled queries; watcher idle", "queries_file", w.cfg.QueriesFile)
		<-ctx.Done()
		return nil
	}

	w.log.InfoObj("watcher loop starting", "watcher_state", map[string]any{
		"queries_count":    len(qs),
		"publishers_count": w.fanout.Size(),
		"poll_interval":    w.pollInterval.String(),
	})

	if err := w.runOnce(ctx, qs); err != nil {
		w.log.ErrorObj("initial poll failed", "error", err.Error())
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.InfoObj("watcher loop exiting", "reason", ctx.Err().Error())
			return nil
		case <-ticker.C:
			if err := w.runOnce(ctx, qs); err != nil {
				w.log.ErrorObj("scheduled poll failed", "error", err.Error())
			}
		}
	}
}

// RunOnce performs a single pass over the enabled queries and releases resources.
func (w *Watcher) RunOnce(ctx context.Context) error {
	if w == nil || w.service == nil {
		return fmt.Errorf("watcher is not initialized")
	}
	defer w.close()

	qs := w.queryReg.Enabled()
	if len(qs) == 0 {
		return fmt.Errorf("no enabled queries in %s", w.cfg.QueriesFile)
	}
	return w.runOnce(ctx, qs)
}

func (w *Watcher) runOnce(ctx context.Context, qs []queries.SavedQuery) error {
	start := time.Now()
	report, err := w.service.Run(ctx, qs)

	counts := make(map[watcher.Outcome]int)
	for _, o := range report.Outcomes {
		counts[o]++
	}
	w.log.InfoObj("poll completed", "poll_meta", map[string]any{
		"run_id":        report.RunID,
		"queries_count": len(qs),
		"new":           counts[watcher.OutcomeNew],
		"changed":       counts[watcher.OutcomeChanged],
		"unchanged":     counts[watcher.OutcomeUnchanged],
		"failed":        counts[watcher.OutcomeFailed],
		"elapsed_ms":    time.Since(start).Milliseconds(),
	})
	return err
}

// close releases the store and publishers, logging any errors encountered.
func (w *Watcher) close() {
	if w == nil {
		return
	}
	if w.store != nil {
		if err := w.store.Close(); err != nil {
			w.log.ErrorObj("storage close failed", "error", err.Error())
		}
	}
	if err := w.fanout.Close(); err != nil {
		w.log.ErrorObj("publishers close failed", "error", err.Error())
	}
}
