// Package watcher polls saved queries and publishes results that changed since the last pass.
package watcher

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samvad-hq/sanity-query/internal/domain"
	"github.com/samvad-hq/sanity-query/internal/logger"
	"github.com/samvad-hq/sanity-query/internal/storage"
	"github.com/samvad-hq/sanity-query/pkg/publishers"
	"github.com/samvad-hq/sanity-query/pkg/queries"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 4

// Outcome is what a pass did with one saved query.
type Outcome string

const (
	OutcomeNew       Outcome = "new"
	OutcomeChanged   Outcome = "changed"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
)

// Service coordinates change detection across saved queries.
type Service struct {
	fetcher     QueryFetcher
	publisher   EventPublisher
	store       storage.Store
	log         logger.Logger
	concurrency int
	now         func() time.Time
}

// NewService wires a watcher. A nil store disables change tracking and every result is published.
func NewService(fetcher QueryFetcher, pub EventPublisher, store storage.Store, log logger.Logger, concurrency int) *Service {
	if log == nil {
		log = logger.NopLogger{}
	}
	if store == nil {
		store, _ = storage.NewStore("none", "", storage.Options{})
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Service{
		fetcher:     fetcher,
		publisher:   pub,
		store:       store,
		log:         log,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Report summarizes one pass.
type Report struct {
	RunID    string
	Outcomes map[string]Outcome
}

// Run executes one pass over qs. Per-query failures are logged and joined into the returned error.
// A cancelled context stops new queries from being scheduled.
func (s *Service) Run(ctx context.Context, qs []queries.SavedQuery) (Report, error) {
	if s == nil || s.fetcher == nil || s.publisher == nil {
		return Report{}, fmt.Errorf("watcher service is not initialized")
	}
	if len(qs) == 0 {
		return Report{}, fmt.Errorf("no queries configured for watching")
	}

	runID := uuid.NewString()
	outcomes := make([]Outcome, len(qs))
	errs := make([]error, len(qs))

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for i, q := range qs {
		if ctx.Err() != nil {
			errs[i] = fmt.Errorf("query %s: %w", q.ID, ctx.Err())
			outcomes[i] = OutcomeFailed
			continue
		}
		g.Go(func() error {
			outcome, err := s.runQuery(ctx, runID, q)
			outcomes[i] = outcome
			if err != nil {
				errs[i] = err
				s.log.ErrorObj("saved query failed", "query_error", map[string]any{
					"run_id":   runID,
					"query_id": q.ID,
					"error":    err.Error(),
				})
			}
			return nil
		})
	}
	_ = g.Wait()

	report := Report{RunID: runID, Outcomes: make(map[string]Outcome, len(qs))}
	for i, q := range qs {
		report.Outcomes[q.ID] = outcomes[i]
	}
	return report, errors.Join(errs...)
}

func (s *Service) runQuery(ctx context.Context, runID string, q queries.SavedQuery) (Outcome, error) {
	res, err := s.fetcher.Fetch(ctx, q.Query, q.Params)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("fetch query %s: %w", q.ID, err)
	}

	fingerprint, err := Fingerprint(res.Result)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("fingerprint query %s: %w", q.ID, err)
	}

	outcome := OutcomeNew
	prev, found, err := s.store.Snapshot(q.ID)
	if err != nil {
		s.log.WarnObj("snapshot lookup failed; treating result as new", "snapshot_error", map[string]any{
			"query_id": q.ID,
			"error":    err.Error(),
		})
	} else if found {
		if prev.Fingerprint == fingerprint {
			s.log.DebugObj("query result unchanged", "query_result", map[string]any{
				"query_id":    q.ID,
				"fingerprint": fingerprint,
			})
			return OutcomeUnchanged, nil
		}
		outcome = OutcomeChanged
	}

	evt := publishers.NewEvent(runID, publishers.Source{
		ProjectID: s.fetcher.ProjectID(),
		Dataset:   s.fetcher.Dataset(),
		QueryID:   q.ID,
		QueryName: q.Name,
	}, fingerprint, res.Ms, res.Result)

	delivered, pubErr := s.publisher.Publish(ctx, evt)
	if delivered == 0 {
		if pubErr == nil {
			pubErr = errors.New("no publisher accepted the event")
		}
		return OutcomeFailed, fmt.Errorf("publish query %s: %w", q.ID, pubErr)
	}
	if pubErr != nil {
		s.log.WarnObj("event partially published", "publish_error", map[string]any{
			"query_id":  q.ID,
			"delivered": delivered,
			"error":     pubErr.Error(),
		})
	}

	snap := domain.Snapshot{QueryID: q.ID, Fingerprint: fingerprint, Ms: res.Ms, FetchedAt: s.now().UTC()}
	if err := s.store.SaveSnapshot(snap); err != nil {
		return outcome, fmt.Errorf("save snapshot %s: %w", q.ID, err)
	}

	s.log.InfoObj("query result published", "query_result", map[string]any{
		"run_id":      runID,
		"query_id":    q.ID,
		"outcome":     string(outcome),
		"fingerprint": fingerprint,
		"delivered":   delivered,
	})
	return outcome, nil
}

// Fingerprint returns the hex SHA-256 of the compacted JSON value, so formatting differences
// do not count as changes.
func Fingerprint(raw json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("null")
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", err
	}
	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:]), nil
}
