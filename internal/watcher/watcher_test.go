package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/samvad-hq/sanity-query/internal/domain"
	"github.com/samvad-hq/sanity-query/pkg/publishers"
	"github.com/samvad-hq/sanity-query/pkg/queries"
	"github.com/samvad-hq/sanity-query/pkg/sanity"
)

// fakeFetcher returns a preset result per query text.
type fakeFetcher struct {
	mu      sync.Mutex
	results map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeFetcher) ProjectID() string { return "abc123" }
func (f *fakeFetcher) Dataset() string   { return "production" }
func (f *fakeFetcher) Fetch(_ context.Context, query string, _ map[string]any) (*sanity.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, query)
	if err := f.errs[query]; err != nil {
		return nil, err
	}
	return &sanity.Result{Ms: 3, Query: query, Result: json.RawMessage(f.results[query])}, nil
}

// fakePublisher records published events and can inject errors.
type fakePublisher struct {
	mu        sync.Mutex
	events    []publishers.Event
	delivered int
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, evt publishers.Event) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	return f.delivered, f.err
}

// fakeStore keeps snapshots in memory.
type fakeStore struct {
	mu      sync.Mutex
	snaps   map[string]domain.Snapshot
	readErr error
	saveErr error
}

func newFakeStore() *fakeStore { return &fakeStore{snaps: make(map[string]domain.Snapshot)} }

func (f *fakeStore) Close() error { return nil }
func (f *fakeStore) Snapshot(id string) (domain.Snapshot, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return domain.Snapshot{}, false, f.readErr
	}
	s, ok := f.snaps[id]
	return s, ok, nil
}
func (f *fakeStore) SaveSnapshot(s domain.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.snaps[s.QueryID] = s
	return nil
}

func saved(id, query string) queries.SavedQuery {
	return queries.SavedQuery{ID: id, Name: strings.ToUpper(id), Query: query}
}

func TestRunPublishesNewThenSkipsUnchanged(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string]string{"q1": `[{"_id":"a"}]`}}
	pub := &fakePublisher{delivered: 1}
	store := newFakeStore()
	svc := NewService(fetcher, pub, store, nil, 2)

	report, err := svc.Run(context.Background(), []queries.SavedQuery{saved("posts", "q1")})
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if report.Outcomes["posts"] != OutcomeNew || report.RunID == "" {
		t.Fatalf("unexpected report %+v", report)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	evt := pub.events[0]
	if evt.QueryID != "posts" || evt.QueryName != "POSTS" || evt.ProjectID != "abc123" || evt.Dataset != "production" {
		t.Fatalf("unexpected event %+v", evt)
	}
	if evt.RunID != report.RunID || evt.Ms != 3 || string(evt.Result) != `[{"_id":"a"}]` {
		t.Fatalf("unexpected event payload %+v", evt)
	}
	if store.snaps["posts"].Fingerprint != evt.Fingerprint {
		t.Fatalf("snapshot not saved with event fingerprint")
	}

	// Same document, different formatting.
	fetcher.results["q1"] = `[ { "_id": "a" } ]`
	report, err = svc.Run(context.Background(), []queries.SavedQuery{saved("posts", "q1")})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.Outcomes["posts"] != OutcomeUnchanged {
		t.Fatalf("expected unchanged, got %s", report.Outcomes["posts"])
	}
	if len(pub.events) != 1 {
		t.Fatalf("unchanged result should not publish")
	}

	fetcher.results["q1"] = `[{"_id":"b"}]`
	report, _ = svc.Run(context.Background(), []queries.SavedQuery{saved("posts", "q1")})
	if report.Outcomes["posts"] != OutcomeChanged || len(pub.events) != 2 {
		t.Fatalf("expected changed result to publish, outcome=%s events=%d", report.Outcomes["posts"], len(pub.events))
	}
}

func TestRunJoinsPerQueryErrors(t *testing.T) {
	fetchErr := errors.New("upstream down")
	fetcher := &fakeFetcher{
		results: map[string]string{"ok": `1`},
		errs:    map[string]error{"bad": fetchErr},
	}
	pub := &fakePublisher{delivered: 1}
	svc := NewService(fetcher, pub, newFakeStore(), nil, 1)

	report, err := svc.Run(context.Background(), []queries.SavedQuery{saved("a", "ok"), saved("b", "bad")})
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected joined fetch error, got %v", err)
	}
	if report.Outcomes["a"] != OutcomeNew || report.Outcomes["b"] != OutcomeFailed {
		t.Fatalf("unexpected outcomes %+v", report.Outcomes)
	}
}

func TestRunDoesNotSaveWhenNothingDelivered(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string]string{"q": `{}`}}
	pub := &fakePublisher{delivered: 0, err: errors.New("sink down")}
	store := newFakeStore()
	svc := NewService(fetcher, pub, store, nil, 1)

	if _, err := svc.Run(context.Background(), []queries.SavedQuery{saved("x", "q")}); err == nil {
		t.Fatalf("expected publish error")
	}
	if _, ok := store.snaps["x"]; ok {
		t.Fatalf("snapshot must not be saved when no publisher accepted the event")
	}
}

func TestRunSavesOnPartialDelivery(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string]string{"q": `{}`}}
	pub := &fakePublisher{delivered: 1, err: errors.New("one sink down")}
	store := newFakeStore()
	svc := NewService(fetcher, pub, store, nil, 1)

	if _, err := svc.Run(context.Background(), []queries.SavedQuery{saved("x", "q")}); err != nil {
		t.Fatalf("partial delivery should not fail the query: %v", err)
	}
	if _, ok := store.snaps["x"]; !ok {
		t.Fatalf("expected snapshot after partial delivery")
	}
}

func TestRunTreatsStoreReadErrorAsNew(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string]string{"q": `true`}}
	pub := &fakePublisher{delivered: 1}
	store := newFakeStore()
	store.readErr = errors.New("db locked")
	svc := NewService(fetcher, pub, store, nil, 1)

	report, err := svc.Run(context.Background(), []queries.SavedQuery{saved("x", "q")})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Outcomes["x"] != OutcomeNew || len(pub.events) != 1 {
		t.Fatalf("expected publish despite store error, got %+v", report)
	}
}

func TestRunStopsSchedulingWhenCancelled(t *testing.T) {
	fetcher := &fakeFetcher{results: map[string]string{"q": `1`}}
	svc := NewService(fetcher, &fakePublisher{delivered: 1}, nil, nil, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Run(ctx, []queries.SavedQuery{saved("a", "q"), saved("b", "q")})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(fetcher.calls) != 0 {
		t.Fatalf("expected no fetches after cancel, got %d", len(fetcher.calls))
	}
}

func TestRunValidatesInput(t *testing.T) {
	var svc *Service
	if _, err := svc.Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil service")
	}
	svc = NewService(&fakeFetcher{}, &fakePublisher{}, nil, nil, 0)
	if _, err := svc.Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error for empty query list")
	}
}

func TestFingerprint(t *testing.T) {
	a, err := Fingerprint(json.RawMessage(`{"a": 1}`))
	if err != nil {
		t.Fatalf("Fingerprint: %v", err)
	}
	b, _ := Fingerprint(json.RawMessage(`{"a":1}`))
	if a != b || len(a) != 64 {
		t.Fatalf("expected equal 64-char fingerprints, got %q %q", a, b)
	}
	empty, _ := Fingerprint(nil)
	null, _ := Fingerprint(json.RawMessage("null"))
	if empty != null {
		t.Fatalf("empty result should fingerprint like null")
	}
	if _, err := Fingerprint(json.RawMessage(`{`)); err == nil {
		t.Fatalf("expected error for invalid json")
	}
}
