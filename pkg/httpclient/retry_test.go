package httpclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

type stubResponse struct {
	status int
	body   []byte
	header http.Header
}

func (s stubResponse) Body() []byte        { return s.body }
func (s stubResponse) StatusCode() int     { return s.status }
func (s stubResponse) Header() http.Header { return s.header }

type step struct {
	resp Response
	err  error
}

// sequenceClient replays steps in order and repeats the last one.
type sequenceClient struct {
	steps []step
	calls int
}

func (s *sequenceClient) Get(context.Context, string, map[string]string) (Response, error) {
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	return s.steps[i].resp, s.steps[i].err
}

func newTestRetryClient(next Client, policy RetryPolicy, delays *[]time.Duration) *RetryClient {
	rc := NewRetryClient(next, policy, nil)
	rc.sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return rc
}

func TestRetryPolicyBackoffDoublesAndCaps(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Second, MaxBackoff: 5 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second}
	for i, w := range want {
		if got := p.Backoff(i + 1); got != w {
			t.Fatalf("Backoff(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	if p.MaxAttempts != 5 || p.InitialBackoff != time.Second {
		t.Fatalf("unexpected default policy %+v", p)
	}
}

func TestRetryClientRetriesServerErrorsUntilSuccess(t *testing.T) {
	next := &sequenceClient{steps: []step{
		{resp: stubResponse{status: 503}},
		{resp: stubResponse{status: 500}},
		{resp: stubResponse{status: 200, body: []byte("ok")}},
	}}
	var delays []time.Duration
	rc := newTestRetryClient(next, DefaultRetryPolicy(), &delays)

	resp, err := rc.Get(context.Background(), "https://example.com", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode() != 200 || next.calls != 3 {
		t.Fatalf("status=%d calls=%d", resp.StatusCode(), next.calls)
	}
	if len(delays) != 2 || delays[0] != time.Second || delays[1] != 2*time.Second {
		t.Fatalf("unexpected delays %v", delays)
	}
}

func TestRetryClientDoesNotRetryClientErrors(t *testing.T) {
	next := &sequenceClient{steps: []step{{resp: stubResponse{status: 404}}}}
	var delays []time.Duration
	rc := newTestRetryClient(next, DefaultRetryPolicy(), &delays)

	resp, err := rc.Get(context.Background(), "https://example.com", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode() != 404 || next.calls != 1 || len(delays) != 0 {
		t.Fatalf("status=%d calls=%d delays=%v", resp.StatusCode(), next.calls, delays)
	}
}

func TestRetryClientReturnsLastResponseWhenExhausted(t *testing.T) {
	next := &sequenceClient{steps: []step{{resp: stubResponse{status: 502}}}}
	var delays []time.Duration
	rc := newTestRetryClient(next, RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond}, &delays)

	resp, err := rc.Get(context.Background(), "https://example.com", nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode() != 502 || next.calls != 3 {
		t.Fatalf("status=%d calls=%d", resp.StatusCode(), next.calls)
	}
}

func TestRetryClientWrapsTransportErrorWithAttempts(t *testing.T) {
	boom := errors.New("connection refused")
	next := &sequenceClient{steps: []step{{err: boom}}}
	var delays []time.Duration
	rc := newTestRetryClient(next, RetryPolicy{MaxAttempts: 2, InitialBackoff: time.Millisecond}, &delays)

	_, err := rc.Get(context.Background(), "https://example.com", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
	if !strings.Contains(err.Error(), "after 2 attempts") {
		t.Fatalf("expected attempt count in %q", err.Error())
	}
	if next.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", next.calls)
	}
}

func TestRetryClientHonoursRetryAfter(t *testing.T) {
	limited := stubResponse{status: 429, header: http.Header{"Retry-After": []string{"3"}}}
	next := &sequenceClient{steps: []step{
		{resp: limited},
		{resp: stubResponse{status: 200}},
	}}
	var delays []time.Duration
	var notices []RetryNotice
	rc := newTestRetryClient(next, DefaultRetryPolicy(), &delays)
	rc.onRetry = func(n RetryNotice) { notices = append(notices, n) }

	if _, err := rc.Get(context.Background(), "https://example.com", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(delays) != 1 || delays[0] != 3*time.Second {
		t.Fatalf("expected Retry-After delay, got %v", delays)
	}
	if len(notices) != 1 || notices[0].StatusCode != 429 || notices[0].Attempt != 1 {
		t.Fatalf("unexpected notices %+v", notices)
	}
}

func TestRetryClientStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	next := &sequenceClient{steps: []step{{err: context.Canceled}}}
	var delays []time.Duration
	rc := newTestRetryClient(next, DefaultRetryPolicy(), &delays)

	if _, err := rc.Get(ctx, "https://example.com", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if next.calls != 1 || len(delays) != 0 {
		t.Fatalf("calls=%d delays=%v", next.calls, delays)
	}
}
