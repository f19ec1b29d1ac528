package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultMaxAttempts    = 5
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// RetryPolicy bounds how often and how long a RetryClient retries a request.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy returns 5 attempts with exponential backoff starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = DefaultInitialBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = DefaultMaxBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	return p
}

// Backoff returns the wait before the given retry (1 for the first retry): InitialBackoff * 2^(retry-1),
// capped at MaxBackoff.
func (p RetryPolicy) Backoff(retry int) time.Duration {
	p = p.normalized()
	if retry < 1 {
		retry = 1
	}
	delay := p.InitialBackoff
	for i := 1; i < retry; i++ {
		delay *= 2
		if delay >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	return delay
}

// RetryNotice describes a retry that is about to be waited out.
type RetryNotice struct {
	URL        string
	Attempt    int
	Delay      time.Duration
	StatusCode int
	Err        error
}

// RetryClient retries transient failures of the wrapped Client.
type RetryClient struct {
	next    Client
	policy  RetryPolicy
	onRetry func(RetryNotice)
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewRetryClient wraps next with the given policy. onRetry may be nil.
func NewRetryClient(next Client, policy RetryPolicy, onRetry func(RetryNotice)) *RetryClient {
	return &RetryClient{
		next:    next,
		policy:  policy.normalized(),
		onRetry: onRetry,
		sleep:   sleepContext,
	}
}

// Get issues the request and retries transport errors, 5xx and 429 responses.
// When attempts run out the last response is returned as is, or the last error wrapped with the attempt count.
func (r *RetryClient) Get(ctx context.Context, url string, headers map[string]string) (Response, error) {
	if r == nil || r.next == nil {
		return nil, errors.New("retry client is not initialized")
	}

	var (
		resp Response
		err  error
	)
	for attempt := 1; ; attempt++ {
		resp, err = r.next.Get(ctx, url, headers)
		if err != nil && ctx.Err() != nil {
			return nil, err
		}
		if !Retryable(resp, err) {
			return resp, err
		}
		if attempt >= r.policy.MaxAttempts {
			break
		}

		delay := r.policy.Backoff(attempt)
		notice := RetryNotice{URL: url, Attempt: attempt, Delay: delay, Err: err}
		if err == nil {
			notice.StatusCode = resp.StatusCode()
			if ra, ok := retryAfter(resp); ok && ra > delay {
				delay = min(ra, r.policy.MaxBackoff)
				notice.Delay = delay
			}
		}
		if r.onRetry != nil {
			r.onRetry(notice)
		}
		if serr := r.sleep(ctx, delay); serr != nil {
			if err != nil {
				return nil, err
			}
			return nil, serr
		}
	}

	if err != nil {
		return nil, fmt.Errorf("after %d attempts: %w", r.policy.MaxAttempts, err)
	}
	return resp, nil
}

// Retryable reports whether a response/error pair is worth another attempt.
// Per-request timeouts are retried; cancellation of the caller's context is not.
func Retryable(resp Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= 500
}

func retryAfter(resp Response) (time.Duration, bool) {
	if resp == nil || resp.Header() == nil {
		return 0, false
	}
	code := resp.StatusCode()
	if code != http.StatusTooManyRequests && code != http.StatusServiceUnavailable {
		return 0, false
	}
	raw := strings.TrimSpace(resp.Header().Get("Retry-After"))
	if raw == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
