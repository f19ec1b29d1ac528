package app

import (
	"fmt"

	"github.com/samvad-hq/sanity-query/internal/config"
	"github.com/samvad-hq/sanity-query/internal/logger"
	"github.com/samvad-hq/sanity-query/pkg/httpclient"
	"github.com/samvad-hq/sanity-query/pkg/sanity"
)

// NewHTTPClient builds the Sanity transport: resty, throttled when a rate is set, with retries logged.
func NewHTTPClient(cfg *config.Config, log logger.Logger) httpclient.Client {
	if log == nil {
		log = logger.NopLogger{}
	}

	var base httpclient.Client
	if cfg.RateLimitRPS > 0 {
		base = httpclient.NewThrottledRestyClient(cfg.HTTPTimeout, cfg.RateLimitRPS, cfg.RateLimitBurst)
	} else {
		base = httpclient.NewRestyClient(cfg.HTTPTimeout)
	}

	policy := httpclient.RetryPolicy{
		MaxAttempts:    cfg.RetryMaxAttempts,
		InitialBackoff: cfg.RetryInitialBackoff,
		MaxBackoff:     httpclient.DefaultMaxBackoff,
	}
	return httpclient.NewRetryClient(base, policy, func(n httpclient.RetryNotice) {
		fields := map[string]any{
			"attempt":  n.Attempt,
			"delay_ms": n.Delay.Milliseconds(),
			"status":   n.StatusCode,
		}
		if n.Err != nil {
			fields["error"] = n.Err.Error()
		}
		log.WarnObj("retrying sanity request", "sanity_retry", fields)
	})
}

// NewSanityConfig builds the Sanity client configuration from app config.
func NewSanityConfig(cfg *config.Config, client httpclient.Client) (*sanity.Config, error) {
	opts := []sanity.Option{sanity.WithHTTPClient(client)}
	if cfg.SanityEndpoint != "" {
		opts = append(opts, sanity.WithEndpoint(cfg.SanityEndpoint))
	}

	sc, err := sanity.New(cfg.SanityProjectID, cfg.SanityDataset, cfg.SanityToken, cfg.SanityUseProd, opts...)
	if err != nil {
		return nil, fmt.Errorf("init sanity client: %w", err)
	}
	return sc, nil
}
