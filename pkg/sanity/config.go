// Package sanity queries the Sanity content API with GROQ over HTTPS.
package sanity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/sanity-query/pkg/httpclient"
)

const (
	apiHost    = "api.sanity.io"
	apiVersion = "v1"

	defaultTimeout = 30 * time.Second
)

// GetURL returns the data-endpoint URL for a project and dataset. Inputs are not validated.
func GetURL(projectID, dataset string) string {
	return fmt.Sprintf("https://%s.%s/%s/data/query/%s", projectID, apiHost, apiVersion, dataset)
}

// Config identifies one project/dataset pair and issues authenticated queries against it.
// A Config is immutable once built and safe for concurrent use.
type Config struct {
	projectID   string
	accessToken string
	dataset     string
	url         string
	useProd     bool
	query       Query
	client      httpclient.Client
}

// Option customizes a Config built by New.
type Option func(*Config)

// WithHTTPClient sets the client used by Get and Fetch.
func WithHTTPClient(client httpclient.Client) Option {
	return func(c *Config) {
		if client != nil {
			c.client = client
		}
	}
}

// WithEndpoint replaces the computed data-endpoint URL, e.g. for a proxy or a test server.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) {
		if endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/"); endpoint != "" {
			c.url = endpoint
		}
	}
}

// DefaultHTTPClient returns a resty-backed client with the default retry policy.
func DefaultHTTPClient() httpclient.Client {
	return httpclient.NewRetryClient(
		httpclient.NewRestyClient(defaultTimeout),
		httpclient.DefaultRetryPolicy(),
		nil,
	)
}

// New builds a Config for projectID/dataset. The token may be empty for public datasets.
// Both values of useProd address the same data endpoint; the flag is kept for callers via Production.
func New(projectID, dataset, token string, useProd bool, opts ...Option) (*Config, error) {
	projectID = strings.TrimSpace(projectID)
	dataset = strings.TrimSpace(dataset)

	if projectID == "" || strings.ContainsAny(projectID, "/:?#@. \t") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProjectID, projectID)
	}
	if dataset == "" || strings.ContainsAny(dataset, "/?#& \t") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDataset, dataset)
	}

	c := &Config{
		projectID:   projectID,
		accessToken: token,
		dataset:     dataset,
		url:         GetURL(projectID, dataset),
		useProd:     useProd,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.client == nil {
		c.client = DefaultHTTPClient()
	}
	c.query = Query{BaseURL: c.url}
	return c, nil
}

func (c *Config) ProjectID() string { return c.projectID }
func (c *Config) Dataset() string   { return c.dataset }
func (c *Config) URL() string       { return c.url }
func (c *Config) Production() bool  { return c.useProd }

// Query returns a copy of the query context: the base URL and any pending query.
func (c *Config) Query() Query { return c.query }

// WithQuery returns a copy of c whose pending query is query. c itself is unchanged.
func (c *Config) WithQuery(query string) *Config {
	cp := *c
	cp.query.Query = query
	return &cp
}

// String hides the access token.
func (c *Config) String() string {
	return fmt.Sprintf("sanity.Config{project=%s dataset=%s url=%s production=%t}", c.projectID, c.dataset, c.url, c.useProd)
}

// BuildURL returns "{base_url}?query={query}". An empty query falls back to the pending
// query; ErrMissingQuery is returned when there is neither.
func (c *Config) BuildURL(query string) (string, error) {
	return c.BuildURLWithParams(query, nil)
}

// BuildURLWithParams is BuildURL with GROQ parameters appended as "$name=<json>".
func (c *Config) BuildURLWithParams(query string, params map[string]any) (string, error) {
	if strings.TrimSpace(query) == "" {
		query = c.query.Query
	}
	if strings.TrimSpace(query) == "" {
		return "", ErrMissingQuery
	}
	return buildQueryURL(c.query.BaseURL, query, params)
}

// Get issues an authenticated GET for query and returns the raw response.
// Non-2xx responses are returned without error; use CheckStatus to turn them into one.
func (c *Config) Get(ctx context.Context, query string) (httpclient.Response, error) {
	return c.GetWithParams(ctx, query, nil)
}

// GetWithParams is Get with GROQ parameters.
func (c *Config) GetWithParams(ctx context.Context, query string, params map[string]any) (httpclient.Response, error) {
	u, err := c.BuildURLWithParams(query, params)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Get(ctx, u, c.authHeaders())
	if err != nil {
		return nil, &TransportError{URL: u, Err: err}
	}
	return resp, nil
}

// Fetch runs query, fails on non-2xx status and decodes the result envelope.
func (c *Config) Fetch(ctx context.Context, query string, params map[string]any) (*Result, error) {
	resp, err := c.GetWithParams(ctx, query, params)
	if err != nil {
		return nil, err
	}
	if err := CheckStatus(resp); err != nil {
		return nil, err
	}
	return DecodeResult(resp)
}

func (c *Config) authHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.accessToken,
		"Accept":        "application/json",
	}
}
