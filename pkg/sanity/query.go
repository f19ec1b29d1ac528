package sanity

import (
	"context"
	"strings"

	"github.com/samvad-hq/sanity-query/pkg/httpclient"
)

// Query is a base URL plus optional query text. Execute sends it without credentials.
type Query struct {
	BaseURL string
	Query   string
}

// Execute issues an anonymous GET for q and decodes the body as generic JSON.
// The status code is not inspected. A nil client uses DefaultHTTPClient.
func (q Query) Execute(ctx context.Context, client httpclient.Client) (any, error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, ErrMissingQuery
	}
	if client == nil {
		client = DefaultHTTPClient()
	}

	u, err := buildQueryURL(q.BaseURL, q.Query, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Get(ctx, u, nil)
	if err != nil {
		return nil, &TransportError{URL: u, Err: err}
	}
	return GetJSON(resp)
}
