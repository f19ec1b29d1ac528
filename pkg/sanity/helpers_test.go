package sanity

import (
	"context"
	"net/http"

	"github.com/samvad-hq/sanity-query/pkg/httpclient"
)

type mockResponse struct {
	body       []byte
	statusCode int
	header     http.Header
}

func (r mockResponse) Body() []byte        { return r.body }
func (r mockResponse) StatusCode() int     { return r.statusCode }
func (r mockResponse) Header() http.Header { return r.header }

// recordingClient captures the last request and replies with a fixed response or error.
type recordingClient struct {
	url     string
	headers map[string]string
	calls   int
	status  int
	body    string
	err     error
}

func (c *recordingClient) Get(_ context.Context, url string, headers map[string]string) (httpclient.Response, error) {
	c.calls++
	c.url = url
	c.headers = headers
	if c.err != nil {
		return nil, c.err
	}
	status := c.status
	if status == 0 {
		status = http.StatusOK
	}
	return mockResponse{body: []byte(c.body), statusCode: status}, nil
}
