package watcher

import (
	"context"

	"github.com/samvad-hq/sanity-query/pkg/publishers"
	"github.com/samvad-hq/sanity-query/pkg/sanity"
)

// QueryFetcher runs GROQ queries against one project/dataset.
type QueryFetcher interface {
	ProjectID() string
	Dataset() string
	Fetch(ctx context.Context, query string, params map[string]any) (*sanity.Result, error)
}

// EventPublisher publishes change events downstream and reports how many sinks accepted them.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}
