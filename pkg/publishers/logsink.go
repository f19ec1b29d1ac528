package publishers

import (
	"context"
	"fmt"
)

// logPublisher writes events to the application log. Useful during development.
type logPublisher struct {
	id            string
	includeResult bool
	log           Logger
}

func newLogPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if log == nil {
		return nil, fmt.Errorf("publisher %q requires a logger", cfg.ID)
	}
	p := &logPublisher{id: cfg.ID, log: log}
	if cfg.Log != nil {
		p.includeResult = cfg.Log.IncludeResult
	}
	return p, nil
}

func (l *logPublisher) ID() string   { return l.id }
func (l *logPublisher) Type() string { return TypeLog }

func (l *logPublisher) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	fields := map[string]any{
		"publisher_id": l.id,
		"event_id":     evt.ID,
		"run_id":       evt.RunID,
		"query_id":     evt.QueryID,
		"fingerprint":  evt.Fingerprint,
		"ms":           evt.Ms,
		"result_bytes": len(evt.Result),
	}
	if l.includeResult {
		fields["result"] = string(evt.Result)
	}
	l.log.InfoObj("query result changed", "sanity_event", fields)
	return nil
}
