package publishers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Source identifies the saved query an event was produced for.
type Source struct {
	ProjectID string
	Dataset   string
	QueryID   string
	QueryName string
}

// Event is the payload published downstream when a saved query's result changes.
type Event struct {
	ID          string          `json:"id"`
	RunID       string          `json:"run_id"`
	QueryID     string          `json:"query_id"`
	QueryName   string          `json:"query_name"`
	ProjectID   string          `json:"project_id"`
	Dataset     string          `json:"dataset"`
	Fingerprint string          `json:"fingerprint"`
	Ms          int             `json:"ms"`
	Result      json.RawMessage `json:"result"`
	FetchedAt   time.Time       `json:"fetched_at"`
}

// NewEvent builds an Event with a fresh id for one changed result.
func NewEvent(runID string, src Source, fingerprint string, ms int, result json.RawMessage) Event {
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	return Event{
		ID:          uuid.NewString(),
		RunID:       runID,
		QueryID:     src.QueryID,
		QueryName:   src.QueryName,
		ProjectID:   src.ProjectID,
		Dataset:     src.Dataset,
		Fingerprint: fingerprint,
		Ms:          ms,
		Result:      result,
		FetchedAt:   time.Now().UTC(),
	}
}

// attributes are the routing attributes attached to queue and topic messages.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"event_id":   e.ID,
		"query_id":   e.QueryID,
		"project_id": e.ProjectID,
		"dataset":    e.Dataset,
	}
}
