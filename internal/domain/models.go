package domain

import "time"

// Snapshot records the last published state of a saved query.
type Snapshot struct {
	QueryID     string    `json:"query_id"`
	Fingerprint string    `json:"fingerprint"`
	Ms          int       `json:"ms"`
	FetchedAt   time.Time `json:"fetched_at"`
}
