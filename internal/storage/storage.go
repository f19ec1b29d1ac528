// Package storage persists the last published snapshot of each saved query.
package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/sanity-query/internal/domain"
)

// Store tracks query snapshots keyed by query id.
type Store interface {
	Close() error
	Snapshot(queryID string) (domain.Snapshot, bool, error)
	SaveSnapshot(snap domain.Snapshot) error
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	SnapshotTTL     time.Duration
	CleanupInterval time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

const (
	defaultSnapshotTTL     = 7 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	case "redis":
		if strings.TrimSpace(opts.RedisAddr) == "" {
			return nil, fmt.Errorf("redis storage requires an address")
		}
		return openRedis(opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.SnapshotTTL <= 0 {
		opts.SnapshotTTL = defaultSnapshotTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error { return nil }
func (noopStore) Snapshot(string) (domain.Snapshot, bool, error) {
	return domain.Snapshot{}, false, nil
}
func (noopStore) SaveSnapshot(domain.Snapshot) error { return nil }
