package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samvad-hq/sanity-query/internal/domain"
)

const (
	redisKeyPrefix   = "sanity:snapshot:"
	redisOpTimeout   = 5 * time.Second
	redisPingTimeout = 5 * time.Second
)

// redisClient is the subset of *goredis.Client used by redisStore.
type redisClient interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Close() error
}

// redisStore implements a Store backed by Redis; expiry is delegated to key TTLs.
type redisStore struct {
	client      redisClient
	snapshotTTL time.Duration
}

func openRedis(opts Options) (Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.RedisAddr,
		Password: opts.RedisPassword,
		DB:       opts.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &redisStore{client: client, snapshotTTL: opts.SnapshotTTL}, nil
}

func (r *redisStore) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *redisStore) Snapshot(queryID string) (domain.Snapshot, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	raw, err := r.client.Get(ctx, redisKeyPrefix+queryID).Result()
	if errors.Is(err, goredis.Nil) {
		return domain.Snapshot{}, false, nil
	}
	if err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("redis get snapshot %s: %w", queryID, err)
	}

	var snap domain.Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return domain.Snapshot{}, false, fmt.Errorf("decode snapshot %s: %w", queryID, err)
	}
	return snap, true, nil
}

func (r *redisStore) SaveSnapshot(snap domain.Snapshot) error {
	if snap.QueryID == "" {
		return fmt.Errorf("snapshot query id is empty")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.client.Set(ctx, redisKeyPrefix+snap.QueryID, data, r.snapshotTTL).Err(); err != nil {
		return fmt.Errorf("redis set snapshot %s: %w", snap.QueryID, err)
	}
	return nil
}
