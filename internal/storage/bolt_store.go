package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/sanity-query/internal/domain"
	bolt "go.etcd.io/bbolt"
)

const snapshotBucket = "snapshots"

// boltRecord is the stored value: the snapshot plus its expiry.
type boltRecord struct {
	Snapshot  domain.Snapshot `json:"snapshot"`
	ExpiresAt int64           `json:"expires_at"`
}

// boltStore implements a Store backed by BoltDB.
type boltStore struct {
	db              *bolt.DB
	cleanupMu       sync.Mutex
	lastCleanup     atomic.Int64
	snapshotTTL     time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string, opts Options) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(snapshotBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	store := &boltStore{
		db:              db,
		snapshotTTL:     opts.SnapshotTTL,
		cleanupInterval: opts.CleanupInterval,
		now:             time.Now,
	}
	store.lastCleanup.Store(store.now().Unix())
	return store, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Snapshot returns the stored snapshot for queryID; expired entries are deleted and reported as missing.
func (b *boltStore) Snapshot(queryID string) (domain.Snapshot, bool, error) {
	if b == nil || b.db == nil {
		return domain.Snapshot{}, false, nil
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return domain.Snapshot{}, false, err
	}

	var (
		snap  domain.Snapshot
		found bool
	)
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(snapshotBucket))
		if bucket == nil {
			return fmt.Errorf("snapshot bucket missing")
		}

		key := []byte(queryID)
		value := bucket.Get(key)
		if value == nil {
			return nil
		}

		rec, ok := decodeRecord(value)
		if !ok || !time.Unix(rec.ExpiresAt, 0).After(now) {
			return bucket.Delete(key)
		}

		snap, found = rec.Snapshot, true
		return nil
	})
	return snap, found, err
}

// SaveSnapshot stores snap under its query id with a fresh expiry.
func (b *boltStore) SaveSnapshot(snap domain.Snapshot) error {
	if b == nil || b.db == nil {
		return nil
	}
	if snap.QueryID == "" {
		return fmt.Errorf("snapshot query id is empty")
	}

	now := b.now()
	if err := b.maybeCleanupExpired(now); err != nil {
		return err
	}

	value, err := json.Marshal(boltRecord{Snapshot: snap, ExpiresAt: now.Add(b.snapshotTTL).Unix()})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(snapshotBucket))
		if bucket == nil {
			return fmt.Errorf("snapshot bucket missing")
		}
		return bucket.Put([]byte(snap.QueryID), value)
	})
}

// maybeCleanupExpired removes expired snapshots on a fixed cadence to avoid unbounded growth.
func (b *boltStore) maybeCleanupExpired(now time.Time) error {
	if b == nil || b.db == nil {
		return nil
	}

	last := time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	b.cleanupMu.Lock()
	defer b.cleanupMu.Unlock()

	last = time.Unix(b.lastCleanup.Load(), 0)
	if now.Sub(last) < b.cleanupInterval {
		return nil
	}

	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(snapshotBucket))
		if bucket == nil {
			return fmt.Errorf("snapshot bucket missing")
		}

		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			rec, ok := decodeRecord(v)
			if !ok || !time.Unix(rec.ExpiresAt, 0).After(now) {
				if err := cursor.Delete(); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err == nil {
		b.lastCleanup.Store(now.Unix())
	}
	return err
}

func decodeRecord(value []byte) (boltRecord, bool) {
	var rec boltRecord
	if err := json.Unmarshal(value, &rec); err != nil {
		return boltRecord{}, false
	}
	if rec.ExpiresAt <= 0 {
		return boltRecord{}, false
	}
	return rec, true
}
