// Package storage keeps a revisioned history of scan runs in bbolt with an
// in-memory btree index keyed by folder path. Every completed scan appends
// at a new revision; nothing is updated in place.
package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/btree"
	"go.etcd.io/bbolt"

	"github.com/karhu-io/aclscan/telemetry"
	"github.com/karhu-io/aclscan/types"
)

// Bucket names in bbolt
var (
	bucketRuns = []byte("runs")
	bucketMeta = []byte("meta")
)

var keyCurrentRevision = []byte("current_revision")

// Store is the scan-history store.
type Store struct {
	mu sync.RWMutex

	// In-memory index for fast per-folder lookups
	index *btree.BTreeG[*FolderState]

	// On-disk storage
	db *bbolt.DB

	// Current revision number
	currentRev int64
}

// FolderState tracks what we know about one scanned folder.
type FolderState struct {
	FolderPath      string
	FirstScanRev    int64
	LastScanRev     int64
	LastRecordCount int
	LastReport      string
}

// Open creates or opens the store under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	dbPath := filepath.Join(dir, "aclscan.db")

	db, err := bbolt.Open(dbPath, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketRuns, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	store := &Store{
		index: btree.NewG[*FolderState](32, func(a, b *FolderState) bool {
			return a.FolderPath < b.FolderPath
		}),
		db: db,
	}

	if err := store.loadRevision(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := store.rebuildIndex(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun appends a scan run at a new revision and updates the index.
func (s *Store) RecordRun(run types.ScanRun) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentRev++
	rev := s.currentRev

	err := s.db.Update(func(tx *bbolt.Tx) error {
		value, err := json.Marshal(run)
		if err != nil {
			return err
		}
		if err := tx.Bucket(bucketRuns).Put(int64ToBytes(rev), value); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyCurrentRevision, int64ToBytes(rev))
	})
	if err != nil {
		s.currentRev--
		return 0, err
	}

	s.updateIndex(run, rev)
	if telemetry.StorageRevision != nil {
		telemetry.StorageRevision.Record(context.Background(), rev)
	}
	return rev, nil
}

// GetFolderState returns the indexed state for one folder path.
func (s *Store) GetFolderState(path string) (*FolderState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	existing, found := s.index.Get(&FolderState{FolderPath: path})
	if !found {
		return nil, fmt.Errorf("folder %s not found", path)
	}
	return existing, nil
}

// RecentRuns returns runs matching the filter, newest first. A zero limit
// means no limit.
func (s *Store) RecentRuns(filter types.RunFilter) ([]types.ScanRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []types.ScanRun
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var run types.ScanRun
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("corrupt run at revision %d: %w", bytesToInt64(k), err)
			}
			if !filter.Matches(run) {
				continue
			}
			runs = append(runs, run)
			if filter.Limit > 0 && len(runs) >= filter.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// CurrentRevision returns the current revision number.
func (s *Store) CurrentRevision() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentRev
}

// Stats returns operational counters for logs and metrics.
func (s *Store) Stats() (folders int, currentRev int64, dbSizeBytes int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_ = s.db.View(func(tx *bbolt.Tx) error {
		dbSizeBytes = tx.Size()
		return nil
	})
	return s.index.Len(), s.currentRev, dbSizeBytes
}

func (s *Store) updateIndex(run types.ScanRun, rev int64) {
	state := &FolderState{FolderPath: run.FolderPath}
	if existing, found := s.index.Get(state); found {
		state = existing
	} else {
		state.FirstScanRev = rev
	}
	state.LastScanRev = rev
	state.LastRecordCount = run.RecordCount
	state.LastReport = run.Report
	s.index.ReplaceOrInsert(state)
}

func (s *Store) loadRevision() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get(keyCurrentRevision); v != nil {
			s.currentRev = bytesToInt64(v)
		}
		return nil
	})
}

func (s *Store) rebuildIndex() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRuns).ForEach(func(k, v []byte) error {
			var run types.ScanRun
			if err := json.Unmarshal(v, &run); err != nil {
				return fmt.Errorf("corrupt run at revision %d: %w", bytesToInt64(k), err)
			}
			s.updateIndex(run, bytesToInt64(k))
			return nil
		})
	})
}

func int64ToBytes(n int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(n))
	return b
}

func bytesToInt64(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b))
}
