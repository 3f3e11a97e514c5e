package chainstamp

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryStampStore is the default in-process StampStore. Records live for
// the session only; use the redis-backed store for durability across runs.
type MemoryStampStore struct {
	mu      sync.RWMutex
	records []StampRecord
}

// NewMemoryStampStore creates an empty in-memory stamp store.
func NewMemoryStampStore() *MemoryStampStore {
	return &MemoryStampStore{}
}

// RecordStamp appends a stamp record. The newest record defines LastDigest.
func (s *MemoryStampStore) RecordStamp(_ context.Context, rec StampRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

// LastDigest returns the digest of the most recently recorded stamp.
func (s *MemoryStampStore) LastDigest(_ context.Context) (common.Hash, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return common.Hash{}, false, nil
	}
	return s.records[len(s.records)-1].Digest, true, nil
}

// History returns up to limit most recent records, newest first.
func (s *MemoryStampStore) History(_ context.Context, limit int) ([]StampRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]StampRecord, 0, n)
	for i := len(s.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

var _ StampStore = (*MemoryStampStore)(nil)
