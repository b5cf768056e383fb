package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"modex-hq/aegis/pkg/audit"
)

// MemoryStorage implements audit.Storage in memory. Used in tests and for
// deployments that want auditing semantics without persistence.
type MemoryStorage struct {
	mu      sync.RWMutex
	records []*audit.DecisionRecord
	nextID  int64
}

// NewMemoryStorage creates an empty in-memory store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{nextID: 1}
}

// Store persists one record.
func (s *MemoryStorage) Store(ctx context.Context, record *audit.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *record
	clone.ID = s.nextID
	s.nextID++
	s.records = append(s.records, &clone)
	record.ID = clone.ID
	return nil
}

// GetByRequestID retrieves the most recent record for a request ID.
func (s *MemoryStorage) GetByRequestID(ctx context.Context, requestID string) (*audit.DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.records) - 1; i >= 0; i-- {
		if s.records[i].RequestID == requestID {
			clone := *s.records[i]
			return &clone, nil
		}
	}
	return nil, audit.ErrRecordNotFound
}

// Count returns the number of stored records.
func (s *MemoryStorage) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// DeleteOlderThan removes records created before cutoff.
func (s *MemoryStorage) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	var deleted int64
	for _, r := range s.records {
		if r.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return deleted, nil
}

// DeleteOldest removes the n oldest records.
func (s *MemoryStorage) DeleteOldest(ctx context.Context, n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sort.SliceStable(s.records, func(i, j int) bool {
		return s.records[i].ID < s.records[j].ID
	})
	if n > int64(len(s.records)) {
		n = int64(len(s.records))
	}
	s.records = append([]*audit.DecisionRecord(nil), s.records[n:]...)
	return n, nil
}

// Close is a no-op.
func (s *MemoryStorage) Close() error {
	return nil
}
