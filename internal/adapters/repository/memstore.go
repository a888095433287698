package repository

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/okian/gradecast/internal/domain/model"
	"github.com/okian/gradecast/pkg/metrics"
)

// MemoryStore keeps batches in process memory. A batch is validated in full
// before any of it becomes visible.
type MemoryStore struct {
	mu      sync.RWMutex
	batches map[string][]model.PredictionRecord
	total   int
	closed  bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore(_ ...Option) *MemoryStore {
	return &MemoryStore{batches: make(map[string][]model.PredictionRecord)}
}

// SaveBatch stores records or nothing.
func (m *MemoryStore) SaveBatch(ctx context.Context, records []model.PredictionRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	if err := checkBatch(records); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("%w: %w", ErrWriteFailed, ErrClosed)
	}

	type key struct {
		batch string
		seq   int
	}
	seen := make(map[key]struct{}, len(records))
	for _, b := range records {
		if _, ok := seen[key{b.BatchID, b.Seq}]; ok {
			return fmt.Errorf("%w: duplicate record %s/%d", ErrWriteFailed, b.BatchID, b.Seq)
		}
		for _, r := range m.batches[b.BatchID] {
			if r.Seq == b.Seq {
				return fmt.Errorf("%w: duplicate record %s/%d", ErrWriteFailed, b.BatchID, b.Seq)
			}
		}
		seen[key{b.BatchID, b.Seq}] = struct{}{}
	}

	next := make(map[string][]model.PredictionRecord)
	for _, r := range records {
		if _, ok := next[r.BatchID]; !ok {
			next[r.BatchID] = slices.Clone(m.batches[r.BatchID])
		}
		next[r.BatchID] = append(next[r.BatchID], r)
	}
	for id, rs := range next {
		slices.SortStableFunc(rs, func(a, b model.PredictionRecord) int { return a.Seq - b.Seq })
		m.batches[id] = rs
	}
	m.total += len(records)
	metrics.RecordRecordsSaved(len(records))
	return nil
}

// Batch returns a copy of the stored batch.
func (m *MemoryStore) Batch(_ context.Context, batchID string) ([]model.PredictionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rs, ok := m.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, batchID)
	}
	return slices.Clone(rs), nil
}

// Count returns the number of stored records.
func (m *MemoryStore) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.total, nil
}

// Close marks the store closed. Later writes fail.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
