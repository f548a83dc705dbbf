package assessment

import (
	"context"
	"sync"
)

// MemoryRepository keeps records in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	records []Record
	byID    map[string]int
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[string]int)}
}

func (r *MemoryRepository) Save(ctx context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.byID[rec.ID]; ok {
		r.records[i] = rec
		return nil
	}
	r.byID[rec.ID] = len(r.records)
	r.records = append(r.records, rec)
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return r.records[i], nil
}

func (r *MemoryRepository) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, min(limit, len(r.records)))
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.records[i])
	}
	return out, nil
}
