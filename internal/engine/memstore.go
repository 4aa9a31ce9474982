package engine

import (
	"sync"

	"github.com/raj2399/Task-Evallo/pkg/schema"
)

// MemStore is a thread-safe in-memory collection. It is not durable and is used
// by tests and the "memory" backend.
type MemStore struct {
	mu   sync.RWMutex
	recs []schema.LogRecord
}

// NewMemStore initializes a store seeded with existing records (e.g. from ReadSnapshot).
func NewMemStore(initial []schema.LogRecord) *MemStore {
	recs := make([]schema.LogRecord, len(initial))
	copy(recs, initial)
	return &MemStore{recs: recs}
}

// --- Interface Implementation ---

func (m *MemStore) Append(rec schema.LogRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.recs = append(m.recs, rec)
	return nil
}

// ReadAll returns a copy so callers can sort and slice freely.
func (m *MemStore) ReadAll() ([]schema.LogRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]schema.LogRecord, len(m.recs))
	copy(out, m.recs)
	return out, nil
}

// Len returns the number of stored records.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.recs)
}

func (m *MemStore) Close() error { return nil }
