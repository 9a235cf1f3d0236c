package submissions

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Store persists submission snapshots keyed by id.
type Store interface {
	// Get returns the snapshot for id. A missing or malformed record fails with ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Submission, error)
	// Put overwrites the snapshot for s.ID.
	Put(ctx context.Context, s *Submission) error
	// Delete removes the snapshot for id. Deleting a missing record is not an error.
	Delete(ctx context.Context, id uuid.UUID) error
}

type memoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID][]byte
}

// NewMemoryStore returns a process-local Store. Snapshots are kept in their
// serialized form so callers never share state with the store.
func NewMemoryStore() Store {
	return &memoryStore{records: make(map[uuid.UUID][]byte)}
}

func (m *memoryStore) Get(_ context.Context, id uuid.UUID) (*Submission, error) {
	m.mu.RLock()
	data, ok := m.records[id]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	var s Submission
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return &s, nil
}

func (m *memoryStore) Put(_ context.Context, s *Submission) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode submission %s: %w", s.ID, err)
	}

	m.mu.Lock()
	m.records[s.ID] = data
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	delete(m.records, id)
	m.mu.Unlock()
	return nil
}
