package hub

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/openbracket/tourneysync/internal/domain/collection"
)

// MemoryStore keeps records in process memory. Backs tests and dev runs
// without Postgres.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[collection.Name]map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[collection.Name]map[string]json.RawMessage)}
}

func (s *MemoryStore) List(_ context.Context, c collection.Name) ([]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	table := s.records[c]
	ids := make([]string, 0, len(table))
	for id := range table {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, append(json.RawMessage(nil), table[id]...))
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, c collection.Name, id string) (json.RawMessage, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, ok := s.records[c][id]
	if !ok {
		return nil, false, nil
	}
	return append(json.RawMessage(nil), raw...), true, nil
}

func (s *MemoryStore) Put(_ context.Context, c collection.Name, id string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	table, ok := s.records[c]
	if !ok {
		table = make(map[string]json.RawMessage)
		s.records[c] = table
	}
	table[id] = append(json.RawMessage(nil), payload...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, c collection.Name, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.records[c]
	if _, ok := table[id]; !ok {
		return false, nil
	}
	delete(table, id)
	return true, nil
}
