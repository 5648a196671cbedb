package persistence

import (
	"context"
	"sync"

	"github.com/dukerupert/pointkeeper/internal/model"
)

// MemoryStore keeps the dataset in process. Data does not survive a restart.
type MemoryStore struct {
	mu   sync.Mutex
	data model.StoreData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: model.DefaultStoreData()}
}

func (s *MemoryStore) Load(ctx context.Context) (model.StoreData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data, nil
}

func (s *MemoryStore) Save(ctx context.Context, data model.StoreData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = s.data.Merge(data)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
