package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is a process-local Store used for ephemeral deployments and tests.
type MemoryStore struct {
	mu        sync.RWMutex
	documents map[Collection][]byte
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{documents: make(map[Collection][]byte)}
}

func (m *MemoryStore) Get(ctx context.Context, collection Collection) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !collection.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored, ok := m.documents[collection]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), stored...), nil
}

func (m *MemoryStore) Put(ctx context.Context, collection Collection, document []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !collection.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	m.mu.Lock()
	m.documents[collection] = append([]byte(nil), document...)
	m.mu.Unlock()
	return nil
}
