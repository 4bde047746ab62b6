package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Collection names a logical document held by the Store.
type Collection string

const (
	CollectionUsers       Collection = "users"
	CollectionFollows     Collection = "follows"
	CollectionChats       Collection = "chats"
	CollectionPosts       Collection = "posts"
	CollectionServerPairs Collection = "serverPairs"
	CollectionAssignments Collection = "assignments"
)

var (
	// ErrStoreUnavailable marks transient I/O failures; callers retry on the next cycle.
	ErrStoreUnavailable = errors.New("store: unavailable")
	// ErrUnknownCollection indicates a collection name outside the supported set.
	ErrUnknownCollection = errors.New("store: unknown collection")
)

// Collections lists every supported collection in a stable order.
func Collections() []Collection {
	return []Collection{
		CollectionUsers,
		CollectionFollows,
		CollectionChats,
		CollectionPosts,
		CollectionServerPairs,
		CollectionAssignments,
	}
}

// Valid reports whether the collection is supported.
func (c Collection) Valid() bool {
	for _, known := range Collections() {
		if c == known {
			return true
		}
	}
	return false
}

// Store is a keyed JSON document store with whole-document semantics.
// Get returns nil bytes when the collection has never been written.
// Implementations do not serialize read-modify-write cycles; callers do.
type Store interface {
	Get(ctx context.Context, collection Collection) ([]byte, error)
	Put(ctx context.Context, collection Collection, document []byte) error
}

// LoadJSON reads a collection and decodes it into out. A missing document leaves out untouched.
func LoadJSON(ctx context.Context, s Store, collection Collection, out any) error {
	raw, err := s.Get(ctx, collection)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("store: decode %s: %w", collection, err)
	}
	return nil
}

// SaveJSON encodes value and replaces the collection document.
func SaveJSON(ctx context.Context, s Store, collection Collection, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", collection, err)
	}
	return s.Put(ctx, collection, raw)
}
