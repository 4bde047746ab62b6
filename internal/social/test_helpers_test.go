package social

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/store"
)

type sequentialIDGenerator struct {
	mu   sync.Mutex
	next int
}

func (g *sequentialIDGenerator) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("id-%d", g.next), nil
}

func mustUsername(t *testing.T, value string) Username {
	t.Helper()
	name, err := NewUsername(value)
	if err != nil {
		t.Fatalf("unexpected username error: %v", err)
	}
	return name
}

func newTestService(t *testing.T, clock func() time.Time) (*Service, *store.MemoryStore) {
	t.Helper()
	memory := store.NewMemoryStore()
	service, err := NewService(ServiceConfig{
		Store:      memory,
		Clock:      clock,
		IDProvider: &sequentialIDGenerator{},
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service, memory
}

func fixedClock(unixMillis int64) func() time.Time {
	return func() time.Time {
		return time.UnixMilli(unixMillis)
	}
}
