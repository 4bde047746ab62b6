package replicas

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) (*Registry, *store.MemoryStore) {
	t.Helper()
	backing := store.NewMemoryStore()
	registry, err := NewRegistry(RegistryConfig{Store: backing})
	require.NoError(t, err)
	return registry, backing
}

func mustAddPair(t *testing.T, registry *Registry, id, primary, standby string) ServerPair {
	t.Helper()
	pair, err := registry.AddPair(context.Background(), ServerPair{PairID: id, PrimaryAddress: primary, StandbyAddress: standby})
	require.NoError(t, err)
	return pair
}

func TestNewServerPairValidation(t *testing.T) {
	testCases := []struct {
		name    string
		id      string
		primary string
		standby string
		wantErr bool
	}{
		{name: "full pair", id: "p1", primary: "http://localhost:9090", standby: "http://localhost:9091"},
		{name: "primary only", id: "p1", primary: "http://localhost:9090"},
		{name: "missing id", id: " ", primary: "http://localhost:9090", wantErr: true},
		{name: "missing primary", id: "p1", primary: "", wantErr: true},
		{name: "bad scheme", id: "p1", primary: "ftp://localhost:9090", wantErr: true},
		{name: "same members", id: "p1", primary: "http://a:1", standby: "http://a:1/", wantErr: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			pair, err := NewServerPair(testCase.id, testCase.primary, testCase.standby)
			if testCase.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPair)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, pair.PrimaryAddress, pair.ActiveAddress)
		})
	}
}

func TestRegistryAddPairKeepsOrderAndReplacesInPlace(t *testing.T) {
	registry, _ := newTestRegistry(t)
	mustAddPair(t, registry, "p1", "http://a:1", "http://a:2")
	mustAddPair(t, registry, "p2", "http://b:1", "")
	mustAddPair(t, registry, "p1", "http://c:1/", "")

	pairs, err := registry.Pairs(context.Background())
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "p1", pairs[0].PairID)
	assert.Equal(t, "http://c:1", pairs[0].PrimaryAddress)
	assert.Equal(t, "p2", pairs[1].PairID)
}

func TestRegistryBootstrapOnlyWhenEmpty(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()

	added, err := registry.Bootstrap(ctx, []ServerPair{{PairID: "seed", PrimaryAddress: "http://localhost:9090", StandbyAddress: "http://localhost:9091"}})
	require.NoError(t, err)
	assert.Equal(t, 1, added)

	added, err = registry.Bootstrap(ctx, []ServerPair{{PairID: "other", PrimaryAddress: "http://x:1"}})
	require.NoError(t, err)
	assert.Zero(t, added)

	pairs, err := registry.Pairs(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, "seed", pairs[0].PairID)
}

func TestRegistryReassignRequiresKnownPair(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()
	mustAddPair(t, registry, "p1", "http://a:1", "")

	assert.ErrorIs(t, registry.Reassign(ctx, "alice", "missing"), ErrInvalidAssignment)
	require.NoError(t, registry.Reassign(ctx, "alice", "p1"))

	pairID, ok, err := registry.Assignment(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "p1", pairID)
}

func TestRegistrySurfacesStoreOutage(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := registry.Pairs(ctx)
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
	_, err = registry.AddPair(ctx, ServerPair{PairID: "p1", PrimaryAddress: "http://a:1"})
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
}

func TestAllocatorRoundRobin(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()
	mustAddPair(t, registry, "p0", "http://a:1", "")
	mustAddPair(t, registry, "p1", "http://b:1", "")
	mustAddPair(t, registry, "p2", "http://c:1", "")

	allocator, err := NewAllocator(registry, nil)
	require.NoError(t, err)

	for index := 0; index < 7; index++ {
		pairID, err := allocator.Assign(ctx, fmt.Sprintf("user-%d", index))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("p%d", index%3), pairID)
	}

	again, err := allocator.Assign(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "p1", again)

	next, err := allocator.Assign(ctx, "user-7")
	require.NoError(t, err)
	assert.Equal(t, "p1", next, "an existing assignment must not consume a slot")
}

func TestAllocatorWithoutPairs(t *testing.T) {
	registry, _ := newTestRegistry(t)
	allocator, err := NewAllocator(registry, nil)
	require.NoError(t, err)

	_, err = allocator.Assign(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrNoReplicasAvailable)

	_, ok, err := registry.Assignment(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAllocatorConcurrentRegistrationsSpreadEvenly(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()
	mustAddPair(t, registry, "p0", "http://a:1", "")
	mustAddPair(t, registry, "p1", "http://b:1", "")

	allocator, err := NewAllocator(registry, nil)
	require.NoError(t, err)

	const users = 40
	var wg sync.WaitGroup
	for index := 0; index < users; index++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			_, assignErr := allocator.Assign(ctx, fmt.Sprintf("user-%d", index))
			assert.NoError(t, assignErr)
		}(index)
	}
	wg.Wait()

	counts := map[string]int{}
	for index := 0; index < users; index++ {
		pairID, ok, err := registry.Assignment(ctx, fmt.Sprintf("user-%d", index))
		require.NoError(t, err)
		require.True(t, ok)
		counts[pairID]++
	}
	assert.Equal(t, users/2, counts["p0"])
	assert.Equal(t, users/2, counts["p1"])
}

func TestAllocatorLookupErrors(t *testing.T) {
	registry, backing := newTestRegistry(t)
	ctx := context.Background()
	mustAddPair(t, registry, "p1", "http://a:1", "http://a:2")
	allocator, err := NewAllocator(registry, nil)
	require.NoError(t, err)

	_, err = allocator.Lookup(ctx, "ghost")
	assert.ErrorIs(t, err, ErrUnknownUser)

	require.NoError(t, store.SaveJSON(ctx, backing, store.CollectionAssignments, assignmentsDocument{
		Assignments: map[string]string{"orphan": "gone"},
	}))
	_, err = allocator.Lookup(ctx, "orphan")
	assert.ErrorIs(t, err, ErrInvalidAssignment)

	resolution, err := allocator.Resolve(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "p1", resolution.PairID)
	assert.Equal(t, "http://a:1", resolution.ActiveAddress)
}

func TestAllocatorResolveDuringOutage(t *testing.T) {
	registry, _ := newTestRegistry(t)
	ctx := context.Background()
	mustAddPair(t, registry, "p1", "http://a:1", "http://a:2")
	_, err := registry.ApplyProbeResults(ctx, []HealthProbeResult{{PairID: "p1"}})
	require.NoError(t, err)

	allocator, err := NewAllocator(registry, nil)
	require.NoError(t, err)

	resolution, err := allocator.Resolve(ctx, "alice")
	assert.ErrorIs(t, err, ErrPairUnavailable)
	assert.Equal(t, "p1", resolution.PairID)
	assert.Equal(t, "http://a:1", resolution.PrimaryAddress)
	assert.Empty(t, resolution.ActiveAddress)
}
