package replicas

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/store"
	"go.uber.org/zap"
)

var errMissingStore = errors.New("replicas: store is required")

type pairsDocument struct {
	Pairs []ServerPair `json:"pairs"`
}

type assignmentsDocument struct {
	Assignments map[string]string `json:"assignments"`
}

type registryState struct {
	pairs       pairsDocument
	assignments assignmentsDocument
}

func (s *registryState) pairIndex(pairID string) int {
	for index, pair := range s.pairs.Pairs {
		if pair.PairID == pairID {
			return index
		}
	}
	return -1
}

func (s *registryState) pairIDs() []string {
	ids := make([]string, 0, len(s.pairs.Pairs))
	for _, pair := range s.pairs.Pairs {
		ids = append(ids, pair.PairID)
	}
	return ids
}

type RegistryConfig struct {
	Store  store.Store
	Logger *zap.Logger
}

// Registry owns the serverPairs and assignments collections. Every mutation runs a
// full load-modify-persist cycle under one lock, so admin edits, health updates and
// assignments never interleave.
type Registry struct {
	store  store.Store
	logger *zap.Logger
	mu     sync.Mutex
}

func NewRegistry(cfg RegistryConfig) (*Registry, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{store: cfg.Store, logger: logger}, nil
}

// Pairs returns the pairs in registration order.
func (r *Registry) Pairs(ctx context.Context) ([]ServerPair, error) {
	var document pairsDocument
	if err := store.LoadJSON(ctx, r.store, store.CollectionServerPairs, &document); err != nil {
		return nil, err
	}
	return document.Pairs, nil
}

// AddPair registers a pair, replacing any pair with the same id in place.
func (r *Registry) AddPair(ctx context.Context, pair ServerPair) (ServerPair, error) {
	normalized, err := NewServerPair(pair.PairID, pair.PrimaryAddress, pair.StandbyAddress)
	if err != nil {
		return ServerPair{}, err
	}
	err = r.mutate(ctx, func(state *registryState) (bool, bool, error) {
		if index := state.pairIndex(normalized.PairID); index >= 0 {
			state.pairs.Pairs[index] = normalized
		} else {
			state.pairs.Pairs = append(state.pairs.Pairs, normalized)
		}
		return true, false, nil
	})
	if err != nil {
		return ServerPair{}, err
	}
	r.logger.Info("server pair registered",
		zap.String("pair_id", normalized.PairID),
		zap.String("primary", normalized.PrimaryAddress),
		zap.String("standby", normalized.StandbyAddress))
	return normalized, nil
}

// Bootstrap registers pairs only when the registry is still empty.
func (r *Registry) Bootstrap(ctx context.Context, pairs []ServerPair) (int, error) {
	added := 0
	err := r.mutate(ctx, func(state *registryState) (bool, bool, error) {
		if len(state.pairs.Pairs) > 0 {
			return false, false, nil
		}
		for _, pair := range pairs {
			normalized, err := NewServerPair(pair.PairID, pair.PrimaryAddress, pair.StandbyAddress)
			if err != nil {
				return false, false, err
			}
			if state.pairIndex(normalized.PairID) >= 0 {
				return false, false, fmt.Errorf("%w: duplicate pair id %s", ErrInvalidPair, normalized.PairID)
			}
			state.pairs.Pairs = append(state.pairs.Pairs, normalized)
			added++
		}
		return added > 0, false, nil
	})
	return added, err
}

// ApplyProbeResults writes the elected active addresses and persists the registry
// even when nothing changed.
func (r *Registry) ApplyProbeResults(ctx context.Context, results []HealthProbeResult) ([]ServerPair, error) {
	var snapshot []ServerPair
	err := r.mutate(ctx, func(state *registryState) (bool, bool, error) {
		for _, result := range results {
			if index := state.pairIndex(result.PairID); index >= 0 {
				state.pairs.Pairs[index].ActiveAddress = result.ActiveAddress
			}
		}
		snapshot = append([]ServerPair(nil), state.pairs.Pairs...)
		return true, false, nil
	})
	return snapshot, err
}

// Assignment returns the pair assigned to user, if any.
func (r *Registry) Assignment(ctx context.Context, user string) (string, bool, error) {
	var document assignmentsDocument
	if err := store.LoadJSON(ctx, r.store, store.CollectionAssignments, &document); err != nil {
		return "", false, err
	}
	pairID, ok := document.Assignments[user]
	return pairID, ok, nil
}

// Reassign points user at pairID. It is the operator override; nothing calls it automatically.
func (r *Registry) Reassign(ctx context.Context, user, pairID string) error {
	return r.mutate(ctx, func(state *registryState) (bool, bool, error) {
		if state.pairIndex(pairID) < 0 {
			return false, false, fmt.Errorf("%w: %s", ErrInvalidAssignment, pairID)
		}
		state.assignments.Assignments[user] = pairID
		return false, true, nil
	})
}

// assignIfAbsent keeps an existing assignment, otherwise stores the pair chosen
// from the ordered pair ids. choose runs under the registry lock.
func (r *Registry) assignIfAbsent(ctx context.Context, user string, choose func(pairIDs []string) (string, error)) (string, bool, error) {
	var assigned string
	created := false
	err := r.mutate(ctx, func(state *registryState) (bool, bool, error) {
		if existing, ok := state.assignments.Assignments[user]; ok {
			assigned = existing
			return false, false, nil
		}
		pairID, err := choose(state.pairIDs())
		if err != nil {
			return false, false, err
		}
		state.assignments.Assignments[user] = pairID
		assigned = pairID
		created = true
		return false, true, nil
	})
	return assigned, created, err
}

// lookup resolves user to its assigned pair without assigning.
func (r *Registry) lookup(ctx context.Context, user string) (ServerPair, error) {
	pairID, ok, err := r.Assignment(ctx, user)
	if err != nil {
		return ServerPair{}, err
	}
	if !ok {
		return ServerPair{}, fmt.Errorf("%w: %s", ErrUnknownUser, user)
	}
	pairs, err := r.Pairs(ctx)
	if err != nil {
		return ServerPair{}, err
	}
	for _, pair := range pairs {
		if pair.PairID == pairID {
			return pair, nil
		}
	}
	return ServerPair{}, fmt.Errorf("%w: %s", ErrInvalidAssignment, pairID)
}

func (r *Registry) mutate(ctx context.Context, fn func(state *registryState) (pairsDirty, assignmentsDirty bool, err error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	state := &registryState{}
	if err := store.LoadJSON(ctx, r.store, store.CollectionServerPairs, &state.pairs); err != nil {
		return err
	}
	if err := store.LoadJSON(ctx, r.store, store.CollectionAssignments, &state.assignments); err != nil {
		return err
	}
	if state.assignments.Assignments == nil {
		state.assignments.Assignments = make(map[string]string)
	}

	pairsDirty, assignmentsDirty, err := fn(state)
	if err != nil {
		return err
	}
	if pairsDirty {
		if err := store.SaveJSON(ctx, r.store, store.CollectionServerPairs, state.pairs); err != nil {
			return err
		}
	}
	if assignmentsDirty {
		if err := store.SaveJSON(ctx, r.store, store.CollectionAssignments, state.assignments); err != nil {
			return err
		}
	}
	return nil
}
