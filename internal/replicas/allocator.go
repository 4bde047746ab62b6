package replicas

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
)

var errMissingRegistry = errors.New("replicas: registry is required")

// Allocator assigns users to pairs round robin over the ordered pair list.
type Allocator struct {
	registry *Registry
	counter  atomic.Uint64
	logger   *zap.Logger
}

func NewAllocator(registry *Registry, logger *zap.Logger) (*Allocator, error) {
	if registry == nil {
		return nil, errMissingRegistry
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{registry: registry, logger: logger}, nil
}

// Assign returns the pair of user, allocating the next round-robin slot when the
// user has none. An existing assignment is never changed and consumes no slot.
func (a *Allocator) Assign(ctx context.Context, user string) (string, error) {
	pairID, created, err := a.registry.assignIfAbsent(ctx, user, func(pairIDs []string) (string, error) {
		if len(pairIDs) == 0 {
			return "", ErrNoReplicasAvailable
		}
		slot := a.counter.Add(1) - 1
		return pairIDs[slot%uint64(len(pairIDs))], nil
	})
	if err != nil {
		return "", err
	}
	if created {
		a.logger.Info("user assigned to server pair",
			zap.String("user", user),
			zap.String("pair_id", pairID))
	}
	return pairID, nil
}

// Resolve returns the serving replica of user, assigning lazily when needed. When
// the pair is in outage the resolution is returned together with ErrPairUnavailable.
func (a *Allocator) Resolve(ctx context.Context, user string) (Resolution, error) {
	if _, err := a.Assign(ctx, user); err != nil {
		return Resolution{}, err
	}
	return a.Lookup(ctx, user)
}

// Lookup resolves user without assigning.
func (a *Allocator) Lookup(ctx context.Context, user string) (Resolution, error) {
	pair, err := a.registry.lookup(ctx, user)
	if err != nil {
		return Resolution{}, err
	}
	resolution := Resolution{
		Username:       user,
		PairID:         pair.PairID,
		ActiveAddress:  pair.ActiveAddress,
		PrimaryAddress: pair.PrimaryAddress,
	}
	if _, ok := pair.Active(); !ok {
		return resolution, fmt.Errorf("%w: %s", ErrPairUnavailable, pair.PairID)
	}
	return resolution, nil
}
