package replicas

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultProbeTimeout     = 2 * time.Second
	defaultProbeConcurrency = 8
)

var errMissingProber = errors.New("replicas: prober is required")

// Prober checks whether a replica base address is reachable. Any error means down.
type Prober interface {
	Probe(ctx context.Context, baseAddress string) error
}

type HealthMonitorConfig struct {
	Registry     *Registry
	Prober       Prober
	ProbeTimeout time.Duration
	Concurrency  int
	Clock        func() time.Time
	Logger       *zap.Logger
}

// HealthMonitor re-elects the active member of every pair from the latest probe.
// It keeps no state between ticks.
type HealthMonitor struct {
	registry     *Registry
	prober       Prober
	probeTimeout time.Duration
	concurrency  int
	clock        func() time.Time
	logger       *zap.Logger
}

func NewHealthMonitor(cfg HealthMonitorConfig) (*HealthMonitor, error) {
	if cfg.Registry == nil {
		return nil, errMissingRegistry
	}
	if cfg.Prober == nil {
		return nil, errMissingProber
	}
	monitor := &HealthMonitor{
		registry:     cfg.Registry,
		prober:       cfg.Prober,
		probeTimeout: cfg.ProbeTimeout,
		concurrency:  cfg.Concurrency,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
	}
	if monitor.probeTimeout <= 0 {
		monitor.probeTimeout = defaultProbeTimeout
	}
	if monitor.concurrency <= 0 {
		monitor.concurrency = defaultProbeConcurrency
	}
	if monitor.clock == nil {
		monitor.clock = time.Now
	}
	if monitor.logger == nil {
		monitor.logger = zap.NewNop()
	}
	return monitor, nil
}

// Tick probes every pair and persists the elected active addresses. Probe failures
// only mark a member unreachable; store failures abort the tick.
func (m *HealthMonitor) Tick(ctx context.Context) ([]HealthProbeResult, error) {
	pairs, err := m.registry.Pairs(ctx)
	if err != nil {
		m.logger.Error("health tick skipped", zap.Error(err))
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, nil
	}

	primaryUp := make([]bool, len(pairs))
	standbyUp := make([]bool, len(pairs))

	var group errgroup.Group
	group.SetLimit(m.concurrency)
	for index, pair := range pairs {
		group.Go(func() error {
			primaryUp[index] = m.probe(ctx, pair.PairID, pair.PrimaryAddress)
			return nil
		})
		if pair.StandbyAddress == "" {
			continue
		}
		group.Go(func() error {
			standbyUp[index] = m.probe(ctx, pair.PairID, pair.StandbyAddress)
			return nil
		})
	}
	_ = group.Wait()

	checkedAt := m.clock().UTC()
	results := make([]HealthProbeResult, 0, len(pairs))
	for index, pair := range pairs {
		active := electActive(pair, primaryUp[index], standbyUp[index])
		m.logTransition(pair, active)
		results = append(results, HealthProbeResult{
			PairID:           pair.PairID,
			PrimaryReachable: primaryUp[index],
			StandbyReachable: standbyUp[index],
			ActiveAddress:    active,
			CheckedAt:        checkedAt,
		})
	}

	if _, err := m.registry.ApplyProbeResults(ctx, results); err != nil {
		m.logger.Error("health results not persisted", zap.Error(err))
		return results, err
	}
	return results, nil
}

func (m *HealthMonitor) probe(ctx context.Context, pairID, address string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()
	if err := m.prober.Probe(probeCtx, address); err != nil {
		m.logger.Debug("replica unreachable",
			zap.String("pair_id", pairID),
			zap.String("address", address),
			zap.Error(err))
		return false
	}
	return true
}

func (m *HealthMonitor) logTransition(pair ServerPair, active string) {
	if active == pair.ActiveAddress {
		return
	}
	fields := []zap.Field{
		zap.String("pair_id", pair.PairID),
		zap.String("previous", pair.ActiveAddress),
		zap.String("active", active),
	}
	switch active {
	case "":
		m.logger.Error("server pair in outage", fields...)
	case pair.StandbyAddress:
		m.logger.Warn("standby promoted", fields...)
	default:
		m.logger.Info("primary active", fields...)
	}
}
