package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	errMissingTask     = errors.New("schedule: task is required")
	errInvalidInterval = errors.New("schedule: interval must be positive")
	errAlreadyStarted  = errors.New("schedule: group already started")
)

// Task is one periodic unit of work. It must honor ctx for its blocking calls.
type Task func(ctx context.Context)

// Loop runs a Task immediately and then once per interval. Ticks never overlap:
// a tick that overruns the interval delays the next one.
type Loop struct {
	name     string
	interval time.Duration
	task     Task
	logger   *zap.Logger
}

// NewLoop validates and constructs a Loop.
func NewLoop(name string, interval time.Duration, task Task, logger *zap.Logger) (*Loop, error) {
	if task == nil {
		return nil, errMissingTask
	}
	if interval <= 0 {
		return nil, errInvalidInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{name: name, interval: interval, task: task, logger: logger}, nil
}

// Run blocks until ctx is done. An in-flight tick completes before Run returns.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.logger.Info("periodic loop started",
		zap.String("loop", l.name),
		zap.Duration("interval", l.interval))

	l.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("periodic loop stopped", zap.String("loop", l.name))
			return
		case <-ticker.C:
			l.runOnce(ctx)
		}
	}
}

func (l *Loop) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			l.logger.Error("periodic task panicked",
				zap.String("loop", l.name),
				zap.Any("panic", recovered))
		}
	}()
	l.task(ctx)
}

// Group owns a set of loops sharing one cancellation token.
type Group struct {
	mu      sync.Mutex
	loops   []*Loop
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

// NewGroup returns a Group running the given loops.
func NewGroup(loops ...*Loop) *Group {
	return &Group{loops: loops}
}

// Start launches every loop in its own goroutine.
func (g *Group) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.started {
		return errAlreadyStarted
	}
	loopCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.started = true
	for _, loop := range g.loops {
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			loop.Run(loopCtx)
		}()
	}
	return nil
}

// Stop cancels every loop and waits for in-flight ticks to finish.
func (g *Group) Stop() {
	g.mu.Lock()
	cancel := g.cancel
	g.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	g.wg.Wait()
}
