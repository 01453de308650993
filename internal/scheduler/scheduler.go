package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hazz-dev/netpulse/internal/checker"
	"github.com/hazz-dev/netpulse/internal/config"
	"github.com/hazz-dev/netpulse/internal/storage"
)

// Store defines the storage operations required by the scheduler.
type Store interface {
	InsertResult(ctx context.Context, runID, probe string, r checker.Result) error
	LatestResult(ctx context.Context, probe string) (*storage.Record, error)
}

// CheckerFactory creates a Checker for a given probe config.
type CheckerFactory func(config.Probe) (checker.Checker, error)

// ResultFunc is invoked after each stored result. prev is the previous
// outcome of the probe, nil when there is none.
type ResultFunc func(p config.Probe, r checker.Result, prev *bool)

// Scheduler runs each probe in its own goroutine.
type Scheduler struct {
	probes   []config.Probe
	store    Store
	factory  CheckerFactory
	runID    string
	onResult ResultFunc
	logger   *slog.Logger
	wg       sync.WaitGroup
}

// New creates a new Scheduler. runID tags every stored result. Pass nil
// logger to use the default logger.
func New(probes []config.Probe, store Store, factory CheckerFactory, runID string, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		probes:  probes,
		store:   store,
		factory: factory,
		runID:   runID,
		logger:  logger,
	}
}

// SetOnResult sets the callback invoked after each check.
func (s *Scheduler) SetOnResult(fn ResultFunc) {
	s.onResult = fn
}

// Start spawns one goroutine per probe. It is non-blocking.
func (s *Scheduler) Start(ctx context.Context) {
	for _, p := range s.probes {
		c, err := s.factory(p)
		if err != nil {
			s.logger.Error("creating checker", "probe", p.Name, "error", err)
			continue
		}
		s.wg.Add(1)
		go s.runProbe(ctx, p, c)
	}
}

// Wait blocks until all probe goroutines have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runProbe(ctx context.Context, p config.Probe, c checker.Checker) {
	defer s.wg.Done()

	// Run immediately.
	s.runCheck(ctx, p, c)

	ticker := time.NewTicker(p.Interval.Duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCheck(ctx, p, c)
		}
	}
}

func (s *Scheduler) runCheck(ctx context.Context, p config.Probe, c checker.Checker) {
	// Fetch previous outcome before running the check.
	prev, err := s.store.LatestResult(ctx, p.Name)
	if err != nil {
		s.logger.Warn("fetching previous result", "probe", p.Name, "error", err)
	}

	result := c.Check(ctx)
	if ctx.Err() != nil {
		// Shutting down; the result reflects the cancellation, not the target.
		return
	}
	base := result.Base()

	s.logger.Info("check result",
		"probe", p.Name,
		"kind", result.Kind(),
		"target", base.Target,
		"successful", base.Successful,
		"latency", base.Latency,
		"error", base.Error,
	)

	if err := s.store.InsertResult(ctx, s.runID, p.Name, result); err != nil {
		s.logger.Error("storing check result", "probe", p.Name, "error", err)
	}

	if s.onResult != nil {
		var prevOK *bool
		if prev != nil {
			ok := prev.Successful
			prevOK = &ok
		}
		s.onResult(p, result, prevOK)
	}
}
