package bat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

// RunFunc performs one test run. The scheduler passes the 1-based run number.
type RunFunc func(ctx context.Context, run int) error

// TestScheduler decides when runs happen.
type TestScheduler interface {
	Start(ctx context.Context) error
	Stop() error
	RegisterCallback(RunFunc)
	WaitForShutdown(ctx context.Context) error
	Stopped() bool
}

// DefaultTestScheduler runs once, or once immediately and then every interval.
type DefaultTestScheduler struct {
	interval time.Duration
	runOnce  bool
	logger   log.Logger
	callback RunFunc
	runs     int

	running atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewDefaultTestScheduler creates a new DefaultTestScheduler.
func NewDefaultTestScheduler(interval time.Duration, runOnce bool, logger log.Logger) *DefaultTestScheduler {
	return &DefaultTestScheduler{
		interval: interval,
		runOnce:  runOnce || interval <= 0,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

// RegisterCallback registers the function invoked for every run.
func (s *DefaultTestScheduler) RegisterCallback(callback RunFunc) {
	s.callback = callback
}

func (s *DefaultTestScheduler) next(ctx context.Context) error {
	s.runs++
	return s.callback(ctx, s.runs)
}

// Start performs the first run synchronously and returns its error. In
// continuous mode later runs happen on a background goroutine whose errors
// are logged, not returned.
func (s *DefaultTestScheduler) Start(ctx context.Context) error {
	if s.callback == nil {
		return errors.New("callback must be registered before starting scheduler")
	}

	s.done = make(chan struct{})
	s.running.Store(true)

	if s.runOnce {
		s.logger.Info("Starting scheduler in run-once mode")
		return s.next(ctx)
	}

	s.logger.Info("Starting scheduler in continuous mode", "interval", s.interval)
	if err := s.next(ctx); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if !s.running.Load() {
					s.logger.Debug("Scheduler stopped, exiting periodic runs")
					return
				}
				s.logger.Info("Running periodic tests", "run", s.runs+1)
				if err := s.next(ctx); err != nil {
					s.logger.Error("Error running periodic tests", "error", err)
				}

			case <-s.done:
				s.logger.Debug("Done signal received, stopping periodic runs")
				return

			case <-ctx.Done():
				s.logger.Debug("Context canceled, stopping periodic runs")
				s.running.Store(false)
				return
			}
		}
	}()

	return nil
}

// Stop stops the scheduler. Calling it more than once is harmless.
func (s *DefaultTestScheduler) Stop() error {
	if !s.running.Swap(false) {
		s.logger.Debug("Scheduler already stopped, nothing to do")
		return nil
	}
	close(s.done)
	return nil
}

// Stopped returns true if the scheduler is stopped.
func (s *DefaultTestScheduler) Stopped() bool {
	return !s.running.Load()
}

// WaitForShutdown blocks until the periodic goroutine has exited or ctx is done.
func (s *DefaultTestScheduler) WaitForShutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for scheduler to stop", "error", ctx.Err())
		return ctx.Err()
	}
}
