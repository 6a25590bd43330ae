package runner

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/browser-acceptor/browser"
	"github.com/ethereum-optimism/infra/browser-acceptor/metrics"
	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

// supervisor owns the browser for one run and is the only writer of the
// browser counters in RunState. The browser is started lazily: a crash or
// failure only marks it down, and the next attempt restarts it.
type supervisor struct {
	browser browser.Controller
	state   *types.RunState
	log     log.Logger
	up      bool
}

func newSupervisor(b browser.Controller, state *types.RunState, logger log.Logger) *supervisor {
	return &supervisor{browser: b, state: state, log: logger}
}

// ensureUp starts the browser if it is down. Every start attempt is counted.
// A start that fails, or leaves a browser that is already dead, is stopped
// and counted as a crash when another start follows.
func (s *supervisor) ensureUp(ctx context.Context) error {
	if s.up {
		return nil
	}
	var lastErr error
	attempts := 0
	for attempts < StartBrowserRetries {
		if attempts > 0 {
			s.state.NumBrowserCrashes++
			metrics.RecordBrowserCrash()
		}
		attempts++
		s.state.NumBrowserStarts++
		metrics.RecordBrowserStart()

		err := s.browser.Start(ctx)
		if err == nil && !s.browser.Alive(ctx) {
			err = fmt.Errorf("%w right after start", browser.ErrCrashed)
		}
		if err == nil {
			s.up = true
			return nil
		}
		lastErr = err
		s.log.Warn("Browser failed to start", "attempt", attempts, "max", StartBrowserRetries, "err", err)
		metrics.RecordErrorDetails("browser_start", err)
		s.stop(ctx)

		if ctx.Err() != nil {
			break
		}
	}
	return &BrowserStartError{Attempts: attempts, Err: lastErr}
}

// alive reports whether the browser survived the last attempt.
func (s *supervisor) alive(ctx context.Context) bool {
	return s.up && s.browser.Alive(ctx)
}

// crashed records a crash and takes the browser down.
func (s *supervisor) crashed(ctx context.Context) {
	s.state.NumBrowserCrashes++
	metrics.RecordBrowserCrash()
	s.log.Warn("Browser crashed, restarting before the next attempt")
	s.markDown(ctx)
}

// markDown stops the browser so the next attempt gets a fresh one.
func (s *supervisor) markDown(ctx context.Context) {
	s.stop(ctx)
	s.up = false
}

// shutdown stops the browser at the end of a run.
func (s *supervisor) shutdown(ctx context.Context) {
	if s.up {
		s.markDown(ctx)
	}
}

func (s *supervisor) stop(ctx context.Context) {
	if err := s.browser.Stop(ctx); err != nil {
		s.log.Debug("Error stopping browser", "err", err)
	}
}
