package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum-optimism/infra/browser-acceptor/browser"
	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

// runAttempt executes one attempt of tc. Errors from the test body never
// escape: they are folded into the outcome and diagnostic of the attempt.
func (r *Runner) runAttempt(ctx context.Context, sup *supervisor, tc types.TestCase, n int) types.Attempt {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("attempt %d", n))
	defer span.End()

	timeout := tc.Timeout
	if timeout <= 0 {
		timeout = r.cfg.AttemptTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := r.invoke(attemptCtx, tc)
	att := types.Attempt{Duration: time.Since(start)}
	att.Outcome, att.Diagnostic = classify(ctx, attemptCtx, err)

	if att.Outcome == types.OutcomeCrash {
		att.BrowserCrashed = true
	} else if !sup.alive(ctx) {
		att.BrowserCrashed = true
		// A pass before the browser died still counts as a pass.
		if att.Outcome != types.OutcomePass && att.Outcome != types.OutcomeSkip {
			att.Outcome = types.OutcomeCrash
			att.Diagnostic = joinDiagnostic(att.Diagnostic, browser.ErrCrashed.Error())
		}
	}
	return att
}

func (r *Runner) invoke(ctx context.Context, tc types.TestCase) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("runtime error: %v", rec)
			r.log.Error("Panic in test", "error", err, "test", tc.Name)
		}
	}()
	if tc.Run == nil {
		return errors.New("test has no body")
	}
	return tc.Run(ctx, r.surface)
}

// classify maps the error of a test body to an outcome. A deadline on the
// attempt context alone is a timeout; cancellation of the run is not.
func classify(runCtx, attemptCtx context.Context, err error) (types.Outcome, string) {
	switch {
	case err == nil:
		return types.OutcomePass, ""
	case errors.Is(err, types.ErrSkip):
		return types.OutcomeSkip, err.Error()
	case errors.Is(err, browser.ErrCrashed):
		return types.OutcomeCrash, err.Error()
	case runCtx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
		return types.OutcomeTimeout, err.Error()
	default:
		return types.OutcomeFail, err.Error()
	}
}

func joinDiagnostic(a, b string) string {
	if a == "" {
		return b
	}
	return a + ": " + b
}
