package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ethereum-optimism/infra/browser-acceptor/browser"
	"github.com/ethereum-optimism/infra/browser-acceptor/expectations"
	"github.com/ethereum-optimism/infra/browser-acceptor/metrics"
	"github.com/ethereum-optimism/infra/browser-acceptor/results"
	"github.com/ethereum-optimism/infra/browser-acceptor/tags"
	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

// ExpectationResolver selects the declared expectation of a test for a tag set.
type ExpectationResolver interface {
	Lookup(name string, tags mapset.Set[string]) (expectations.Expectation, bool)
}

// Config holds configuration for creating a new runner
type Config struct {
	Browser      browser.Controller
	SystemInfo   browser.SystemInfoProvider // Optional, tags degrade to platform and config only
	Expectations ExpectationResolver        // Optional, tests keep their declared expectations
	Tags         tags.Config
	Log          log.Logger

	RetryLimit                   int  // Additional attempts allowed after the first
	RetryOnlyOnFailure           bool // Retry only FAIL and CRASH outcomes
	RetryOnlyRetryOnFailureTests bool // Retry only tests marked RetryOnFailure
	Repeat                       int  // Run every test exactly this many times
	All                          bool // Run tests expected to be skipped
	RestartOnFailure             bool // Restart the browser after an unexpected outcome
	AttemptTimeout               time.Duration
	PathDelimiter                string
}

// Validate checks the retry configuration for conflicting modes.
func (c Config) Validate() error {
	if c.Browser == nil {
		return errors.New("browser controller is required")
	}
	if c.RetryLimit < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRetryLimit, c.RetryLimit)
	}
	if c.Repeat < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRepeat, c.Repeat)
	}
	if c.Repeat > 0 && c.RetryLimit > 0 {
		return fmt.Errorf("%w: repeat=%d retry-limit=%d", ErrConflictingRetryModes, c.Repeat, c.RetryLimit)
	}
	return nil
}

// Runner resolves test cases against a supervised browser.
type Runner struct {
	cfg     Config
	log     log.Logger
	surface types.Surface
	tracer  trace.Tracer
}

// New creates a new runner instance
func New(cfg Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	if cfg.PathDelimiter == "" {
		cfg.PathDelimiter = results.DefaultPathDelimiter
	}

	cfg.Log.Debug("runner.New()", "retryLimit", cfg.RetryLimit, "repeat", cfg.Repeat,
		"retryOnlyOnFailure", cfg.RetryOnlyOnFailure, "all", cfg.All,
		"restartOnFailure", cfg.RestartOnFailure, "attemptTimeout", cfg.AttemptTimeout)

	return &Runner{
		cfg:     cfg,
		log:     cfg.Log,
		surface: cfg.Browser.Surface(),
		tracer:  otel.Tracer("test runner"),
	}, nil
}

// Run resolves every test case serially and returns the run result. Every
// call gets fresh counters and a fresh result tree. A browser that cannot be
// started aborts the run with a BrowserStartError. Cancelling ctx stops the
// run and returns the tests resolved so far, marked as interrupted, together
// with the context error. An attempt that fails because of the cancellation
// is dropped.
func (r *Runner) Run(ctx context.Context, cases []types.TestCase) (*Result, error) {
	result := &Result{
		RunID:     uuid.New().String(),
		Tree:      results.NewTree(r.cfg.PathDelimiter),
		StartTime: time.Now(),
	}
	if err := checkNames(cases, r.cfg.PathDelimiter); err != nil {
		return nil, err
	}

	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("run %s", result.RunID))
	defer span.End()
	r.log.Info("Starting run", "run_id", result.RunID, "tests", len(cases))

	sup := newSupervisor(r.cfg.Browser, &result.State, r.log)
	defer sup.shutdown(context.WithoutCancel(ctx))

	if err := sup.ensureUp(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "browser start failed")
		return nil, err
	}

	tagSet := tags.GenerateTags(r.systemInfo(ctx), r.cfg.Tags)
	result.Tags = tags.Sorted(tagSet)
	span.SetAttributes(attribute.StringSlice("tags", result.Tags))
	r.log.Info("Generated tags", "tags", result.Tags)
	lookupTags := tags.Lower(tagSet)

	for _, tc := range cases {
		tc = r.applyExpectations(tc, lookupTags)
		rec, err := r.resolve(ctx, sup, result, tc)
		if rec.Name != "" {
			result.Records = append(result.Records, rec)
			if insertErr := result.Tree.InsertName(rec.Name, rec); insertErr != nil {
				return nil, fmt.Errorf("recording %s: %w", rec.Name, insertErr)
			}
			metrics.RecordTest(result.RunID, rec.Verdict())
		}
		if err != nil {
			if ctx.Err() != nil {
				return r.interrupted(result, err)
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "run aborted")
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return r.interrupted(result, err)
	}

	result.Duration = time.Since(result.StartTime)
	stats := result.Stats()
	r.log.Info("Run complete", "run_id", result.RunID, "duration", result.Duration,
		"tests", stats.Total, "regressions", stats.Regressions, "flaky", stats.Flaky,
		"browser_starts", result.State.NumBrowserStarts, "browser_crashes", result.State.NumBrowserCrashes)
	return result, nil
}

// resolve drives the attempts of one test until the retry policy stops. The
// returned record is empty only when no attempt could be made.
func (r *Runner) resolve(ctx context.Context, sup *supervisor, result *Result, tc types.TestCase) (types.TestOutcomeRecord, error) {
	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("test %s", tc.Name))
	defer span.End()

	expected := r.expectedSet(tc)
	start := time.Now()
	var observed types.Outcomes
	var attempts []types.Attempt

	finish := func() types.TestOutcomeRecord {
		rec := expectations.Classify(tc.Name, expected, observed)
		rec.Attempts = attempts
		rec.Duration = time.Since(start)
		span.SetAttributes(
			attribute.String("actual", rec.Actual.String()),
			attribute.Bool("is_regression", rec.IsRegression),
		)
		r.log.Info("Test resolved", "test", tc.Name, "expected", expected, "actual", rec.Actual, "verdict", rec.Verdict())
		return rec
	}

	if !r.cfg.All && expected.Only(types.OutcomeSkip) {
		result.State.NumTestRuns++
		metrics.RecordAttempt(types.OutcomeSkip, false)
		observed = types.Outcomes{types.OutcomeSkip}
		attempts = []types.Attempt{{Outcome: types.OutcomeSkip, Diagnostic: "expected to be skipped"}}
		return finish(), nil
	}

	policy := r.policyFor(tc)
	for policy.ShouldContinue(expected, observed) {
		if err := ctx.Err(); err != nil {
			return r.partial(finish, observed), err
		}
		if err := sup.ensureUp(ctx); err != nil {
			return r.partial(finish, observed), err
		}

		n := len(observed) + 1
		r.log.Debug("Running test", "test", tc.Name, "attempt", n, "max", policy.MaxAttempts())
		att := r.runAttempt(ctx, sup, tc, n)
		if err := ctx.Err(); err != nil && att.Outcome != types.OutcomePass && att.Outcome != types.OutcomeSkip {
			// The run was cancelled under the attempt; its outcome says nothing about the test.
			r.log.Warn("Discarding attempt cut short by cancellation", "test", tc.Name, "attempt", n, "outcome", att.Outcome)
			return r.partial(finish, observed), err
		}

		result.State.NumTestRuns++
		flaky := len(observed) > 0 && observed[len(observed)-1] != att.Outcome
		if flaky {
			result.State.NumFlakyTestRuns++
		}
		metrics.RecordAttempt(att.Outcome, flaky)
		observed = append(observed, att.Outcome)
		attempts = append(attempts, att)

		if att.Outcome != types.OutcomePass {
			r.log.Info("Attempt did not pass", "test", tc.Name, "attempt", n, "outcome", att.Outcome, "diagnostic", att.Diagnostic)
		}

		switch {
		case att.BrowserCrashed:
			sup.crashed(ctx)
		case r.cfg.RestartOnFailure && att.Outcome != types.OutcomeSkip && !expected.Contains(att.Outcome):
			r.log.Debug("Restarting browser after unexpected outcome", "test", tc.Name, "outcome", att.Outcome)
			sup.markDown(ctx)
		}
	}
	return finish(), nil
}

// interrupted finishes a run cut short by cancellation of its context.
func (r *Runner) interrupted(result *Result, err error) (*Result, error) {
	result.Interrupted = true
	result.Duration = time.Since(result.StartTime)
	r.log.Warn("Run interrupted", "run_id", result.RunID, "resolved", len(result.Records))
	return result, err
}

// partial classifies the attempts made before an abort, if any.
func (r *Runner) partial(finish func() types.TestOutcomeRecord, observed types.Outcomes) types.TestOutcomeRecord {
	if len(observed) == 0 {
		return types.TestOutcomeRecord{}
	}
	return finish()
}

// expectedSet applies --all: tests expected to be skipped are run and must pass.
func (r *Runner) expectedSet(tc types.TestCase) types.ExpectationSet {
	expected := tc.Expected
	if expected.IsEmpty() {
		expected = types.ExpectPass
	}
	if r.cfg.All && expected.Contains(types.OutcomeSkip) {
		expected = expected.Without(types.OutcomeSkip)
		if expected.IsEmpty() {
			expected = types.ExpectPass
		}
	}
	return expected
}

func (r *Runner) policyFor(tc types.TestCase) expectations.RetryPolicy {
	limit := r.cfg.RetryLimit
	if tc.RetryLimit != nil {
		limit = max(*tc.RetryLimit, 0)
	}
	if r.cfg.RetryOnlyRetryOnFailureTests && !tc.RetryOnFailure {
		limit = 0
	}
	return expectations.RetryPolicy{
		Limit:         limit,
		OnlyOnFailure: r.cfg.RetryOnlyOnFailure,
		Repeat:        r.cfg.Repeat,
	}
}

func (r *Runner) applyExpectations(tc types.TestCase, lookupTags tags.TagSet) types.TestCase {
	if r.cfg.Expectations == nil {
		return tc
	}
	exp, ok := r.cfg.Expectations.Lookup(tc.Name, lookupTags)
	if !ok {
		return tc
	}
	tc.Expected = exp.Results
	tc.RetryOnFailure = tc.RetryOnFailure || exp.RetryOnFailure
	return tc
}

func (r *Runner) systemInfo(ctx context.Context) *types.SystemInfo {
	if r.cfg.SystemInfo == nil {
		return nil
	}
	info, err := r.cfg.SystemInfo.SystemInfo(ctx)
	if err != nil {
		r.log.Warn("Could not query system info, GPU tags omitted", "err", err)
		metrics.RecordErrorDetails("system_info", err)
		return nil
	}
	return info
}

// checkNames rejects test names that could not be recorded in the result
// tree, before the browser is started.
func checkNames(cases []types.TestCase, delimiter string) error {
	probe := results.NewTree(delimiter)
	for _, tc := range cases {
		if err := probe.InsertName(tc.Name, types.TestOutcomeRecord{}); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTestName, err)
		}
	}
	return nil
}
