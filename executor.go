package bat

import (
	"context"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/browser-acceptor/runner"
	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

// TestRunner resolves a list of test cases.
type TestRunner interface {
	Run(ctx context.Context, cases []types.TestCase) (*runner.Result, error)
}

// CaseSource provides the test cases of a run.
type CaseSource interface {
	GetTestCases() []types.TestCase
}

// TestExecutor is responsible for running tests.
type TestExecutor interface {
	RunTests(ctx context.Context) (*runner.Result, error)
}

// DefaultTestExecutor implements the TestExecutor interface.
type DefaultTestExecutor struct {
	runner TestRunner
	cases  CaseSource
	logger log.Logger
}

// NewDefaultTestExecutor creates a new DefaultTestExecutor.
func NewDefaultTestExecutor(runner TestRunner, cases CaseSource, logger log.Logger) *DefaultTestExecutor {
	return &DefaultTestExecutor{
		runner: runner,
		cases:  cases,
		logger: logger,
	}
}

// RunTests runs all tests and returns the results. An interrupted run
// returns its partial result together with the error.
func (e *DefaultTestExecutor) RunTests(ctx context.Context) (*runner.Result, error) {
	cases := e.cases.GetTestCases()
	e.logger.Info("Running all tests...", "tests", len(cases))
	result, err := e.runner.Run(ctx, cases)
	if err != nil {
		e.logger.Error("Error running tests", "error", err)
		return result, err
	}
	stats := result.Stats()
	e.logger.Info("Test run completed", "run_id", result.RunID,
		"passed", stats.Passed, "flaky", stats.Flaky, "skipped", stats.Skipped, "regressions", stats.Regressions)
	return result, nil
}
