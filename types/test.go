package types

import (
	"context"
	"errors"
	"time"
)

// ErrSkip is returned by a test body that decided not to run, for example
// because the page reported the feature as unsupported.
var ErrSkip = errors.New("test skipped")

// Surface is the navigable page a test body drives.
type Surface interface {
	Navigate(ctx context.Context, url string) error
	// Evaluate runs a JavaScript expression and returns its value rendered as a string.
	Evaluate(ctx context.Context, expression string) (string, error)
}

// TestFunc is the body of a test case. A nil return is a pass.
type TestFunc func(ctx context.Context, surface Surface) error

// TestCase is a single test loaded for a run. It is not modified once the
// run has started.
type TestCase struct {
	Name           string         // Full hierarchical name, segments joined by the run's delimiter
	Expected       ExpectationSet // Declared acceptable outcomes
	RetryOnFailure bool           // Marked RetryOnFailure by an expectation rule or the suite
	RetryLimit     *int           // Optional per-test override of the global retry limit
	Timeout        time.Duration  // Per-attempt timeout, 0 uses the runner default
	Run            TestFunc
}

// Attempt is one execution of a TestCase
type Attempt struct {
	Outcome        Outcome
	Diagnostic     string
	Duration       time.Duration
	BrowserCrashed bool // The browser was found dead during or after the attempt
}

// Verdict summarizes a resolved test for reporting.
type Verdict string

const (
	VerdictPass       Verdict = "pass"
	VerdictFlaky      Verdict = "flaky"
	VerdictRegression Verdict = "regression"
	VerdictSkip       Verdict = "skip"
)

// TestOutcomeRecord is the resolved result of a TestCase after all attempts.
type TestOutcomeRecord struct {
	Name         string
	Expected     ExpectationSet
	Actual       Outcomes
	IsRegression bool
	Attempts     []Attempt
	Duration     time.Duration
}

// Verdict derives the reporting verdict from the record.
func (r TestOutcomeRecord) Verdict() Verdict {
	switch {
	case r.IsRegression:
		return VerdictRegression
	case len(r.Actual) > 0 && allOutcomes(r.Actual, OutcomeSkip):
		return VerdictSkip
	case len(r.Actual) > 1 && !r.Expected.Contains(r.Actual[0]):
		return VerdictFlaky
	default:
		return VerdictPass
	}
}

func allOutcomes(seq Outcomes, o Outcome) bool {
	for _, got := range seq {
		if got != o {
			return false
		}
	}
	return true
}
