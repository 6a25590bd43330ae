// Package expectations classifies observed test outcomes against declared
// expectations and loads expectation rules from disk.
package expectations

import (
	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

// Classify resolves the observed sequence of a test against its declared
// expectation set. The test is a regression only if no observed outcome was
// ever acceptable.
func Classify(name string, expected types.ExpectationSet, observed types.Outcomes) types.TestOutcomeRecord {
	actual := make(types.Outcomes, len(observed))
	copy(actual, observed)
	return types.TestOutcomeRecord{
		Name:         name,
		Expected:     expected,
		Actual:       actual,
		IsRegression: len(observed) > 0 && !expected.ContainsAny(observed),
	}
}

// RetryPolicy bounds how often a test is attempted.
type RetryPolicy struct {
	// Limit is the number of additional attempts allowed after the first.
	Limit int
	// OnlyOnFailure restricts retries to failure-class outcomes.
	OnlyOnFailure bool
	// Repeat, when positive, runs exactly this many attempts with no early exit.
	Repeat int
}

// ShouldContinue decides whether another attempt is needed given what has
// been observed so far.
func (p RetryPolicy) ShouldContinue(expected types.ExpectationSet, observed types.Outcomes) bool {
	if p.Repeat > 0 {
		return len(observed) < p.Repeat
	}
	last, ok := observed.Last()
	if !ok {
		return true
	}
	switch {
	case last == types.OutcomeSkip:
		return false
	case expected.Contains(last):
		return false
	case len(observed)-1 >= p.Limit:
		return false
	case p.OnlyOnFailure && !last.IsFailure():
		return false
	}
	return true
}

// MaxAttempts is the upper bound on attempts the policy allows for one test.
func (p RetryPolicy) MaxAttempts() int {
	if p.Repeat > 0 {
		return p.Repeat
	}
	return 1 + max(p.Limit, 0)
}
