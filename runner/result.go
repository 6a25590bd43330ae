package runner

import (
	"time"

	"github.com/ethereum-optimism/infra/browser-acceptor/results"
	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

// Result captures the complete outcome of a run
type Result struct {
	RunID       string
	Tags        []string
	Tree        *results.Tree
	State       types.RunState
	Records     []types.TestOutcomeRecord // In execution order
	StartTime   time.Time
	Duration    time.Duration
	Interrupted bool
}

// ResultStats tracks verdict counts of a run
type ResultStats struct {
	Total       int
	Passed      int
	Flaky       int
	Skipped     int
	Regressions int
}

// Stats counts the records of the run by verdict.
func (r *Result) Stats() ResultStats {
	stats := ResultStats{Total: len(r.Records)}
	for _, rec := range r.Records {
		switch rec.Verdict() {
		case types.VerdictPass:
			stats.Passed++
		case types.VerdictFlaky:
			stats.Flaky++
		case types.VerdictSkip:
			stats.Skipped++
		case types.VerdictRegression:
			stats.Regressions++
		}
	}
	return stats
}

// Passed reports whether the run completed without regressions.
func (r *Result) Passed() bool {
	return !r.Interrupted && r.Stats().Regressions == 0
}

// Regressions returns the records whose outcomes never matched their expectation.
func (r *Result) Regressions() []types.TestOutcomeRecord {
	var out []types.TestOutcomeRecord
	for _, rec := range r.Records {
		if rec.IsRegression {
			out = append(out, rec)
		}
	}
	return out
}

// FullResults renders the run as a full results document.
func (r *Result) FullResults() results.FullResults {
	return r.Tree.FullResults(r.StartTime, r.Interrupted)
}
