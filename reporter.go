package bat

import (
	"github.com/ethereum-optimism/infra/browser-acceptor/metrics"
	"github.com/ethereum-optimism/infra/browser-acceptor/runner"
)

// MetricsReporter is responsible for reporting metrics from test results.
type MetricsReporter interface {
	ReportResults(result *runner.Result)
}

// DefaultMetricsReporter implements the MetricsReporter interface.
type DefaultMetricsReporter struct{}

// NewDefaultMetricsReporter creates a new DefaultMetricsReporter.
func NewDefaultMetricsReporter() *DefaultMetricsReporter {
	return &DefaultMetricsReporter{}
}

// ReportResults records the overall result of a run. Per-test and
// per-attempt metrics are recorded by the runner as the run progresses.
func (r *DefaultMetricsReporter) ReportResults(result *runner.Result) {
	metrics.RecordRun(result.RunID, runResult(result), result.Duration)
}

// runResult labels a run as pass, fail or interrupted.
func runResult(result *runner.Result) string {
	switch {
	case result.Interrupted:
		return "interrupted"
	case result.Passed():
		return "pass"
	default:
		return "fail"
	}
}
