package bat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ethereum-optimism/infra/browser-acceptor/runner"
	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

func TestRunResult(t *testing.T) {
	pass := &runner.Result{RunID: "r1", Records: []types.TestOutcomeRecord{{Name: "a", Actual: types.Outcomes{types.OutcomePass}}}}
	fail := &runner.Result{RunID: "r2", Records: []types.TestOutcomeRecord{{Name: "a", IsRegression: true}}}
	interrupted := &runner.Result{RunID: "r3", Interrupted: true}

	assert.Equal(t, "pass", runResult(pass))
	assert.Equal(t, "fail", runResult(fail))
	assert.Equal(t, "interrupted", runResult(interrupted))
}

// TestDefaultMetricsReporter_ReportResults checks that reporting does not panic
func TestDefaultMetricsReporter_ReportResults(t *testing.T) {
	reporter := NewDefaultMetricsReporter()
	for _, result := range []*runner.Result{
		{RunID: "test-run-1", Duration: 100 * time.Millisecond},
		{RunID: "test-run-2", Duration: 150 * time.Millisecond, Records: []types.TestOutcomeRecord{{Name: "a", IsRegression: true}}},
		{RunID: "test-run-3", Interrupted: true},
	} {
		assert.NotPanics(t, func() { reporter.ReportResults(result) })
	}
}
