package logging

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

func testRecord(name string, regression bool, attempts ...types.Attempt) *types.TestOutcomeRecord {
	rec := &types.TestOutcomeRecord{
		Name:         name,
		Expected:     types.NewExpectationSet(types.OutcomePass),
		IsRegression: regression,
		Attempts:     attempts,
		Duration:     2 * time.Second,
	}
	for _, a := range attempts {
		rec.Actual = append(rec.Actual, a.Outcome)
	}
	return rec
}

// countingSink records how it was driven.
type countingSink struct {
	consumed  int
	completed []string
}

func (s *countingSink) Consume(_ *types.TestOutcomeRecord, _ string) error {
	s.consumed++
	return nil
}

func (s *countingSink) Complete(runID string) error {
	s.completed = append(s.completed, runID)
	return nil
}

func TestNewFileLogger(t *testing.T) {
	_, err := NewFileLogger(t.TempDir(), "")
	assert.Error(t, err)
	_, err = NewFileLogger("", "run")
	assert.Error(t, err)

	dir := t.TempDir()
	l, err := NewFileLogger(dir, "abc")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "testrun-abc"), l.GetBaseDir())
	assert.Equal(t, filepath.Join(dir, "testrun-abc", "failed"), l.GetFailedDir())
	assert.Equal(t, filepath.Join(dir, "testrun-abc", SummaryFilename), l.GetSummaryFile())
	assert.Equal(t, filepath.Join(dir, "testrun-abc", AllLogsFilename), l.GetAllLogsFile())
	assert.Equal(t, "abc", l.GetRunID())
	assert.DirExists(t, l.GetFailedDir())

	other, err := l.GetDirectoryForRunID("other")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "testrun-other"), other)
	_, err = l.GetDirectoryForRunID("")
	assert.Error(t, err)
}

func TestFileLoggerWritesDiagnostics(t *testing.T) {
	l, err := NewFileLogger(t.TempDir(), "run1")
	require.NoError(t, err)
	extra := &countingSink{}
	l.AddSink(extra)

	flaky := testRecord("conformance/textures/upload.html", false,
		types.Attempt{Outcome: types.OutcomeCrash, Diagnostic: "\x1b[31mrenderer gone\x1b[0m", BrowserCrashed: true},
		types.Attempt{Outcome: types.OutcomePass, Duration: 300 * time.Millisecond},
	)
	broken := testRecord("conformance/attribs/broken.html", true,
		types.Attempt{Outcome: types.OutcomeFail, Diagnostic: "page reported: bad pixel\nat 3,4"},
	)
	require.NoError(t, l.LogTestResult(flaky, "run1"))
	require.NoError(t, l.LogTestResult(broken, "run1"))
	assert.Error(t, l.LogTestResult(broken, ""))
	require.NoError(t, l.LogSummary("\x1b[32m1 passed\x1b[0m", "run1"))
	require.NoError(t, l.Complete("run1"))

	assert.Equal(t, 2, extra.consumed)
	assert.Equal(t, []string{"run1"}, extra.completed)

	passed, err := os.ReadFile(filepath.Join(l.GetBaseDir(), "passed", "conformance_textures_upload.html.log"))
	require.NoError(t, err)
	assert.Contains(t, string(passed), "Verdict:  flaky")
	assert.Contains(t, string(passed), "ATTEMPT 1: CRASH (0ms) browser crashed")
	assert.Contains(t, string(passed), "  renderer gone")
	assert.Contains(t, string(passed), "ATTEMPT 2: PASS (300ms)")
	assert.NotContains(t, string(passed), "\x1b[")

	failed, err := os.ReadFile(filepath.Join(l.GetFailedDir(), "conformance_attribs_broken.html.log"))
	require.NoError(t, err)
	assert.Contains(t, string(failed), "Verdict:  regression")
	assert.Contains(t, string(failed), "  page reported: bad pixel\n  at 3,4")

	all, err := os.ReadFile(l.GetAllLogsFile())
	require.NoError(t, err)
	assert.Contains(t, string(all), "TEST:     conformance/textures/upload.html")
	assert.Contains(t, string(all), "TEST:     conformance/attribs/broken.html")

	summary, err := os.ReadFile(l.GetSummaryFile())
	require.NoError(t, err)
	assert.Equal(t, "1 passed", string(summary))
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c_d.html", safeFilename("a/b:c d.html"))
	assert.Equal(t, "name", safeFilename("name..."))
}
