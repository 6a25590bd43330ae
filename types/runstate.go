package types

// RunState holds the process-wide counters of one run. A fresh value is
// created per run and only the retry controller mutates it.
type RunState struct {
	NumBrowserStarts  int `json:"num_browser_starts"`
	NumBrowserCrashes int `json:"num_browser_crashes"`
	NumTestRuns       int `json:"num_test_runs"`
	NumFlakyTestRuns  int `json:"num_flaky_test_runs"`
}
