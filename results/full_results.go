package results

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

// FullResultsVersion is the version of the JSON test results format produced.
const FullResultsVersion = 3

// FullResults is the document written to --write-full-results-to.
type FullResults struct {
	Version           int            `json:"version"`
	Interrupted       bool           `json:"interrupted"`
	PathDelimiter     string         `json:"path_delimiter"`
	SecondsSinceEpoch float64        `json:"seconds_since_epoch"`
	NumFailuresByType map[string]int `json:"num_failures_by_type"`
	NumRegressions    int            `json:"num_regressions"`
	Tests             map[string]any `json:"tests"`
}

// FullResults renders the tree as a results document for a run that started at start.
func (t *Tree) FullResults(start time.Time, interrupted bool) FullResults {
	byType := make(map[string]int, len(types.AllOutcomes))
	for _, o := range types.AllOutcomes {
		byType[o.String()] = 0
	}
	regressions := 0
	for _, leaf := range t.Leaves() {
		if last, ok := leaf.Record.Actual.Last(); ok {
			byType[last.String()]++
		}
		if leaf.Record.IsRegression {
			regressions++
		}
	}
	return FullResults{
		Version:           FullResultsVersion,
		Interrupted:       interrupted,
		PathDelimiter:     t.delimiter,
		SecondsSinceEpoch: float64(start.UnixNano()) / float64(time.Second),
		NumFailuresByType: byType,
		NumRegressions:    regressions,
		Tests:             t.Render(),
	}
}

// Summary partitions the leaves of a results document.
type Summary struct {
	Successes []string
	Failures  []string
	Skips     []string
}

// Extract walks a decoded results tree and classifies every leaf. A node is
// a leaf when its "expected" and "actual" values are strings. A leaf is a
// failure when none of its actual outcomes were expected, a skip when both
// values are exactly SKIP, and a success otherwise. Each returned list is sorted.
func Extract(tests map[string]any, delimiter string) (Summary, error) {
	type item struct {
		name  string
		value any
	}
	var summary Summary
	stack := make([]item, 0, len(tests))
	for name, value := range tests {
		stack = append(stack, item{name: name, value: value})
	}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		m, ok := cur.value.(map[string]any)
		if !ok {
			return Summary{}, fmt.Errorf("node %q is not a mapping", cur.name)
		}
		if expected, actual, ok := leafValues(m); ok {
			switch {
			case !anyExpected(expected, actual):
				summary.Failures = append(summary.Failures, cur.name)
			case expected == "SKIP" && actual == "SKIP":
				summary.Skips = append(summary.Skips, cur.name)
			default:
				summary.Successes = append(summary.Successes, cur.name)
			}
			continue
		}
		for key, child := range m {
			stack = append(stack, item{name: cur.name + delimiter + key, value: child})
		}
	}

	slices.Sort(summary.Successes)
	slices.Sort(summary.Failures)
	slices.Sort(summary.Skips)
	return summary, nil
}

func leafValues(m map[string]any) (string, string, bool) {
	expected, ok := m["expected"].(string)
	if !ok {
		return "", "", false
	}
	actual, ok := m["actual"].(string)
	if !ok {
		return "", "", false
	}
	return expected, actual, true
}

func anyExpected(expected, actual string) bool {
	allowed := strings.Fields(expected)
	for _, got := range strings.Fields(actual) {
		if slices.Contains(allowed, got) {
			return true
		}
	}
	return false
}
