package reporting

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ethereum-optimism/infra/browser-acceptor/types"
	"github.com/ethereum-optimism/infra/browser-acceptor/ui"
)

// FormatDuration renders short durations in milliseconds and longer ones
// truncated to millisecond precision.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Truncate(time.Millisecond).String()
}

func verdictSymbol(v types.Verdict) string {
	switch v {
	case types.VerdictPass:
		return "✓"
	case types.VerdictFlaky:
		return "~"
	case types.VerdictSkip:
		return "-"
	case types.VerdictRegression:
		return "✗"
	default:
		return "?"
	}
}

// TreeTextFormatter renders resolved tests as a plain-text tree split on
// the run's path delimiter.
type TreeTextFormatter struct {
	delimiter      string
	includeStats   bool
	includeDetails bool
}

func NewTreeTextFormatter(delimiter string, includeStats, includeDetails bool) *TreeTextFormatter {
	if delimiter == "" {
		delimiter = "/"
	}
	return &TreeTextFormatter{
		delimiter:      delimiter,
		includeStats:   includeStats,
		includeDetails: includeDetails,
	}
}

type textNode struct {
	node     *ui.TreeNode
	children map[string]*textNode
	order    []string
}

func (n *textNode) child(segment string) *textNode {
	if c, ok := n.children[segment]; ok {
		return c
	}
	c := &textNode{node: &ui.TreeNode{Label: segment}, children: make(map[string]*textNode)}
	n.children[segment] = c
	n.order = append(n.order, segment)
	return c
}

// Format renders records, sorted by name, with optional run counters.
func (f *TreeTextFormatter) Format(records []*types.TestOutcomeRecord, state *types.RunState) string {
	sorted := slices.Clone(records)
	slices.SortFunc(sorted, func(a, b *types.TestOutcomeRecord) int {
		return strings.Compare(a.Name, b.Name)
	})

	root := &textNode{node: &ui.TreeNode{}, children: make(map[string]*textNode)}
	counts := make(map[types.Verdict]int)
	for _, rec := range sorted {
		counts[rec.Verdict()]++
		segments := strings.Split(rec.Name, f.delimiter)
		cur := root
		for _, segment := range segments[:len(segments)-1] {
			cur = cur.child(segment)
		}
		leaf := cur.child(segments[len(segments)-1])
		leaf.node.Label = f.leafLabel(rec)
		if f.includeDetails {
			leaf.node.Children = detailNodes(rec)
		}
	}
	link(root)

	var b strings.Builder
	b.WriteString(ui.RenderTree(root.node.Children))
	if f.includeStats {
		fmt.Fprintf(&b, "\nTests: %d, passed: %d, flaky: %d, skipped: %d, regressions: %d\n",
			len(sorted), counts[types.VerdictPass], counts[types.VerdictFlaky],
			counts[types.VerdictSkip], counts[types.VerdictRegression])
		if state != nil {
			fmt.Fprintf(&b, "Browser starts: %d, crashes: %d, test runs: %d, flaky runs: %d\n",
				state.NumBrowserStarts, state.NumBrowserCrashes, state.NumTestRuns, state.NumFlakyTestRuns)
		}
	}
	return b.String()
}

func (f *TreeTextFormatter) leafLabel(rec *types.TestOutcomeRecord) string {
	segments := strings.Split(rec.Name, f.delimiter)
	return fmt.Sprintf("%s %s [%s] expected %s (%s)",
		verdictSymbol(rec.Verdict()), segments[len(segments)-1], rec.Actual, rec.Expected, FormatDuration(rec.Duration))
}

func detailNodes(rec *types.TestOutcomeRecord) []*ui.TreeNode {
	var out []*ui.TreeNode
	for i, att := range rec.Attempts {
		label := fmt.Sprintf("attempt %d: %s", i+1, att.Outcome)
		if att.BrowserCrashed {
			label += " (browser crashed)"
		}
		if att.Diagnostic != "" {
			first, _, _ := strings.Cut(att.Diagnostic, "\n")
			label += ": " + first
		}
		out = append(out, &ui.TreeNode{Label: label})
	}
	return out
}

// link copies the insertion-ordered children of each text node into its
// ui.TreeNode, leaving details already attached to leaves in place.
func link(root *textNode) {
	stack := []*textNode{root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, segment := range cur.order {
			c := cur.children[segment]
			cur.node.Children = append(cur.node.Children, c.node)
			stack = append(stack, c)
		}
	}
}
