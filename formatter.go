package bat

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/ethereum-optimism/infra/browser-acceptor/runner"
	"github.com/ethereum-optimism/infra/browser-acceptor/types"
	"github.com/ethereum-optimism/infra/browser-acceptor/ui"
)

// ResultFormatter is responsible for formatting and displaying test results.
type ResultFormatter interface {
	FormatResults(result *runner.Result) error
}

// ConsoleResultFormatter implements the ResultFormatter interface.
type ConsoleResultFormatter struct {
	logger    log.Logger
	out       io.Writer
	delimiter string
}

// NewConsoleResultFormatter creates a formatter writing to stdout.
func NewConsoleResultFormatter(logger log.Logger, delimiter string) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{
		logger:    logger,
		out:       os.Stdout,
		delimiter: delimiter,
	}
}

type group struct {
	name    string
	records []types.TestOutcomeRecord
	stats   runner.ResultStats
	elapsed time.Duration
}

// groupRecords buckets records by the first segment of their name, keeping
// groups and their tests sorted by name.
func (f *ConsoleResultFormatter) groupRecords(records []types.TestOutcomeRecord) []*group {
	byName := make(map[string]*group)
	var groups []*group
	for _, rec := range records {
		name := ""
		if f.delimiter != "" {
			if head, _, ok := strings.Cut(rec.Name, f.delimiter); ok {
				name = head
			}
		}
		g, ok := byName[name]
		if !ok {
			g = &group{name: name}
			byName[name] = g
			groups = append(groups, g)
		}
		g.records = append(g.records, rec)
		g.elapsed += rec.Duration
		g.stats.Total++
		switch rec.Verdict() {
		case types.VerdictPass:
			g.stats.Passed++
		case types.VerdictFlaky:
			g.stats.Flaky++
		case types.VerdictSkip:
			g.stats.Skipped++
		case types.VerdictRegression:
			g.stats.Regressions++
		}
	}
	slices.SortFunc(groups, func(a, b *group) int { return strings.Compare(a.name, b.name) })
	for _, g := range groups {
		slices.SortFunc(g.records, func(a, b types.TestOutcomeRecord) int { return strings.Compare(a.Name, b.Name) })
	}
	return groups
}

func groupVerdict(stats runner.ResultStats) types.Verdict {
	switch {
	case stats.Regressions > 0:
		return types.VerdictRegression
	case stats.Total > 0 && stats.Skipped == stats.Total:
		return types.VerdictSkip
	case stats.Flaky > 0:
		return types.VerdictFlaky
	default:
		return types.VerdictPass
	}
}

// FormatResults formats and displays the test results.
func (f *ConsoleResultFormatter) FormatResults(result *runner.Result) error {
	f.logger.Info("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(f.out)
	title := fmt.Sprintf("Browser Acceptance Results (%s)", formatDuration(result.Duration))
	if result.Interrupted {
		title += " [interrupted]"
	}
	t.SetTitle(title)

	t.AppendHeader(table.Row{
		"Type", "ID", "Duration", "Tests", "Passed", "Flaky", "Skipped", "Failed", "Actual", "Status", "Diagnostic",
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Type", AutoMerge: true},
		{Name: "ID", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Tests", Align: text.AlignRight},
		{Name: "Passed", Align: text.AlignRight},
		{Name: "Flaky", Align: text.AlignRight},
		{Name: "Skipped", Align: text.AlignRight},
		{Name: "Failed", Align: text.AlignRight},
		{Name: "Diagnostic", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	for _, g := range f.groupRecords(result.Records) {
		indent := ""
		if g.name != "" {
			t.AppendRow(table.Row{
				"Group",
				g.name,
				formatDuration(g.elapsed),
				"-", // Don't count the group as a test
				g.stats.Passed,
				g.stats.Flaky,
				g.stats.Skipped,
				g.stats.Regressions,
				"",
				getResultString(groupVerdict(g.stats)),
				"",
			})
			indent = "  "
		}

		for i, rec := range g.records {
			prefix := ui.TreeBranch
			if i == len(g.records)-1 {
				prefix = ui.TreeLastBranch
			}
			name := rec.Name
			if g.name != "" {
				name = strings.TrimPrefix(name, g.name+f.delimiter)
			}
			verdict := rec.Verdict()
			t.AppendRow(table.Row{
				"Test",
				indent + prefix + name,
				formatDuration(rec.Duration),
				"1",
				boolToInt(verdict == types.VerdictPass),
				boolToInt(verdict == types.VerdictFlaky),
				boolToInt(verdict == types.VerdictSkip),
				boolToInt(verdict == types.VerdictRegression),
				rec.Actual.String(),
				getResultString(verdict),
				extractKeyDiagnostic(lastDiagnostic(rec)),
			})
		}
		t.AppendSeparator()
	}

	stats := result.Stats()
	overall := groupVerdict(stats)
	switch overall {
	case types.VerdictPass:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case types.VerdictSkip, types.VerdictFlaky:
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"TOTAL",
		"",
		formatDuration(result.Duration),
		stats.Total,
		stats.Passed,
		stats.Flaky,
		stats.Skipped,
		stats.Regressions,
		"",
		getResultString(overall),
		"",
	})
	t.Render()

	state := result.State
	_, err := fmt.Fprintf(f.out, "Run %s: browser starts=%d crashes=%d test runs=%d flaky runs=%d\n",
		result.RunID, state.NumBrowserStarts, state.NumBrowserCrashes, state.NumTestRuns, state.NumFlakyTestRuns)
	return err
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
