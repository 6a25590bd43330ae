package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

// TreeFilename is the text tree written into each run directory.
const TreeFilename = "tree.log"

// TextSummarySink collects resolved tests and writes them as a text tree
// when the run completes.
type TextSummarySink struct {
	formatter *TreeTextFormatter
	baseDir   string
	state     *types.RunState
	records   map[string][]*types.TestOutcomeRecord
}

// NewTextSummarySink writes into <baseDir>/testrun-<runID>/tree.log.
func NewTextSummarySink(baseDir, delimiter string, includeDetails bool) *TextSummarySink {
	return &TextSummarySink{
		formatter: NewTreeTextFormatter(delimiter, true, includeDetails),
		baseDir:   baseDir,
		records:   make(map[string][]*types.TestOutcomeRecord),
	}
}

// SetRunState attaches the run counters to the rendered summary.
func (s *TextSummarySink) SetRunState(state types.RunState) {
	s.state = &state
}

// Consume collects a resolved test for later rendering
func (s *TextSummarySink) Consume(record *types.TestOutcomeRecord, runID string) error {
	s.records[runID] = append(s.records[runID], record)
	return nil
}

// Complete renders the collected tests of runID to disk
func (s *TextSummarySink) Complete(runID string) error {
	outputDir := filepath.Join(s.baseDir, "testrun-"+runID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	content := s.formatter.Format(s.records[runID], s.state)
	path := filepath.Join(outputDir, TreeFilename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write tree file: %w", err)
	}
	delete(s.records, runID)
	return nil
}
