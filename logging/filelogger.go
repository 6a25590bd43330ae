package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/acarl005/stripansi"

	"github.com/ethereum-optimism/infra/browser-acceptor/reporting"
	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

const (
	RunDirectoryPrefix = "testrun-" // Standardized prefix for run directories
	SummaryFilename    = "summary.log"
	AllLogsFilename    = "all.log"
)

// ResultSink is an interface for different ways of consuming test results
type ResultSink interface {
	// Consume processes a single resolved test
	Consume(record *types.TestOutcomeRecord, runID string) error
	// Complete is called when all results have been consumed
	Complete(runID string) error
}

// FileLogger writes the diagnostics of a run under <baseDir>/testrun-<runID>
type FileLogger struct {
	baseDir      string                // Base directory for logs
	logDir       string                // Directory of this run
	failedDir    string                // Logs of regressions
	passedDir    string                // Logs of everything else
	summaryFile  string                // Path to the summary file
	allLogsFile  string                // Path to the combined log file
	mu           sync.Mutex            // Protects concurrent file operations
	sinks        []ResultSink          // Collection of result consumers
	asyncWriters map[string]*AsyncFile // Map of async file writers
	runID        string                // Current run ID
}

// AsyncFile provides non-blocking file writing capabilities
type AsyncFile struct {
	file    *os.File
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile creates a new AsyncFile for non-blocking writes
func NewAsyncFile(path string) (*AsyncFile, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}

	af := &AsyncFile{
		file:  file,
		queue: make(chan []byte, 100),
	}
	af.wg.Add(1)
	go af.processQueue()
	return af, nil
}

// Write queues data to be written asynchronously
func (af *AsyncFile) Write(data []byte) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return fmt.Errorf("async file is closed")
	}
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	af.queue <- dataCopy
	return nil
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing to file: %v\n", err)
		}
	}
}

// Close stops the async writer and closes the file
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	af.wg.Wait()
	return af.file.Close()
}

// NewFileLogger creates the run directory and the default sinks
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	l := &FileLogger{
		baseDir:      baseDir,
		logDir:       logDir,
		failedDir:    filepath.Join(logDir, "failed"),
		passedDir:    filepath.Join(logDir, "passed"),
		summaryFile:  filepath.Join(logDir, SummaryFilename),
		allLogsFile:  filepath.Join(logDir, AllLogsFilename),
		asyncWriters: make(map[string]*AsyncFile),
		runID:        runID,
	}
	for _, dir := range []string{baseDir, logDir, l.failedDir, l.passedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	l.sinks = []ResultSink{
		&AllLogsFileSink{logger: l},
		&PerTestFileSink{logger: l, processedTests: make(map[string]bool)},
	}
	return l, nil
}

// AddSink registers an additional consumer of results.
func (l *FileLogger) AddSink(sink ResultSink) {
	l.sinks = append(l.sinks, sink)
}

func (l *FileLogger) getAsyncWriter(path string) (*AsyncFile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if writer, exists := l.asyncWriters[path]; exists {
		return writer, nil
	}
	writer, err := NewAsyncFile(path)
	if err != nil {
		return nil, err
	}
	l.asyncWriters[path] = writer
	return writer, nil
}

func (l *FileLogger) closeAllWriters() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, writer := range l.asyncWriters {
		_ = writer.Close()
	}
	l.asyncWriters = make(map[string]*AsyncFile)
}

// GetDirectoryForRunID returns the path for a specific runID
func (l *FileLogger) GetDirectoryForRunID(runID string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("runID cannot be empty")
	}
	if runID == l.runID {
		return l.logDir, nil
	}
	return filepath.Join(l.baseDir, RunDirectoryPrefix+runID), nil
}

// LogTestResult processes a resolved test through all registered sinks
func (l *FileLogger) LogTestResult(record *types.TestOutcomeRecord, runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	for _, sink := range l.sinks {
		if err := sink.Consume(record, runID); err != nil {
			return fmt.Errorf("error in sink: %w", err)
		}
	}
	return nil
}

// LogSummary writes a summary of the run to summary.log
func (l *FileLogger) LogSummary(summary string, runID string) error {
	dir, err := l.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}
	writer, err := l.getAsyncWriter(filepath.Join(dir, SummaryFilename))
	if err != nil {
		return err
	}
	return writer.Write([]byte(stripANSIEscapeSequences(summary)))
}

// Complete finalizes all sinks and closes all file writers
func (l *FileLogger) Complete(runID string) error {
	if runID == "" {
		return fmt.Errorf("runID cannot be empty")
	}
	for _, sink := range l.sinks {
		if err := sink.Complete(runID); err != nil {
			return fmt.Errorf("error completing sink: %w", err)
		}
	}
	l.closeAllWriters()
	return nil
}

// GetBaseDir returns the directory of this run
func (l *FileLogger) GetBaseDir() string {
	return l.logDir
}

// GetFailedDir returns the directory containing logs of regressions
func (l *FileLogger) GetFailedDir() string {
	return l.failedDir
}

// GetSummaryFile returns the path to the summary file
func (l *FileLogger) GetSummaryFile() string {
	return l.summaryFile
}

// GetAllLogsFile returns the path to the all logs file
func (l *FileLogger) GetAllLogsFile() string {
	return l.allLogsFile
}

// GetRunID returns the current runID
func (l *FileLogger) GetRunID() string {
	return l.runID
}

// safeFilename converts a test name to a safe filename by replacing problematic characters
func safeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
		"...", "",
	)
	return replacer.Replace(s)
}

func stripANSIEscapeSequences(s string) string {
	return stripansi.Strip(s)
}

// writeRecord renders the attempts of a resolved test.
func writeRecord(b *strings.Builder, record *types.TestOutcomeRecord) {
	fmt.Fprintf(b, "TEST:     %s\n", record.Name)
	fmt.Fprintf(b, "Verdict:  %s\n", record.Verdict())
	fmt.Fprintf(b, "Expected: %s\n", record.Expected)
	fmt.Fprintf(b, "Actual:   %s\n", record.Actual)
	fmt.Fprintf(b, "Duration: %s\n", reporting.FormatDuration(record.Duration))
	for i, att := range record.Attempts {
		fmt.Fprintf(b, "\nATTEMPT %d: %s (%s)", i+1, att.Outcome, reporting.FormatDuration(att.Duration))
		if att.BrowserCrashed {
			b.WriteString(" browser crashed")
		}
		b.WriteString("\n")
		if att.Diagnostic != "" {
			fmt.Fprintf(b, "%s\n", indentText(stripANSIEscapeSequences(att.Diagnostic), "  "))
		}
	}
}

func indentText(text, indent string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = indent + line
		}
	}
	return strings.Join(lines, "\n")
}

// AllLogsFileSink appends every resolved test to all.log
type AllLogsFileSink struct {
	logger *FileLogger
}

func (s *AllLogsFileSink) Consume(record *types.TestOutcomeRecord, runID string) error {
	dir, err := s.logger.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}
	writer, err := s.logger.getAsyncWriter(filepath.Join(dir, AllLogsFilename))
	if err != nil {
		return err
	}

	var content strings.Builder
	fmt.Fprintf(&content, "\n%s %s\n", strings.Repeat("=", 8), time.Now().Format(time.RFC3339))
	writeRecord(&content, record)
	return writer.Write([]byte(content.String()))
}

// Complete is a no-op for AllLogsFileSink
func (s *AllLogsFileSink) Complete(runID string) error {
	return nil
}

// PerTestFileSink writes one file per test into the passed or failed directory
type PerTestFileSink struct {
	logger         *FileLogger
	processedTests map[string]bool
	mu             sync.Mutex
}

func (s *PerTestFileSink) Consume(record *types.TestOutcomeRecord, runID string) error {
	baseDir, err := s.logger.GetDirectoryForRunID(runID)
	if err != nil {
		return err
	}
	targetDir := filepath.Join(baseDir, "passed")
	if record.IsRegression {
		targetDir = filepath.Join(baseDir, "failed")
	}
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", targetDir, err)
	}

	path := filepath.Join(targetDir, safeFilename(record.Name)+".log")
	s.mu.Lock()
	if s.processedTests[path] {
		s.mu.Unlock()
		return nil
	}
	s.processedTests[path] = true
	s.mu.Unlock()

	var content strings.Builder
	writeRecord(&content, record)
	if err := os.WriteFile(path, []byte(content.String()), 0644); err != nil {
		return fmt.Errorf("failed to write test log %s: %w", path, err)
	}
	return nil
}

// Complete is a no-op for PerTestFileSink
func (s *PerTestFileSink) Complete(runID string) error {
	return nil
}
