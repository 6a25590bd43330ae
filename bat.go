package bat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/infra/browser-acceptor/browser"
	"github.com/ethereum-optimism/infra/browser-acceptor/exitcodes"
	"github.com/ethereum-optimism/infra/browser-acceptor/expectations"
	"github.com/ethereum-optimism/infra/browser-acceptor/logging"
	"github.com/ethereum-optimism/infra/browser-acceptor/metrics"
	"github.com/ethereum-optimism/infra/browser-acceptor/platform"
	"github.com/ethereum-optimism/infra/browser-acceptor/registry"
	"github.com/ethereum-optimism/infra/browser-acceptor/reporting"
	"github.com/ethereum-optimism/infra/browser-acceptor/runner"
	"github.com/ethereum-optimism/infra/browser-acceptor/service"
	"github.com/ethereum-optimism/infra/browser-acceptor/tags"
	"github.com/ethereum-optimism/infra/browser-acceptor/ui"
	"github.com/ethereum-optimism/optimism/op-service/cliapp"
)

// BrowserAcceptor implements the cliapp.Lifecycle interface.
var _ cliapp.Lifecycle = &BrowserAcceptor{}

// BrowserAcceptor runs a suite of page tests against a supervised browser,
// once or on an interval.
type BrowserAcceptor struct {
	ctx       context.Context
	config    *Config
	version   string
	registry  *registry.Registry
	delimiter string

	executor  TestExecutor
	formatter ResultFormatter
	reporter  MetricsReporter
	scheduler TestScheduler
	service   *service.Service

	mu     sync.Mutex
	result *runner.Result

	running atomic.Bool

	shutdownCallback func(error) // Callback to signal application shutdown
}

func New(ctx context.Context, config *Config, version string, shutdownCallback func(error)) (*BrowserAcceptor, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.Log == nil {
		config.Log = log.New()
		config.Log.Error("No logger provided, using default")
	}

	config.Log.Debug("Creating browser acceptor with config",
		"suite", config.SuiteFile,
		"expectations", config.ExpectationsFile,
		"runInterval", config.RunInterval,
		"runOnce", config.RunOnce,
		"retryLimit", config.RetryLimit,
		"repeat", config.Repeat)

	reg, err := registry.NewRegistry(registry.Config{
		Log:            config.Log,
		SuiteFile:      config.SuiteFile,
		TestFilter:     config.TestFilter,
		TestNamePrefix: config.TestNamePrefix,
		DefaultTimeout: config.AttemptTimeout,
		PollInterval:   config.PollInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create registry: %w", err)
	}

	var resolver runner.ExpectationResolver
	if config.ExpectationsFile != "" {
		exp, err := expectations.Load(config.ExpectationsFile)
		if err != nil {
			return nil, NewConfigurationError(err)
		}
		resolver = exp
	}

	host, err := platform.Detect(ctx, config.Platform, config.PlatformVersion)
	if err != nil {
		config.Log.Warn("Could not detect host platform, platform tags omitted", "err", err)
		metrics.RecordErrorDetails("platform_detect", err)
		host = platform.Info{Platform: strings.ToLower(config.Platform), Version: strings.ToLower(config.PlatformVersion)}
	}
	tagCfg := tags.Config{
		Platform:        host.Platform,
		PlatformVersion: host.Version,
		BrowserChannel:  config.BrowserChannel,
		ASAN:            config.ASAN,
		WebGLVersion:    config.WebGLVersion,
	}
	tagCfg.ApplyBrowserArgs(config.ExtraBrowserArgs)

	controller := config.Browser
	if controller == nil {
		controller, err = browser.NewRodController(browser.RodConfig{
			Log:       config.Log,
			Binary:    browser.NewBinaryManager(config.BrowserBin, config.DownloadBrowser),
			Headless:  config.Headless,
			ExtraArgs: config.ExtraBrowserArgs,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create browser controller: %w", err)
		}
	}
	sysInfo, _ := controller.(browser.SystemInfoProvider)

	delimiter := reg.GetSuite().PathDelimiter
	testRunner, err := runner.New(runner.Config{
		Browser:                      controller,
		SystemInfo:                   sysInfo,
		Expectations:                 resolver,
		Tags:                         tagCfg,
		Log:                          config.Log,
		RetryLimit:                   config.RetryLimit,
		RetryOnlyOnFailure:           config.RetryOnlyRetryOnFailure,
		RetryOnlyRetryOnFailureTests: config.RetryOnlyRetryOnFailureTests,
		Repeat:                       config.Repeat,
		All:                          config.All,
		RestartOnFailure:             config.RestartBrowserOnFailure,
		AttemptTimeout:               config.AttemptTimeout,
		PathDelimiter:                delimiter,
	})
	if err != nil {
		return nil, NewConfigurationError(fmt.Errorf("failed to create test runner: %w", err))
	}
	config.Log.Info("Created registry and test runner", "tests", len(reg.GetTestCases()), "platform", host.Platform, "version", host.Version)

	b := &BrowserAcceptor{
		ctx:              ctx,
		config:           config,
		version:          version,
		registry:         reg,
		delimiter:        delimiter,
		executor:         NewDefaultTestExecutor(testRunner, reg, config.Log),
		formatter:        NewConsoleResultFormatter(config.Log, delimiter),
		reporter:         NewDefaultMetricsReporter(),
		scheduler:        NewDefaultTestScheduler(config.RunInterval, config.RunOnce, config.Log),
		shutdownCallback: shutdownCallback,
	}
	if config.Serve {
		b.service = service.New(service.Config{
			Log:            config.Log,
			HealthzPort:    config.HealthzPort,
			MetricsEnabled: config.Metrics.Enabled,
			MetricsAddr:    config.Metrics.ListenAddr,
			MetricsPort:    config.Metrics.ListenPort,
		})
	}
	return b, nil
}

// Start runs the suite immediately and, in continuous mode, at the configured interval.
// Start implements the cliapp.Lifecycle interface.
func (b *BrowserAcceptor) Start(ctx context.Context) error {
	// Set up panic recovery to ensure we exit with code 2 for runtime errors
	defer func() {
		if r := recover(); r != nil {
			b.config.Log.Error("Runtime error occurred", "error", r)
			os.Exit(exitcodes.RuntimeErr)
		}
	}()

	b.ctx = ctx
	b.running.Store(true)
	if b.service != nil {
		b.service.Start(ctx)
	}

	if b.config.RunOnce {
		b.config.Log.Info("Starting browser-acceptor in run-once mode")
	} else {
		b.config.Log.Info("Starting browser-acceptor in continuous mode", "interval", b.config.RunInterval)
	}

	b.scheduler.RegisterCallback(b.runTests)
	if err := b.scheduler.Start(ctx); err != nil {
		b.config.Log.Error("Runtime error running tests", "error", err)
		return err
	}

	if b.config.RunOnce {
		b.config.Log.Info("Tests completed, exiting (run-once mode)")
		result := b.Result()
		if result != nil && !result.Passed() {
			b.config.Log.Warn("Run-once test run completed with regressions, returning exit code 1")
			return NewTestFailureError(summaryLine(result))
		}
		go func() {
			b.shutdownCallback(nil)
		}()
		return nil
	}

	b.config.Log.Debug("browser-acceptor started successfully")
	return nil
}

// runTests performs one run and writes its artifacts. A run that could not
// complete is a RuntimeError; regressions are not an error here.
func (b *BrowserAcceptor) runTests(ctx context.Context, run int) error {
	b.config.Log.Info("Starting test run", "run", run)
	result, err := b.executor.RunTests(ctx)
	if result != nil {
		b.mu.Lock()
		b.result = result
		b.mu.Unlock()

		if fmtErr := b.formatter.FormatResults(result); fmtErr != nil {
			b.config.Log.Warn("Failed to print results", "error", fmtErr)
		}
		b.reporter.ReportResults(result)
		if b.service != nil {
			b.service.Healthz.SetLastRun(result.RunID, runResult(result))
		}
		if writeErr := b.writeArtifacts(result); writeErr != nil {
			metrics.RecordErrorDetails("write_artifacts", writeErr)
			err = errors.Join(err, writeErr)
		}
	}
	if err != nil {
		return NewRuntimeError(err)
	}
	b.config.Log.Info("Test run completed", "run_id", result.RunID, "passed", result.Passed())
	return nil
}

// writeArtifacts writes the results file, the run state file and the
// per-test diagnostics of a run.
func (b *BrowserAcceptor) writeArtifacts(result *runner.Result) error {
	var errs []error
	if path := b.config.WriteFullResultsTo; path != "" {
		if err := reporting.WriteFullResults(path, result.FullResults()); err != nil {
			errs = append(errs, err)
		} else if err := verifyFullResults(path, result.Stats()); err != nil {
			errs = append(errs, err)
		} else {
			b.config.Log.Info("Wrote full results", "path", path)
		}
	}
	if path := b.config.TestStateJSONPath; path != "" {
		if err := reporting.WriteRunState(path, result.State); err != nil {
			errs = append(errs, err)
		}
	}
	if b.config.LogDir != "" {
		if err := b.writeDiagnostics(result); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// verifyFullResults reads back a written results file and checks that its
// leaves agree with the run.
func verifyFullResults(path string, stats runner.ResultStats) error {
	summary, err := reporting.ExtractFile(path)
	if err != nil {
		return fmt.Errorf("failed to read back full results: %w", err)
	}
	leaves := len(summary.Successes) + len(summary.Failures) + len(summary.Skips)
	if leaves != stats.Total || len(summary.Failures) != stats.Regressions {
		return fmt.Errorf("full results at %s hold %d tests and %d failures, run had %d tests and %d regressions",
			path, leaves, len(summary.Failures), stats.Total, stats.Regressions)
	}
	return nil
}

func (b *BrowserAcceptor) writeDiagnostics(result *runner.Result) error {
	fileLogger, err := logging.NewFileLogger(b.config.LogDir, result.RunID)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	tree := reporting.NewTextSummarySink(b.config.LogDir, b.delimiter, true)
	tree.SetRunState(result.State)
	fileLogger.AddSink(tree)

	for i := range result.Records {
		if err := fileLogger.LogTestResult(&result.Records[i], result.RunID); err != nil {
			return fmt.Errorf("failed to log test result: %w", err)
		}
	}
	if err := fileLogger.LogSummary(runSummary(result), result.RunID); err != nil {
		return fmt.Errorf("failed to log summary: %w", err)
	}
	if err := fileLogger.Complete(result.RunID); err != nil {
		return err
	}
	b.config.Log.Info("Wrote test diagnostics", "dir", fileLogger.GetBaseDir())
	return nil
}

const summaryWidth = 72

// runSummary renders the summary.log box of a run.
func runSummary(result *runner.Result) string {
	stats := result.Stats()
	state := result.State
	var sb strings.Builder
	sb.WriteString(ui.BuildBoxHeader(fmt.Sprintf("Run %s", result.RunID), summaryWidth))
	lines := []string{
		fmt.Sprintf("Result:      %s", runResult(result)),
		fmt.Sprintf("Duration:    %s", reporting.FormatDuration(result.Duration)),
		fmt.Sprintf("Tests:       %d", stats.Total),
		fmt.Sprintf("Passed:      %d", stats.Passed),
		fmt.Sprintf("Flaky:       %d", stats.Flaky),
		fmt.Sprintf("Skipped:     %d", stats.Skipped),
		fmt.Sprintf("Regressions: %d", stats.Regressions),
		fmt.Sprintf("Browser starts %d, crashes %d, test runs %d, flaky runs %d",
			state.NumBrowserStarts, state.NumBrowserCrashes, state.NumTestRuns, state.NumFlakyTestRuns),
		fmt.Sprintf("Tags: %s", strings.Join(result.Tags, " ")),
	}
	for _, line := range lines {
		sb.WriteString(ui.BuildBoxLine(line, summaryWidth))
	}
	for _, rec := range result.Regressions() {
		sb.WriteString(ui.BuildBoxLine(fmt.Sprintf("✗ %s [%s]", rec.Name, rec.Actual), summaryWidth))
	}
	sb.WriteString(ui.BuildBoxFooter(summaryWidth))
	return sb.String()
}

func summaryLine(result *runner.Result) string {
	stats := result.Stats()
	return fmt.Sprintf("%d of %d tests regressed (run %s)", stats.Regressions, stats.Total, result.RunID)
}

// Result returns the most recent run result, nil before the first run completes.
func (b *BrowserAcceptor) Result() *runner.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.result
}

// Stop stops the browser-acceptor service.
// Stop implements the cliapp.Lifecycle interface.
func (b *BrowserAcceptor) Stop(ctx context.Context) error {
	b.config.Log.Info("Stopping browser-acceptor")
	if !b.running.Swap(false) {
		b.config.Log.Debug("Service already stopped, nothing to do")
		return nil
	}
	if err := b.scheduler.Stop(); err != nil {
		return err
	}
	if b.service != nil {
		b.service.Shutdown()
	}
	b.config.Log.Info("browser-acceptor stopped successfully")
	return nil
}

// Stopped returns true if the browser-acceptor service is stopped.
// Stopped implements the cliapp.Lifecycle interface.
func (b *BrowserAcceptor) Stopped() bool {
	return !b.running.Load()
}

// WaitForShutdown blocks until all goroutines have terminated.
func (b *BrowserAcceptor) WaitForShutdown(ctx context.Context) error {
	return b.scheduler.WaitForShutdown(ctx)
}
