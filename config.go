package bat

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/kballard/go-shellquote"
	"github.com/urfave/cli/v2"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/browser-acceptor/browser"
	"github.com/ethereum-optimism/infra/browser-acceptor/flags"
	"github.com/ethereum-optimism/infra/browser-acceptor/registry"
	"github.com/ethereum-optimism/infra/browser-acceptor/runner"
)

// Config holds the application configuration
type Config struct {
	SuiteFile        string
	ExpectationsFile string // Optional typ expectations file

	BrowserBin       string
	DownloadBrowser  bool
	BrowserChannel   string
	Headless         bool
	ExtraBrowserArgs []string
	Platform         string // Overrides the detected platform tag
	PlatformVersion  string // Overrides the detected platform version tag
	ASAN             bool
	WebGLVersion     string

	RetryLimit                   int
	RetryOnlyRetryOnFailure      bool
	RetryOnlyRetryOnFailureTests bool
	Repeat                       int
	TestFilter                   string
	TestNamePrefix               string
	All                          bool
	AttemptTimeout               time.Duration
	PollInterval                 time.Duration
	RestartBrowserOnFailure      bool

	WriteFullResultsTo string        // JSON results file, written after each run when set
	TestStateJSONPath  string        // JSON run counters file, written after each run when set
	LogDir             string        // Directory to store per-test diagnostics
	RunInterval        time.Duration // Interval between test runs
	RunOnce            bool          // Indicates if the service should exit after one test run

	Serve       bool
	HealthzPort int
	Metrics     opmetrics.CLIConfig

	// Browser replaces the go-rod controller, mainly for tests.
	Browser browser.Controller

	Log log.Logger
}

// NewConfig creates a new Config from cli context
func NewConfig(ctx *cli.Context, log log.Logger) (*Config, error) {
	if err := flags.CheckRequired(ctx); err != nil {
		return nil, NewConfigurationError(fmt.Errorf("missing required flags: %w", err))
	}

	suite, err := filepath.Abs(ctx.String(flags.Suite.Name))
	if err != nil {
		return nil, NewConfigurationError(fmt.Errorf("failed to resolve absolute path for suite '%s': %w", ctx.String(flags.Suite.Name), err))
	}

	var expectationsFile string
	if p := ctx.String(flags.Expectations.Name); p != "" {
		expectationsFile, err = filepath.Abs(p)
		if err != nil {
			return nil, NewConfigurationError(fmt.Errorf("failed to resolve absolute path for expectations '%s': %w", p, err))
		}
	}

	extraArgs, err := shellquote.Split(ctx.String(flags.ExtraBrowserArgs.Name))
	if err != nil {
		return nil, NewConfigurationError(fmt.Errorf("invalid --%s: %w", flags.ExtraBrowserArgs.Name, err))
	}

	retryLimit := ctx.Int(flags.RetryLimit.Name)
	repeat := ctx.Int(flags.Repeat.Name)
	if retryLimit < 0 {
		return nil, NewConfigurationError(fmt.Errorf("%w: %d", runner.ErrInvalidRetryLimit, retryLimit))
	}
	if repeat < 0 {
		return nil, NewConfigurationError(fmt.Errorf("%w: %d", runner.ErrInvalidRepeat, repeat))
	}
	if repeat > 0 {
		if ctx.IsSet(flags.RetryLimit.Name) && retryLimit > 0 {
			return nil, NewConfigurationError(fmt.Errorf("%w: --%s=%d --%s=%d",
				runner.ErrConflictingRetryModes, flags.Repeat.Name, repeat, flags.RetryLimit.Name, retryLimit))
		}
		retryLimit = 0
	}

	if _, err := registry.ParseFilter(ctx.String(flags.TestFilter.Name)); err != nil {
		return nil, NewConfigurationError(err)
	}

	logDir := ctx.String(flags.LogDir.Name)
	if logDir == "" {
		logDir = "logs"
	}
	logDir, err = filepath.Abs(logDir)
	if err != nil {
		return nil, NewConfigurationError(fmt.Errorf("failed to resolve absolute path for log directory '%s': %w", logDir, err))
	}

	metricsCfg := opmetrics.ReadCLIConfig(ctx)
	if err := metricsCfg.Check(); err != nil {
		return nil, NewConfigurationError(fmt.Errorf("invalid metrics config: %w", err))
	}

	attemptTimeout := ctx.Duration(flags.AttemptTimeout.Name)
	if attemptTimeout < 0 {
		return nil, NewConfigurationError(errors.New("attempt timeout must not be negative"))
	}

	runInterval := ctx.Duration(flags.RunInterval.Name)
	return &Config{
		SuiteFile:                    suite,
		ExpectationsFile:             expectationsFile,
		BrowserBin:                   ctx.String(flags.BrowserBin.Name),
		DownloadBrowser:              ctx.Bool(flags.DownloadBrowser.Name),
		BrowserChannel:               ctx.String(flags.BrowserChannelFlag.Name),
		Headless:                     ctx.Bool(flags.Headless.Name),
		ExtraBrowserArgs:             extraArgs,
		Platform:                     ctx.String(flags.Platform.Name),
		PlatformVersion:              ctx.String(flags.PlatformVersion.Name),
		ASAN:                         ctx.Bool(flags.ASAN.Name),
		WebGLVersion:                 ctx.String(flags.WebGLVersion.Name),
		RetryLimit:                   retryLimit,
		RetryOnlyRetryOnFailure:      ctx.Bool(flags.RetryOnlyRetryOnFailure.Name),
		RetryOnlyRetryOnFailureTests: ctx.Bool(flags.RetryOnlyRetryOnFailureTests.Name),
		Repeat:                       repeat,
		TestFilter:                   ctx.String(flags.TestFilter.Name),
		TestNamePrefix:               ctx.String(flags.TestNamePrefix.Name),
		All:                          ctx.Bool(flags.All.Name),
		AttemptTimeout:               attemptTimeout,
		PollInterval:                 ctx.Duration(flags.PollInterval.Name),
		RestartBrowserOnFailure:      ctx.Bool(flags.RestartBrowserOnFailure.Name),
		WriteFullResultsTo:           ctx.String(flags.WriteFullResultsTo.Name),
		TestStateJSONPath:            ctx.String(flags.TestStateJSONPath.Name),
		LogDir:                       logDir,
		RunInterval:                  runInterval,
		RunOnce:                      runInterval == 0,
		Serve:                        ctx.Bool(flags.Serve.Name),
		HealthzPort:                  ctx.Int(flags.HealthzPort.Name),
		Metrics:                      metricsCfg,
		Log:                          log,
	}, nil
}
