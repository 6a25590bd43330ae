package flags

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	opservice "github.com/ethereum-optimism/optimism/op-service"
	opflags "github.com/ethereum-optimism/optimism/op-service/flags"
	oplog "github.com/ethereum-optimism/optimism/op-service/log"
	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"
)

const EnvVarPrefix = "BROWSER_ACCEPTOR"

// BrowserChannel is the release channel of the browser under test, used as a tag.
type BrowserChannel string

const (
	ChannelRelease BrowserChannel = "release"
	ChannelBeta    BrowserChannel = "beta"
	ChannelDev     BrowserChannel = "dev"
	ChannelCanary  BrowserChannel = "canary"
	ChannelDebug   BrowserChannel = "debug"
)

func (c BrowserChannel) String() string {
	return string(c)
}

func (c BrowserChannel) IsValid() bool {
	return slices.Contains(ValidBrowserChannels(), c)
}

func ValidBrowserChannels() []BrowserChannel {
	return []BrowserChannel{ChannelRelease, ChannelBeta, ChannelDev, ChannelCanary, ChannelDebug}
}

func validateBrowserChannel(value string) error {
	if BrowserChannel(value).IsValid() {
		return nil
	}
	valid := make([]string, 0, len(ValidBrowserChannels()))
	for _, c := range ValidBrowserChannels() {
		valid = append(valid, c.String())
	}
	return fmt.Errorf("browser-channel must be one of: %s", strings.Join(valid, ", "))
}

var (
	Suite = &cli.StringFlag{
		Name:     "suite",
		Value:    "",
		Required: true,
		EnvVars:  opservice.PrefixEnvVar(EnvVarPrefix, "SUITE"),
		Usage:    "Path to the suite file listing the page tests to run (eg. 'webgl.yaml')",
	}
	Expectations = &cli.StringFlag{
		Name:    "expectations",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "EXPECTATIONS"),
		Usage:   "Path to a test expectations file. Tests without a matching rule are expected to pass.",
	}
	BrowserBin = &cli.StringFlag{
		Name:    "browser-bin",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "BROWSER_BIN"),
		Usage:   "Path to the browser binary. Defaults to a system browser, downloading one if none is found.",
	}
	BrowserChannelFlag = &cli.StringFlag{
		Name:    "browser-channel",
		Value:   ChannelRelease.String(),
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "BROWSER_CHANNEL"),
		Usage:   "Release channel of the browser under test (release, beta, dev, canary, debug)",
		Action: func(ctx *cli.Context, value string) error {
			return validateBrowserChannel(value)
		},
	}
	Headless = &cli.BoolFlag{
		Name:    "headless",
		Value:   true,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEADLESS"),
		Usage:   "Run the browser without a window",
	}
	DownloadBrowser = &cli.BoolFlag{
		Name:    "download-browser",
		Value:   true,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "DOWNLOAD_BROWSER"),
		Usage:   "Download a browser when --browser-bin is unset and none is installed",
	}
	ExtraBrowserArgs = &cli.StringFlag{
		Name:    "extra-browser-args",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "EXTRA_BROWSER_ARGS"),
		Usage:   "Shell-quoted arguments passed to the browser (eg. '--use-gl=swiftshader --use-vulkan')",
	}
	Platform = &cli.StringFlag{
		Name:    "platform",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PLATFORM"),
		Usage:   "Override the detected platform tag (win, mac, linux, ...)",
	}
	PlatformVersion = &cli.StringFlag{
		Name:    "platform-version",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "PLATFORM_VERSION"),
		Usage:   "Override the detected platform version tag (win10, sonoma, ...)",
	}
	RetryLimit = &cli.IntFlag{
		Name:    "retry-limit",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RETRY_LIMIT"),
		Usage:   "Number of times a test is retried until it produces an expected outcome",
	}
	RetryOnlyRetryOnFailure = &cli.BoolFlag{
		Name:    "retry-only-retry-on-failure",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RETRY_ONLY_RETRY_ON_FAILURE"),
		Usage:   "Only retry attempts that failed or crashed",
	}
	RetryOnlyRetryOnFailureTests = &cli.BoolFlag{
		Name:    "retry-only-retry-on-failure-tests",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RETRY_ONLY_RETRY_ON_FAILURE_TESTS"),
		Usage:   "Only retry tests marked RetryOnFailure in the expectations",
	}
	Repeat = &cli.IntFlag{
		Name:    "repeat",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "REPEAT"),
		Usage:   "Run every test this many extra times regardless of outcome. Conflicts with --retry-limit.",
	}
	TestFilter = &cli.StringFlag{
		Name:    "test-filter",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TEST_FILTER"),
		Usage:   "'::'-separated globs selecting the tests to run. '*' matches within one name segment and '**' across segments; expectation file globs match by prefix instead",
	}
	TestNamePrefix = &cli.StringFlag{
		Name:    "test-name-prefix",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TEST_NAME_PREFIX"),
		Usage:   "Only run tests under this prefix and strip it from reported names",
	}
	All = &cli.BoolFlag{
		Name:    "all",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ALL"),
		Usage:   "Also run tests that are expected to be skipped",
	}
	ASAN = &cli.BoolFlag{
		Name:    "asan",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ASAN"),
		Usage:   "The browser under test is an AddressSanitizer build",
	}
	WebGLVersion = &cli.StringFlag{
		Name:    "webgl-version",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WEBGL_VERSION"),
		Usage:   "WebGL conformance version under test (eg. '2.0.0'), adds a webgl-version-N tag",
	}
	AttemptTimeout = &cli.DurationFlag{
		Name:    "attempt-timeout",
		Value:   5 * time.Minute,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "ATTEMPT_TIMEOUT"),
		Usage:   "Timeout of a single attempt when the suite sets none",
	}
	PollInterval = &cli.DurationFlag{
		Name:    "poll-interval",
		Value:   100 * time.Millisecond,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "POLL_INTERVAL"),
		Usage:   "Interval at which a page's result expression is evaluated",
	}
	RestartBrowserOnFailure = &cli.BoolFlag{
		Name:    "restart-browser-on-failure",
		Value:   true,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RESTART_BROWSER_ON_FAILURE"),
		Usage:   "Restart the browser after an attempt with an unexpected outcome",
	}
	WriteFullResultsTo = &cli.StringFlag{
		Name:    "write-full-results-to",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "WRITE_FULL_RESULTS_TO"),
		Usage:   "Path of the JSON results file written after each run",
	}
	TestStateJSONPath = &cli.StringFlag{
		Name:    "test-state-json-path",
		Value:   "",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "TEST_STATE_JSON_PATH"),
		Usage:   "Path of the JSON file receiving the browser start, crash and run counters",
	}
	LogDir = &cli.StringFlag{
		Name:    "logdir",
		Value:   "logs",
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "LOGDIR"),
		Usage:   "Directory to store per-test diagnostics. Each run gets a subdirectory named by its run ID.",
	}
	RunInterval = &cli.DurationFlag{
		Name:    "run-interval",
		Value:   0,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "RUN_INTERVAL"),
		Usage:   "Interval between test runs (e.g. '1h', '30m'). Set to 0 or omit for run-once mode.",
	}
	Serve = &cli.BoolFlag{
		Name:    "serve",
		Value:   false,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "SERVE"),
		Usage:   "Expose the healthz endpoint (and metrics, when enabled) while running",
	}
	HealthzPort = &cli.IntFlag{
		Name:    "healthz-port",
		Value:   8080,
		EnvVars: opservice.PrefixEnvVar(EnvVarPrefix, "HEALTHZ_PORT"),
		Usage:   "Port of the healthz server",
	}
)

var requiredFlags = []cli.Flag{
	Suite,
}

var optionalFlags = []cli.Flag{
	Expectations,
	BrowserBin,
	BrowserChannelFlag,
	Headless,
	DownloadBrowser,
	ExtraBrowserArgs,
	Platform,
	PlatformVersion,
	RetryLimit,
	RetryOnlyRetryOnFailure,
	RetryOnlyRetryOnFailureTests,
	Repeat,
	TestFilter,
	TestNamePrefix,
	All,
	ASAN,
	WebGLVersion,
	AttemptTimeout,
	PollInterval,
	RestartBrowserOnFailure,
	WriteFullResultsTo,
	TestStateJSONPath,
	LogDir,
	RunInterval,
	Serve,
	HealthzPort,
}
var Flags []cli.Flag

func init() {
	optionalFlags = append(optionalFlags, oplog.CLIFlags(EnvVarPrefix)...)
	optionalFlags = append(optionalFlags, opmetrics.CLIFlags(EnvVarPrefix)...)

	Flags = append(requiredFlags, optionalFlags...)
}

func CheckRequired(ctx *cli.Context) error {
	for _, f := range requiredFlags {
		if !ctx.IsSet(f.Names()[0]) {
			return fmt.Errorf("flag %s is required", f.Names()[0])
		}
	}
	return opflags.CheckRequiredXor(ctx)
}
