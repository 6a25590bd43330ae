package bat

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ethereum-optimism/infra/browser-acceptor/flags"
	"github.com/ethereum-optimism/infra/browser-acceptor/runner"
)

// parseConfig runs NewConfig against a cli context built from args.
func parseConfig(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var (
		cfg *Config
		err error
	)
	app := &cli.App{
		Flags: flags.Flags,
		Action: func(ctx *cli.Context) error {
			cfg, err = NewConfig(ctx, log.New())
			return nil
		},
	}
	require.NoError(t, app.Run(append([]string{"browser-acceptor"}, args...)))
	return cfg, err
}

func TestNewConfig(t *testing.T) {
	dir := t.TempDir()
	suite := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(suite, []byte("tests: []\n"), 0644))

	t.Run("defaults", func(t *testing.T) {
		cfg, err := parseConfig(t, "--suite", suite)
		require.NoError(t, err)
		assert.Equal(t, suite, cfg.SuiteFile)
		assert.True(t, cfg.RunOnce)
		assert.True(t, cfg.Headless)
		assert.True(t, cfg.RestartBrowserOnFailure)
		assert.Equal(t, "release", cfg.BrowserChannel)
		assert.Equal(t, 5*time.Minute, cfg.AttemptTimeout)
		assert.True(t, filepath.IsAbs(cfg.LogDir))
		assert.Empty(t, cfg.ExtraBrowserArgs)
	})

	t.Run("retry and browser settings", func(t *testing.T) {
		cfg, err := parseConfig(t,
			"--suite", suite,
			"--retry-limit", "3",
			"--retry-only-retry-on-failure",
			"--extra-browser-args", `--use-gl=swiftshader "--enable-features=A,B"`,
			"--test-filter", "conformance/**::extensions/*",
			"--run-interval", "1h",
			"--expectations", "exp.txt",
		)
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.RetryLimit)
		assert.True(t, cfg.RetryOnlyRetryOnFailure)
		assert.Equal(t, []string{"--use-gl=swiftshader", "--enable-features=A,B"}, cfg.ExtraBrowserArgs)
		assert.False(t, cfg.RunOnce)
		assert.Equal(t, time.Hour, cfg.RunInterval)
		assert.True(t, filepath.IsAbs(cfg.ExpectationsFile))
	})

	t.Run("repeat forces retry limit to zero", func(t *testing.T) {
		cfg, err := parseConfig(t, "--suite", suite, "--repeat", "4")
		require.NoError(t, err)
		assert.Equal(t, 4, cfg.Repeat)
		assert.Equal(t, 0, cfg.RetryLimit)
	})

	t.Run("repeat with explicit zero retry limit", func(t *testing.T) {
		cfg, err := parseConfig(t, "--suite", suite, "--repeat", "4", "--retry-limit", "0")
		require.NoError(t, err)
		assert.Equal(t, 0, cfg.RetryLimit)
	})

	errorCases := []struct {
		name string
		args []string
		is   error
	}{
		{"repeat with retry limit", []string{"--repeat", "2", "--retry-limit", "1"}, runner.ErrConflictingRetryModes},
		{"negative retry limit", []string{"--retry-limit", "-1"}, runner.ErrInvalidRetryLimit},
		{"negative repeat", []string{"--repeat", "-1"}, runner.ErrInvalidRepeat},
		{"unbalanced quotes", []string{"--extra-browser-args", `"--use-gl`}, nil},
		{"bad filter", []string{"--test-filter", "conformance/[a"}, nil},
		{"negative timeout", []string{"--attempt-timeout", "-1s"}, nil},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseConfig(t, append([]string{"--suite", suite}, tc.args...)...)
			require.Error(t, err)
			assert.True(t, IsConfigurationError(err))
			if tc.is != nil {
				assert.ErrorIs(t, err, tc.is)
			}
		})
	}
}
