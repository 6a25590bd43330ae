package registry

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar"
	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/infra/browser-acceptor/browser"
	"github.com/ethereum-optimism/infra/browser-acceptor/types"
)

const (
	// FilterSeparator separates the globs of a test filter.
	FilterSeparator = "::"
	// DefaultResultExpression is polled when a test does not name its own.
	DefaultResultExpression = "window.testResult"
)

// Registry manages the test cases of a suite
type Registry struct {
	config Config
	suite  *types.SuiteConfig
	cases  []types.TestCase
	mu     sync.RWMutex
}

// Config contains registry configuration
type Config struct {
	Log            log.Logger
	SuiteFile      string
	TestFilter     string // "::"-separated globs matched against test names
	TestNamePrefix string // Only tests under this prefix are loaded, with the prefix removed
	DefaultTimeout time.Duration
	PollInterval   time.Duration
}

// NewRegistry creates a new registry instance
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.SuiteFile == "" {
		return nil, fmt.Errorf("suite file is required")
	}
	if cfg.Log == nil {
		cfg.Log = log.New()
		cfg.Log.Error("No logger provided, using default")
	}

	r := &Registry{
		config: cfg,
	}
	if err := r.loadSuite(cfg.SuiteFile); err != nil {
		return nil, fmt.Errorf("failed to load suite: %w", err)
	}

	cfg.Log.Debug("Registry loaded", "suite", r.suite.Name, "len(tests)", len(r.cases))
	return r, nil
}

func (r *Registry) loadSuite(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	suite, err := loadConfig(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	filter, err := ParseFilter(r.config.TestFilter)
	if err != nil {
		return err
	}
	cases, err := r.buildTestCases(suite, filter)
	if err != nil {
		return fmt.Errorf("failed to build tests: %w", err)
	}

	r.suite = suite
	r.cases = cases
	return nil
}

// GetTestCases returns the loaded test cases in suite order
func (r *Registry) GetTestCases() []types.TestCase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cases
}

// GetSuite returns the parsed suite configuration
func (r *Registry) GetSuite() *types.SuiteConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.suite
}

// GetConfig returns the registry configuration
func (r *Registry) GetConfig() Config {
	return r.config
}

// loadConfig loads a suite config from a file
func loadConfig(path string) (*types.SuiteConfig, error) {
	log.Debug("Reading suite config file", "path", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg types.SuiteConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return &cfg, nil
}

func (r *Registry) buildTestCases(suite *types.SuiteConfig, filter Filter) ([]types.TestCase, error) {
	base, err := parseBaseURL(suite.BaseURL)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(suite.Tests))
	var cases []types.TestCase
	for _, cfg := range suite.Tests {
		if cfg.Name == "" {
			return nil, fmt.Errorf("test with url %q has no name", cfg.URL)
		}
		if cfg.URL == "" {
			return nil, fmt.Errorf("test %s has no url", cfg.Name)
		}
		if seen[cfg.Name] {
			return nil, fmt.Errorf("duplicate test %s", cfg.Name)
		}
		seen[cfg.Name] = true

		name, ok := strings.CutPrefix(cfg.Name, r.config.TestNamePrefix)
		if !ok || name == "" {
			continue
		}
		if !filter.Match(name, suite.PathDelimiter) {
			continue
		}

		target, err := resolveURL(base, cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("test %s: %w", cfg.Name, err)
		}
		expression := cfg.ResultExpression
		if expression == "" {
			expression = DefaultResultExpression
		}
		timeout := r.config.DefaultTimeout
		if cfg.Timeout != nil {
			timeout = *cfg.Timeout
		}

		cases = append(cases, types.TestCase{
			Name:           name,
			Expected:       cfg.Expected,
			RetryOnFailure: cfg.RetryOnFailure,
			RetryLimit:     cfg.RetryLimit,
			Timeout:        timeout,
			Run:            browser.PageTest(target, expression, r.config.PollInterval),
		})
	}
	return cases, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, nil
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", raw, err)
	}
	return base, nil
}

func resolveURL(base *url.URL, raw string) (string, error) {
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if base == nil || ref.IsAbs() {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}

// Filter selects tests by name. An empty filter matches everything. Globs
// are matched per name segment: "*" stays within one segment and "**" spans
// segments, whatever the suite's path delimiter.
type Filter []string

// literalSlash stands in for a "/" inside a segment when the suite uses
// another delimiter.
const literalSlash = "\u2215"

// ParseFilter splits a "::"-separated list of globs and checks each pattern.
func ParseFilter(raw string) (Filter, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var f Filter
	for _, pattern := range strings.Split(raw, FilterSeparator) {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if _, err := doublestar.Match(pattern, pattern); err != nil {
			return nil, fmt.Errorf("invalid test filter %q: %w", pattern, err)
		}
		f = append(f, pattern)
	}
	return f, nil
}

// Match reports whether name matches any pattern of the filter, splitting
// both on delimiter.
func (f Filter) Match(name, delimiter string) bool {
	if len(f) == 0 {
		return true
	}
	name = globPath(name, delimiter)
	for _, pattern := range f {
		if ok, _ := doublestar.Match(globPath(pattern, delimiter), name); ok {
			return true
		}
	}
	return false
}

// globPath rewrites s so that delimiter becomes the "/" separator doublestar
// matches segments on.
func globPath(s, delimiter string) string {
	if delimiter == "" || delimiter == "/" {
		return s
	}
	s = strings.ReplaceAll(s, "/", literalSlash)
	return strings.ReplaceAll(s, delimiter, "/")
}
