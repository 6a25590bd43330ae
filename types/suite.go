package types

import "time"

// SuiteConfig is the on-disk description of a page test suite
type SuiteConfig struct {
	Name          string       `yaml:"name"`
	Description   string       `yaml:"description,omitempty"`
	PathDelimiter string       `yaml:"path_delimiter,omitempty"`
	BaseURL       string       `yaml:"base_url,omitempty"`
	Tests         []TestConfig `yaml:"tests"`
}

// TestConfig represents one page test in a suite
type TestConfig struct {
	Name             string         `yaml:"name"`
	URL              string         `yaml:"url"`
	ResultExpression string         `yaml:"result_expression,omitempty"`
	Expected         ExpectationSet `yaml:"expected,omitempty"`
	RetryOnFailure   bool           `yaml:"retry_on_failure,omitempty"`
	RetryLimit       *int           `yaml:"retry_limit,omitempty"`
	Timeout          *time.Duration `yaml:"timeout,omitempty"`
}
