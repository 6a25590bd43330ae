package runner

import (
	"errors"
	"fmt"
)

var (
	ErrConflictingRetryModes = errors.New("repeat and retry-limit cannot be combined")
	ErrInvalidRetryLimit     = errors.New("retry limit must not be negative")
	ErrInvalidRepeat         = errors.New("repeat count must not be negative")
	ErrInvalidTestName       = errors.New("invalid test name")
)

// BrowserStartError is returned when the browser could not be started within
// StartBrowserRetries attempts. It wraps the error of the last attempt.
type BrowserStartError struct {
	Attempts int
	Err      error
}

func (e *BrowserStartError) Error() string {
	return fmt.Sprintf("browser failed to start after %d attempts: %v", e.Attempts, e.Err)
}

// Unwrap implements the errors.Unwrap interface
func (e *BrowserStartError) Unwrap() error {
	return e.Err
}

// IsBrowserStartError checks if the error is or wraps a BrowserStartError
func IsBrowserStartError(err error) bool {
	var startErr *BrowserStartError
	return err != nil && errors.As(err, &startErr)
}
