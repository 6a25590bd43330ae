package runner

import "time"

const (
	// StartBrowserRetries is the number of consecutive browser start
	// attempts made before a run is aborted.
	StartBrowserRetries = 3

	// DefaultAttemptTimeout bounds a single attempt when neither the test
	// nor the run configures a timeout.
	DefaultAttemptTimeout = 5 * time.Minute
)
