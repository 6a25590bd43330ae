// Package exitcodes defines the exit codes used by browser-acceptor.
package exitcodes

// Exit code constants used by browser-acceptor in run-once mode:
//
// * Success (0): every test matched its expectations
// * TestFailure (1): at least one test regressed
// * RuntimeErr (2): configuration errors, browser start failures or panics
const (
	Success     = 0 // All tests pass
	TestFailure = 1 // Regressions
	RuntimeErr  = 2 // Runtime or configuration errors
)
