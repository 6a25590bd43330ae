// Package runner executes browser tests in a structured, organized manner.
//
// The main components are:
//   - Runner: Resolves every test case of a run serially against one browser
//   - supervisor: Owns the browser for the run, restarting it after crashes
//     and retrying failed starts a bounded number of times
//   - Result: The result tree, run-state counters and per-test records of a run
//
// Retry decisions and classification are delegated to the expectations
// package; tags selecting the expectation rules come from the tags package.
package runner
