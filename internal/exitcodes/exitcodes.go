// Package exitcodes defines the exit codes of unitrun.
//
// * Success (0): every executed test passed and the run was not interrupted
// * TestFailure (1): a test failed, the run was interrupted or could not complete
// * UsageError (2): malformed command line or configuration; no test was run
package exitcodes

const (
	Success     = 0 // All tests pass
	TestFailure = 1 // Test failures or interruption
	UsageError  = 2 // Bad arguments or configuration
)
