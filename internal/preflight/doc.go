// Package preflight runs the environment checks behind 'chatsearch doctor'.
//
// The package validates:
//   - The transcript directory exists and holds transcripts
//   - The data directory is writable
//   - Disk space at the data directory (minimum 100MB)
//   - File descriptor limits (minimum 1024)
//   - The state of the on-disk index
//
// Use the Checker type to run all validations:
//
//	checker := preflight.New(preflight.WithOutput(os.Stdout))
//	results := checker.RunAll(ctx, preflight.Paths{ProjectsDir: p, DataDir: d})
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
package preflight
