// Package classify turns raw buildbot output into normalized results.
//
// Two entry points exist. Summary reads a build's HTML summary page and yields
// the build-level result, absolute number and revision. Log reads the plain
// text of the test step and yields the result, a short message and the failed
// tests, trying in order:
//
//  1. the "N tests failed:" banner printed by the test runner
//  2. resource exhaustion errors (disk full, out of memory)
//  3. abnormal termination markers, scanned from the end of the log
//  4. a generic "something crashed" exception
//
// Both functions are pure and safe for concurrent use.
package classify
