// Package issues matches failed builds against known-issue rules.
//
// A rule names an issue id and up to three regular expressions over the
// builder name, a failed test and the build message. Empty patterns match
// anything. Rules live in the cache so that rules added from the command
// line survive between runs; rules from the configuration file are seeded
// into the cache on startup.
package issues
