// Package progress provides live progress reporting for bulk fetch runs.
//
// The reporter tracks year-task counts with atomic counters and redraws
// a single status line on an interval, so worker goroutines only pay for
// an atomic increment.
package progress
