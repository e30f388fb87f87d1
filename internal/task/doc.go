// Package task implements the per-year download routine.
//
// A Task is an immutable descriptor of one year's retrieval. Running it
// is idempotent: an artifact that already exists and verifies is left
// alone without touching the network, and a failed or partial download
// never replaces a good file because data is written to a .partial
// sibling first.
package task
