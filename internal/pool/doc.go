// Package pool dispatches per-year tasks across a bounded worker pool.
//
// Workers receive years from a channel and results are collected on a
// completion queue in whatever order tasks finish. A failing or
// panicking task is logged and counted, never propagated: sibling years
// keep running and the pool always drains to a Summary.
package pool
