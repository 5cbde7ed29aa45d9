// Package dispatch decides when conversion passes run. Batch coalesces
// the repeated triggers of a single request into one pass per asset,
// flushed at end of request; Queue hands long-running video work to a
// background worker pool with duplicate-enqueue suppression.
package dispatch
