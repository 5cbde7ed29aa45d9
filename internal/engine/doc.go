// Package engine is the facade over conversion and selection: it routes
// an asset to the right conversion pass for its media kind and exposes
// the read-side selection operations plus variant lifecycle management.
package engine
