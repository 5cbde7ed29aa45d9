// Package capability probes which encoders are installed and which target
// formats each can produce.
//
// Absence of an encoder is a normal, silent outcome rather than an error:
// a probe never panics and never fails, it just reports smaller
// capabilities. Results are cheap to recompute and binaries can disappear
// between runs, so callers re-probe per conversion pass instead of caching
// the map indefinitely.
package capability
