/*
Package filesystem provides resilient filesystem operations with automatic
retry logic for NFS stale file handle errors.

Source media and the variant cache are commonly NFS mounts, where ESTALE
(stale file handle, errno 116) surfaces during server-side changes or
network hiccups. This package wraps os.Stat, os.Open, and os.Remove with
exponential backoff retries for exactly that error class; every other error
fails immediately.

	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())

Defaults are 3 retries with 50ms initial backoff capped at 500ms.

Retry metrics are labeled by operation and by volume. Volumes are resolved
with longest-prefix matching against the mounts registered at startup via
[SetDefaultVolumeResolver]; unmatched paths are labeled "unknown".
*/
package filesystem
