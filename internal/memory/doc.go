// Package memory provides memory management utilities for controlling Go's
// runtime memory usage in containerized environments.
//
// Encoding work allocates heavily outside the Go heap: libvips holds pixel
// buffers in CGO memory and ffmpeg runs as a child process. GOMEMLIMIT must
// therefore be set below the container limit, leaving headroom for both.
//
// [ConfigureFromEnv] sets GOMEMLIMIT early in main from the following
// environment variables:
//
//   - GOMEMLIMIT: Standard Go environment variable. If set, takes precedence.
//   - MEMORY_LIMIT: Container memory limit in bytes, typically injected via
//     the Kubernetes Downward API (resourceFieldRef: limits.memory).
//   - MEMORY_RATIO: Share of MEMORY_LIMIT given to the Go heap as a decimal
//     between 0.0 and 1.0. Default is 0.85. Lower it when many concurrent
//     ffmpeg processes are expected.
//
// [Monitor] samples heap usage on an interval and provides backpressure to
// the conversion workers: above the critical water mark, WaitIfPaused blocks
// new conversions until usage drops back below the high water mark.
package memory
