// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is resolved in three layers by [LoadConfig]: built-in
// defaults, an optional TOML file named by CONFIG_FILE, and environment
// variables on top. A key absent from the file leaves the default in place,
// and an environment variable always wins.
//
// The following environment variables are supported:
//
//   - MEDIA_DIR: Path to the source media directory (default: /media)
//   - CACHE_DIR: Path to the cache directory holding derived variants (default: /cache)
//   - DATABASE_DIR: Path to the database directory (default: /database)
//   - BASE_URL: External base URL for variant locations (default: none, filesystem paths)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable the metrics server (default: true)
//   - IMAGE_FORMATS: Comma-separated image variant formats (default: webp,avif)
//   - VIDEO_FORMATS: Comma-separated video variant formats (default: av1,webm)
//   - WEBP_QUALITY, AVIF_QUALITY: Encoder quality, 1-100
//   - AVIF_SPEED: AVIF encoder effort, 0-9
//   - AV1_CRF, WEBM_CRF: Video constant rate factor, 0-63
//   - VIDEO_CPU_USED: Video encoder cpu-used setting
//   - SIZES: Named renditions as "thumbnail=300x200,medium=800x600"
//   - WORKERS: Conversion worker count (default: derived from GOMAXPROCS)
//   - QUEUE_BUFFER: Conversion queue capacity (default: 64)
//   - FFMPEG_PATH: Path to the ffmpeg binary (default: found on PATH)
//   - RENDER_MISSING: Render absent size renditions from the original (default: false)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - CONFIG_FILE: Optional TOML configuration file applied under the environment
//
// # Directory Setup
//
// The package validates and creates required directories:
//   - Database directory: Required, must be writable
//   - Cache directory: Optional, conversion is disabled if it is not writable
//   - Media directory: Checked but not created (should be mounted)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
package startup
