// Package main provides the entry point for the Media Optimizer service.
//
// Media Optimizer derives modern-format variants (WebP and AVIF for images,
// AV1 and WebM for video) from original media files, tracks them in a SQLite
// variant store, and answers selection queries with the best available
// format for delivery.
//
// # Application Lifecycle
//
// The application follows a structured initialization sequence:
//
//  1. GOMEMLIMIT configuration from the container memory limit
//  2. Configuration loading (defaults, optional TOML file, environment)
//  3. Variant store initialization (SQLite, WAL mode)
//  4. Encoder initialization and capability probing (libvips, ffmpeg)
//  5. Conversion queue startup with CPU-derived worker count
//  6. HTTP server startup (API plus a separate metrics listener)
//
// Shutdown is graceful: SIGINT/SIGTERM drains the conversion queue, stops
// both HTTP servers, terminates any running ffmpeg processes, and closes
// the store.
//
// # Configuration
//
// See the internal/startup package for the full list of environment
// variables and the optional CONFIG_FILE TOML overlay.
package main
