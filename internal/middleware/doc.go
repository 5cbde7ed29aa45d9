// Package middleware provides HTTP middleware for the variant API.
//
// It includes:
//   - Access logging with log injection protection
//   - Prometheus request metrics with bounded path cardinality
//   - Response compression (gzip) for JSON payloads
package middleware
