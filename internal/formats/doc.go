// Package formats defines the target encodings the optimizer can produce
// (WebP and AVIF for images, AV1 and WebM for video), the pseudo-format
// "original" used for savings accounting, and the clamping rules for
// encoder quality, CRF, and speed parameters.
package formats
