// Package convert implements the conversion orchestrator: deciding which
// (size, format) combinations need work for an asset, performing
// incremental and idempotent conversion through the available encoders,
// recording per-variant metadata, and cleaning up variants of formats
// that are no longer configured.
//
// Still images are encoded through libvips; animated images and all
// video go through the ffmpeg binary. Partial failure within a pass is
// accumulated, never fatal: only a variant store write failure aborts a
// pass, since inconsistent metadata is worse than partial conversion.
package convert
