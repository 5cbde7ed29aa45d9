package capability

import (
	"context"
	"os/exec"

	"media-optimizer/internal/formats"
	"media-optimizer/internal/logging"
	"media-optimizer/internal/metrics"
)

// Encoder identifiers advertised in the capability map.
const (
	EncoderVips   = "vips"
	EncoderFFmpeg = "ffmpeg"
)

// Capabilities describes one encoder's availability and the target
// formats it can produce.
type Capabilities struct {
	Available bool
	Supports  map[formats.Format]bool
}

// Map maps encoder identifiers to their probed capabilities.
type Map map[string]Capabilities

// Detector probes the installed encoders. The zero value is not usable;
// construct with NewDetector. Probe hooks are injectable for tests.
type Detector struct {
	lookPath   func(file string) (string, error)
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, error)
	probeVips  func() Capabilities
}

// NewDetector creates a Detector probing the real system.
func NewDetector() *Detector {
	return &Detector{
		lookPath: exec.LookPath,
		runCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
		probeVips: probeVips,
	}
}

// Probe inspects the system and returns the capability map. It never
// returns an error: an encoder that cannot be probed is simply reported
// as unavailable.
func (d *Detector) Probe(ctx context.Context) Map {
	metrics.ProbeRunsTotal.Inc()

	m := Map{
		EncoderVips:   d.probeVips(),
		EncoderFFmpeg: d.probeFFmpeg(ctx),
	}

	for name, caps := range m {
		available := 0.0
		if caps.Available {
			available = 1.0
		}
		metrics.EncoderAvailable.WithLabelValues(name).Set(available)
		logging.Debug("Capability probe: %s available=%v supports=%v", name, caps.Available, caps.Supports)
	}

	return m
}

// Best returns the identifier of the preferred encoder for a format.
// For image formats the richer vips encoder wins over ffmpeg; video
// formats are ffmpeg-only. The second return value is false when no
// installed encoder supports the format, in which case the format is
// infeasible for this run and must not be attempted.
func (m Map) Best(f formats.Format) (string, bool) {
	if f.Kind() == formats.KindImage {
		if m[EncoderVips].Supports[f] {
			return EncoderVips, true
		}
		if m[EncoderFFmpeg].Supports[f] {
			return EncoderFFmpeg, true
		}
		return "", false
	}
	if m[EncoderFFmpeg].Supports[f] {
		return EncoderFFmpeg, true
	}
	return "", false
}

// Feasible filters the configured formats down to those some installed
// encoder can produce, preserving the configured order.
func (m Map) Feasible(configured []formats.Format) []formats.Format {
	var out []formats.Format
	for _, f := range configured {
		if _, ok := m.Best(f); ok {
			out = append(out, f)
		} else {
			logging.Debug("Format %s infeasible: no encoder supports it", f)
		}
	}
	return out
}
