package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"

	"media-optimizer/internal/capability"
	"media-optimizer/internal/formats"
	"media-optimizer/internal/logging"
)

// FFmpegEncoder drives the ffmpeg binary for everything libvips cannot
// do: animated image conversion and AV1/WebM video transcoding. It also
// serves as the fallback still-image encoder when the linked libvips
// build lacks WebP or AVIF support.
type FFmpegEncoder struct {
	binary    string
	processes map[string]*exec.Cmd
	processMu sync.Mutex
}

// NewFFmpegEncoder creates an ffmpeg-backed encoder. The binary is
// resolved from PATH when empty.
func NewFFmpegEncoder(binary string) *FFmpegEncoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &FFmpegEncoder{
		binary:    binary,
		processes: make(map[string]*exec.Cmd),
	}
}

// Name implements Encoder.
func (e *FFmpegEncoder) Name() string {
	return capability.EncoderFFmpeg
}

// Encode implements Encoder. One ffmpeg process per call; the context
// bounds its lifetime and a timeout surfaces as an ordinary encode
// failure.
func (e *FFmpegEncoder) Encode(ctx context.Context, req Request) (int64, error) {
	args, err := e.buildArgs(req)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(req.Dest), 0o755); err != nil {
		return 0, fmt.Errorf("creating variant directory: %w", err)
	}

	logging.Debug("ffmpeg encoding %s -> %s (%s)", filepath.Base(req.Source), filepath.Base(req.Dest), req.Format)

	cmd := exec.CommandContext(ctx, e.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	e.processMu.Lock()
	e.processes[req.Dest] = cmd
	e.processMu.Unlock()

	defer func() {
		e.processMu.Lock()
		delete(e.processes, req.Dest)
		e.processMu.Unlock()
	}()

	if err := cmd.Run(); err != nil {
		// A half-written destination must not be mistaken for a variant.
		_ = os.Remove(req.Dest)
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffmpeg canceled: %w", ctx.Err())
		}
		logging.Error("ffmpeg stderr: %s", stderr.String())
		return 0, fmt.Errorf("ffmpeg failed: %w", err)
	}

	info, err := os.Stat(req.Dest)
	if err != nil {
		return 0, fmt.Errorf("ffmpeg produced no output: %w", err)
	}
	return info.Size(), nil
}

// buildArgs translates an encode request into an ffmpeg argument list.
func (e *FFmpegEncoder) buildArgs(req Request) ([]string, error) {
	args := []string{"-y", "-hide_banner", "-loglevel", "error", "-i", req.Source}

	if req.Width > 0 {
		// -2 keeps the aspect ratio with an even height, which every
		// target codec requires.
		args = append(args, "-vf", fmt.Sprintf("scale=%d:-2", req.Width))
	}

	switch req.Format {
	case formats.FormatWebP:
		args = append(args,
			"-c:v", "libwebp",
			"-quality", strconv.Itoa(req.Quality),
		)
		if req.Animated {
			args = append(args, "-loop", "0")
		} else {
			args = append(args, "-frames:v", "1")
		}
	case formats.FormatAVIF:
		args = append(args,
			"-c:v", "libaom-av1",
			"-crf", strconv.Itoa(qualityToCRF(req.Quality)),
			"-b:v", "0",
			"-cpu-used", strconv.Itoa(req.Speed),
		)
		if !req.Animated {
			args = append(args, "-still-picture", "1", "-frames:v", "1")
		}
	case formats.FormatAV1:
		args = append(args,
			"-c:v", "libaom-av1",
			"-crf", strconv.Itoa(req.CRF),
			"-b:v", "0",
			"-cpu-used", strconv.Itoa(req.Speed),
			"-row-mt", "1",
			"-c:a", "libopus",
			"-b:a", "128k",
			"-movflags", "+faststart",
		)
	case formats.FormatWebM:
		args = append(args,
			"-c:v", "libvpx-vp9",
			"-crf", strconv.Itoa(req.CRF),
			"-b:v", "0",
			"-cpu-used", strconv.Itoa(req.Speed),
			"-row-mt", "1",
			"-c:a", "libopus",
			"-b:a", "128k",
		)
	default:
		return nil, fmt.Errorf("ffmpeg encoder does not produce %s", req.Format)
	}

	return append(args, req.Dest), nil
}

// qualityToCRF maps a 1-100 quality parameter onto the inverted 0-63 CRF
// domain used by the AV1 encoder for still AVIF output.
func qualityToCRF(quality int) int {
	return formats.ClampCRF((100 - formats.ClampQuality(quality)) * 63 / 100)
}

// Cleanup stops all active encoding processes.
func (e *FFmpegEncoder) Cleanup() {
	e.processMu.Lock()
	defer e.processMu.Unlock()

	for dest, cmd := range e.processes {
		if cmd.Process != nil {
			logging.Info("Killing encoder process for: %s", dest)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill encoder process for %s: %v", dest, err)
			}
		}
	}
}
