package capability

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"time"

	"media-optimizer/internal/formats"
	"media-optimizer/internal/logging"
)

const probeTimeout = 10 * time.Second

// ffmpegCodecSupport maps ffmpeg encoder names to the target formats they
// unlock. AVIF and AV1 share the AV1 bitstream encoders; WebM rides on
// VP9.
var ffmpegCodecSupport = map[string][]formats.Format{
	"libwebp":      {formats.FormatWebP},
	"libwebp_anim": {formats.FormatWebP},
	"libaom-av1":   {formats.FormatAVIF, formats.FormatAV1},
	"libsvtav1":    {formats.FormatAVIF, formats.FormatAV1},
	"libvpx-vp9":   {formats.FormatWebM},
}

// probeFFmpeg locates the ffmpeg binary and parses its encoder list.
// Any failure along the way degrades to "unavailable".
func (d *Detector) probeFFmpeg(ctx context.Context) Capabilities {
	caps := Capabilities{Supports: make(map[formats.Format]bool)}

	path, err := d.lookPath("ffmpeg")
	if err != nil {
		logging.Debug("ffmpeg not found in PATH: %v", err)
		return caps
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := d.runCommand(ctx, path, "-hide_banner", "-encoders")
	if err != nil {
		logging.Warn("ffmpeg encoder probe failed: %v", err)
		return caps
	}

	caps.Available = true
	for name, supported := range parseEncoderList(out) {
		if !supported {
			continue
		}
		for _, f := range ffmpegCodecSupport[name] {
			caps.Supports[f] = true
		}
	}

	return caps
}

// parseEncoderList extracts encoder names from `ffmpeg -encoders` output.
// Lines look like:
//
//	V....D libaom-av1           libaom AV1 (codec av1)
//
// The header section is separated by a "------" line; everything before
// it is ignored.
func parseEncoderList(out []byte) map[string]bool {
	encoders := make(map[string]bool)
	inList := false

	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := scanner.Text()
		if !inList {
			if strings.Contains(line, "------") {
				inList = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		encoders[fields[1]] = true
	}

	return encoders
}
