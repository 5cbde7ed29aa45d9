package convert

import "media-optimizer/internal/formats"

// Encoder parameter domains. Speed-style parameters have per-encoder
// upper bounds; quality and CRF domains are shared.
const (
	webpEffort     = 4 // libwebp compression effort, encoder default
	avifEffortMax  = 9 // libheif/aom encoder effort
	ffmpegSpeedMax = 8 // aom/vpx cpu-used
)

// Options carries the configured target formats and per-format encoder
// parameters for conversion passes.
type Options struct {
	ImageFormats []formats.Format
	VideoFormats []formats.Format

	WebPQuality int
	AVIFQuality int
	AVIFSpeed   int

	AV1CRF       int
	WebMCRF      int
	VideoCPUUsed int
}

// DefaultOptions returns the conversion defaults: both image formats,
// both video formats, and encoder parameters balanced between size and
// speed.
func DefaultOptions() Options {
	return Options{
		ImageFormats: []formats.Format{formats.FormatWebP, formats.FormatAVIF},
		VideoFormats: []formats.Format{formats.FormatAV1, formats.FormatWebM},
		WebPQuality:  75,
		AVIFQuality:  55,
		AVIFSpeed:    6,
		AV1CRF:       30,
		WebMCRF:      32,
		VideoCPUUsed: 4,
	}
}

// FormatsFor returns the configured formats for a media kind, in
// configured order. Conversion processes formats in this order; priority
// only matters at selection time.
func (o Options) FormatsFor(kind formats.Kind) []formats.Format {
	if kind == formats.KindVideo {
		return o.VideoFormats
	}
	return o.ImageFormats
}

// request builds the encode request parameters for one format, clamping
// every numeric parameter to its encoder's valid domain. Out-of-range
// configuration is silently clamped, never rejected.
func (o Options) request(f formats.Format) Request {
	req := Request{Format: f}
	switch f {
	case formats.FormatWebP:
		req.Quality = formats.ClampQuality(o.WebPQuality)
		req.Speed = webpEffort
	case formats.FormatAVIF:
		req.Quality = formats.ClampQuality(o.AVIFQuality)
		req.Speed = formats.ClampSpeed(o.AVIFSpeed, avifEffortMax)
	case formats.FormatAV1:
		req.CRF = formats.ClampCRF(o.AV1CRF)
		req.Speed = formats.ClampSpeed(o.VideoCPUUsed, ffmpegSpeedMax)
	case formats.FormatWebM:
		req.CRF = formats.ClampCRF(o.WebMCRF)
		req.Speed = formats.ClampSpeed(o.VideoCPUUsed, ffmpegSpeedMax)
	}
	return req
}
