package convert

import (
	"strings"
	"testing"

	"media-optimizer/internal/formats"
)

func TestBuildArgs(t *testing.T) {
	e := NewFFmpegEncoder("")

	tests := []struct {
		name    string
		req     Request
		want    []string
		notWant []string
	}{
		{
			name: "still webp",
			req:  Request{Source: "in.jpg", Dest: "out.webp", Format: formats.FormatWebP, Quality: 75},
			want: []string{"-c:v libwebp", "-quality 75", "-frames:v 1"},
		},
		{
			name:    "animated webp loops",
			req:     Request{Source: "in.gif", Dest: "out.webp", Format: formats.FormatWebP, Quality: 75, Animated: true},
			want:    []string{"-loop 0"},
			notWant: []string{"-frames:v 1"},
		},
		{
			name: "still avif maps quality to crf",
			req:  Request{Source: "in.jpg", Dest: "out.avif", Format: formats.FormatAVIF, Quality: 100, Speed: 6},
			want: []string{"-c:v libaom-av1", "-crf 0", "-cpu-used 6", "-still-picture 1"},
		},
		{
			name:    "animated avif",
			req:     Request{Source: "in.gif", Dest: "out.avif", Format: formats.FormatAVIF, Quality: 55, Speed: 6, Animated: true},
			notWant: []string{"-still-picture"},
		},
		{
			name: "av1 video",
			req:  Request{Source: "in.mp4", Dest: "out.mp4", Format: formats.FormatAV1, CRF: 30, Speed: 4},
			want: []string{"-c:v libaom-av1", "-crf 30", "-c:a libopus", "-movflags +faststart"},
		},
		{
			name:    "webm video",
			req:     Request{Source: "in.mp4", Dest: "out.webm", Format: formats.FormatWebM, CRF: 32, Speed: 4},
			want:    []string{"-c:v libvpx-vp9", "-crf 32"},
			notWant: []string{"faststart"},
		},
		{
			name: "resize hint",
			req:  Request{Source: "in.gif", Dest: "out.webp", Format: formats.FormatWebP, Quality: 75, Width: 300, Height: 200, Animated: true},
			want: []string{"-vf scale=300:-2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := e.buildArgs(tt.req)
			if err != nil {
				t.Fatalf("buildArgs: %v", err)
			}
			joined := strings.Join(args, " ")
			for _, w := range tt.want {
				if !strings.Contains(joined, w) {
					t.Errorf("args missing %q: %s", w, joined)
				}
			}
			for _, nw := range tt.notWant {
				if strings.Contains(joined, nw) {
					t.Errorf("args should not contain %q: %s", nw, joined)
				}
			}
			if args[len(args)-1] != tt.req.Dest {
				t.Errorf("last arg = %q, want dest %q", args[len(args)-1], tt.req.Dest)
			}
			if args[0] != "-y" {
				t.Errorf("args must start with -y, got %q", args[0])
			}
		})
	}
}

func TestBuildArgsRejectsOriginal(t *testing.T) {
	e := NewFFmpegEncoder("")
	if _, err := e.buildArgs(Request{Format: formats.FormatOriginal}); err == nil {
		t.Fatal("expected error for original pseudo-format")
	}
}

func TestQualityToCRF(t *testing.T) {
	tests := []struct {
		quality int
		want    int
	}{
		{100, 0},
		{1, 62},
		{55, 28},
		{150, 0}, // clamped to 100
		{-5, 62}, // clamped to 1
	}
	for _, tt := range tests {
		if got := qualityToCRF(tt.quality); got != tt.want {
			t.Errorf("qualityToCRF(%d) = %d, want %d", tt.quality, got, tt.want)
		}
	}
}
