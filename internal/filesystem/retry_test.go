package filesystem

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", config.MaxRetries)
	}
	if config.InitialBackoff != 50*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 50ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 500*time.Millisecond {
		t.Errorf("MaxBackoff = %v, want 500ms", config.MaxBackoff)
	}
}

func TestVolumeResolver(t *testing.T) {
	vr := NewVolumeResolver(map[string]string{
		"media":    "/media",
		"cache":    "/cache",
		"variants": "/cache/variants",
	})

	tests := []struct {
		path string
		want string
	}{
		{"/media/album/photo.jpg", "media"},
		{"/media", "media"},
		{"/cache/tmp.db", "cache"},
		{"/cache/variants/a/full.webp", "variants"}, // longest prefix wins
		{"/elsewhere/file", "unknown"},
	}

	for _, tt := range tests {
		if got := vr.Resolve(tt.path); got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestVolumeResolverNil(t *testing.T) {
	var vr *VolumeResolver
	if got := vr.Resolve("/media/file"); got != "unknown" {
		t.Errorf("nil resolver Resolve = %q, want unknown", got)
	}
}

func TestIsNFSStaleError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"estale", syscall.ESTALE, true},
		{"wrapped estale", fmt.Errorf("stat: %w", syscall.ESTALE), true},
		{"path error estale", &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, true},
		{"other errno", syscall.ENOENT, false},
		{"plain error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isNFSStaleError(tt.err); got != tt.want {
				t.Errorf("isNFSStaleError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatWithRetry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := StatWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("StatWithRetry returned error: %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("Size = %d, want 4", info.Size())
	}
}

func TestStatWithRetryNotExist(t *testing.T) {
	start := time.Now()
	_, err := StatWithRetry(filepath.Join(t.TempDir(), "missing"), DefaultRetryConfig())
	elapsed := time.Since(start)

	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
	// ENOENT must not trigger the backoff path.
	if elapsed > 40*time.Millisecond {
		t.Errorf("non-stale error took %v, should fail without retrying", elapsed)
	}
}

func TestOpenWithRetry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(path, []byte("contents"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := OpenWithRetry(path, DefaultRetryConfig())
	if err != nil {
		t.Fatalf("OpenWithRetry returned error: %v", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "contents" {
		t.Errorf("read %q, want %q", data, "contents")
	}
}

func TestRemoveWithRetry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := RemoveWithRetry(path, DefaultRetryConfig()); err != nil {
		t.Fatalf("RemoveWithRetry returned error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file should be removed")
	}

	if err := RemoveWithRetry(path, DefaultRetryConfig()); !os.IsNotExist(err) {
		t.Errorf("removing a missing file should surface not-exist, got %v", err)
	}
}

func TestWithRetryRecoversFromStale(t *testing.T) {
	config := RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
	}

	attempts := 0
	err := withRetry("stat", "/media/x", config, func() error {
		attempts++
		if attempts < 3 {
			return syscall.ESTALE
		}
		return nil
	})

	if err != nil {
		t.Fatalf("withRetry returned error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestWithRetryExhaustsRetries(t *testing.T) {
	config := RetryConfig{
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}

	attempts := 0
	err := withRetry("open", "/media/x", config, func() error {
		attempts++
		return syscall.ESTALE
	})

	if !errors.Is(err, syscall.ESTALE) {
		t.Errorf("expected ESTALE after exhaustion, got %v", err)
	}
	if attempts != 3 { // initial try plus two retries
		t.Errorf("attempts = %d, want 3", attempts)
	}
}
