package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"media-optimizer/internal/capability"
	"media-optimizer/internal/convert"
	"media-optimizer/internal/formats"
	"media-optimizer/internal/selector"
	"media-optimizer/internal/sizes"
	"media-optimizer/internal/store"
	"media-optimizer/internal/tracker"
)

type fakeEncoder struct {
	requests []convert.Request
}

func (e *fakeEncoder) Name() string { return capability.EncoderFFmpeg }

func (e *fakeEncoder) Encode(_ context.Context, req convert.Request) (int64, error) {
	e.requests = append(e.requests, req)
	if err := os.MkdirAll(filepath.Dir(req.Dest), 0o755); err != nil {
		return 0, err
	}
	payload := []byte("encoded-" + string(req.Format))
	if err := os.WriteFile(req.Dest, payload, 0o644); err != nil {
		return 0, err
	}
	return int64(len(payload)), nil
}

type fixedCaps capability.Map

func (c fixedCaps) Probe(_ context.Context) capability.Map { return capability.Map(c) }

type fakeSources map[string]convert.SourceFile

func (s fakeSources) Original(_ context.Context, assetID string) (convert.SourceFile, error) {
	return s.get(assetID)
}

func (s fakeSources) ForSize(ctx context.Context, assetID, size string, _ sizes.Dimension) (convert.SourceFile, error) {
	return s.get(assetID)
}

func (s fakeSources) get(assetID string) (convert.SourceFile, error) {
	src, ok := s[assetID]
	if !ok {
		return convert.SourceFile{}, fmt.Errorf("no source for asset %q", assetID)
	}
	return src, nil
}

func allCaps() fixedCaps {
	return fixedCaps{
		capability.EncoderFFmpeg: {
			Available: true,
			Supports: map[formats.Format]bool{
				formats.FormatWebP: true,
				formats.FormatAVIF: true,
				formats.FormatAV1:  true,
				formats.FormatWebM: true,
			},
		},
	}
}

type testEnv struct {
	engine  *Engine
	store   *store.Store
	encoder *fakeEncoder
	root    string
}

func newTestEngine(t *testing.T, srcs fakeSources) *testEnv {
	t.Helper()
	root := t.TempDir()

	resolver := store.NewURLResolver(root, "https://cdn.example.com/media")
	s, err := store.New(context.Background(), filepath.Join(root, "meta.db"), resolver)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	tr := tracker.New(s)
	enc := &fakeEncoder{}
	registry := sizes.StaticRegistry{}
	orch := convert.New(s, tr, allCaps(), registry, srcs, filepath.Join(root, "derived"), convert.DefaultOptions(), enc)
	sel := selector.New(s, registry)

	return &testEnv{
		engine:  New(s, orch, sel, tr, srcs),
		store:   s,
		encoder: enc,
		root:    root,
	}
}

func TestOrchestrateRoutesByKind(t *testing.T) {
	env := newTestEngine(t, fakeSources{
		"img1": {Path: "/tmp/img1/original.jpg", Bytes: 5000},
		"vid1": {Path: "/tmp/vid1/original.mp4", Bytes: 90000},
	})
	ctx := context.Background()

	result := env.engine.Orchestrate(ctx, "img1")
	if !result.Success {
		t.Fatalf("image pass failed: %v", result.Errors)
	}
	for _, f := range result.ConvertedFormats {
		if f.Kind() != formats.KindImage {
			t.Errorf("image asset produced %s", f)
		}
	}

	result = env.engine.Orchestrate(ctx, "vid1")
	if !result.Success {
		t.Fatalf("video pass failed: %v", result.Errors)
	}
	for _, f := range result.ConvertedFormats {
		if f.Kind() != formats.KindVideo {
			t.Errorf("video asset produced %s", f)
		}
	}
}

func TestOrchestrateUnknownAsset(t *testing.T) {
	env := newTestEngine(t, fakeSources{})

	result := env.engine.Orchestrate(context.Background(), "ghost")
	if result.Success {
		t.Error("pass for missing asset reported success")
	}
	if len(result.Errors) == 0 {
		t.Error("pass for missing asset reported no errors")
	}

	if err := env.engine.Convert(context.Background(), "ghost"); err == nil {
		t.Error("Convert for missing asset returned nil")
	}
}

func TestOrchestrateUnsupportedSource(t *testing.T) {
	env := newTestEngine(t, fakeSources{
		"doc1": {Path: "/tmp/doc1/original.pdf", Bytes: 100},
	})

	result := env.engine.Orchestrate(context.Background(), "doc1")
	if result.Success {
		t.Error("pass for unsupported source reported success")
	}
	if len(env.encoder.requests) != 0 {
		t.Error("unsupported source reached the encoder")
	}
}

func TestSelectFallsBackToOriginal(t *testing.T) {
	env := newTestEngine(t, fakeSources{
		"img1": {Path: "/tmp/img1/original.jpg", Bytes: 5000},
	})
	ctx := context.Background()

	// Nothing converted yet: the original's own location comes back.
	got := env.engine.Select(ctx, "img1", "thumbnail")
	if got != "/tmp/img1/original.jpg" {
		t.Errorf("Select before conversion = %q", got)
	}

	if result := env.engine.Orchestrate(ctx, "img1"); !result.Success {
		t.Fatalf("pass failed: %v", result.Errors)
	}
	got = env.engine.Select(ctx, "img1", "thumbnail")
	if !strings.HasSuffix(got, ".avif") {
		t.Errorf("Select after conversion = %q, want the avif variant", got)
	}
}

func TestFallbackChainCarriesOriginalMime(t *testing.T) {
	env := newTestEngine(t, fakeSources{
		"img1": {Path: "/tmp/img1/original.png", Bytes: 5000},
	})
	ctx := context.Background()

	if result := env.engine.Orchestrate(ctx, "img1"); !result.Success {
		t.Fatalf("pass failed: %v", result.Errors)
	}

	chain := env.engine.FallbackChain(ctx, "img1", sizes.Full)
	if len(chain) != 3 {
		t.Fatalf("chain = %+v, want avif, webp, original", chain)
	}
	last := chain[len(chain)-1]
	if last.Mime != "image/png" {
		t.Errorf("terminal mime = %q, want image/png", last.Mime)
	}
}

func TestDeleteAllVariants(t *testing.T) {
	env := newTestEngine(t, fakeSources{
		"img1": {Path: "/tmp/img1/original.jpg", Bytes: 5000},
	})
	ctx := context.Background()

	if result := env.engine.Orchestrate(ctx, "img1"); !result.Success {
		t.Fatalf("pass failed: %v", result.Errors)
	}

	resolver := env.store.Resolver()
	webpPath := resolver.PathFor(env.store.GetVariants(ctx, "img1", sizes.Full)[formats.FormatWebP].Location)
	if _, err := os.Stat(webpPath); err != nil {
		t.Fatalf("variant file missing before delete: %v", err)
	}

	if err := env.engine.DeleteAllVariants(ctx, "img1"); err != nil {
		t.Fatalf("DeleteAllVariants: %v", err)
	}

	if fm := env.store.GetVariants(ctx, "img1", sizes.Full); len(fm) != 0 {
		t.Errorf("variants survived deletion: %+v", fm)
	}
	if _, err := os.Stat(webpPath); !os.IsNotExist(err) {
		t.Errorf("variant file survived deletion: %v", err)
	}

	summary, err := env.engine.Savings(ctx)
	if err != nil {
		t.Fatalf("Savings: %v", err)
	}
	if summary.Files != 0 {
		t.Errorf("conversion records survived deletion: %+v", summary)
	}
}

func TestDisablingRemovesVariantsAndBlocksPasses(t *testing.T) {
	env := newTestEngine(t, fakeSources{
		"img1": {Path: "/tmp/img1/original.jpg", Bytes: 5000},
	})
	ctx := context.Background()

	if result := env.engine.Orchestrate(ctx, "img1"); !result.Success {
		t.Fatalf("pass failed: %v", result.Errors)
	}

	if err := env.engine.SetConversionEnabled(ctx, "img1", false); err != nil {
		t.Fatalf("SetConversionEnabled: %v", err)
	}
	if fm := env.store.GetVariants(ctx, "img1", sizes.Full); len(fm) != 0 {
		t.Errorf("variants survived disabling: %+v", fm)
	}

	env.encoder.requests = nil
	result := env.engine.Orchestrate(ctx, "img1")
	if result.Success || len(result.Errors) != 0 {
		t.Errorf("disabled pass = %+v, want silent no-op", result)
	}
	if len(env.encoder.requests) != 0 {
		t.Error("disabled asset reached the encoder")
	}

	if err := env.engine.SetConversionEnabled(ctx, "img1", true); err != nil {
		t.Fatalf("re-enabling: %v", err)
	}
	if result := env.engine.Orchestrate(ctx, "img1"); !result.Success {
		t.Errorf("pass after re-enabling failed: %v", result.Errors)
	}
}
