package dispatch

import (
	"context"
	"sync"

	"media-optimizer/internal/logging"
	"media-optimizer/internal/metrics"
)

// Runner executes one conversion pass for one asset.
type Runner interface {
	Convert(ctx context.Context, assetID string) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, assetID string) error

// Convert implements Runner.
func (f RunnerFunc) Convert(ctx context.Context, assetID string) error {
	return f(ctx, assetID)
}

// Batch coalesces conversion triggers within one request. Repeated
// metadata updates for the same asset mark it once; Flush at the end of
// the request enqueues a single job per marked asset, after the
// metadata has stabilized. Passes never run on the triggering request:
// the queue's workers carry them, behind the per-asset job claim.
type Batch struct {
	mu      sync.Mutex
	pending map[string]struct{}
	order   []string
}

// NewBatch creates an empty batch.
func NewBatch() *Batch {
	return &Batch{
		pending: make(map[string]struct{}),
	}
}

// Mark records an asset as needing conversion. Marking the same asset
// repeatedly is free.
func (b *Batch) Mark(assetID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[assetID]; ok {
		return
	}
	b.pending[assetID] = struct{}{}
	b.order = append(b.order, assetID)
}

// Len returns the number of distinct marked assets.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Flush enqueues one conversion job per marked asset, in marking order,
// and empties the batch. It returns the number of jobs actually
// enqueued: assets whose pass is already in flight, or rejected by a
// saturated queue, are skipped with a log line. Going through the queue
// keeps the one-pass-per-asset claim intact even when two batches
// overlap on the same asset.
func (b *Batch) Flush(ctx context.Context, q *Queue) int {
	b.mu.Lock()
	assets := b.order
	b.pending = make(map[string]struct{})
	b.order = nil
	b.mu.Unlock()

	if len(assets) == 0 {
		return 0
	}

	metrics.BatchFlushesTotal.Inc()
	metrics.BatchAssetsFlushed.Observe(float64(len(assets)))

	queued := 0
	for _, assetID := range assets {
		if _, ok := q.Enqueue(ctx, assetID); !ok {
			logging.Debug("Batched conversion for asset %s not enqueued", assetID)
			continue
		}
		queued++
	}
	return queued
}
