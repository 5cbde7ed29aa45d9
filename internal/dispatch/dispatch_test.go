package dispatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"media-optimizer/internal/store"
)

type countingRunner struct {
	mu     sync.Mutex
	calls  []string
	err    error
	block  chan struct{}
	notify chan string
}

func (r *countingRunner) Convert(_ context.Context, assetID string) error {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.calls = append(r.calls, assetID)
	r.mu.Unlock()
	if r.notify != nil {
		r.notify <- assetID
	}
	return r.err
}

func (r *countingRunner) converted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	resolver := store.NewURLResolver("/var/media", "https://cdn.example.com/media")
	s, err := store.New(context.Background(), filepath.Join(t.TempDir(), "meta.db"), resolver)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBatchCoalescesTriggers(t *testing.T) {
	s := newTestStore(t)
	runner := &countingRunner{notify: make(chan string, 4)}
	q := NewQueue(context.Background(), s, runner, 1, 4)

	b := NewBatch()
	b.Mark("a1")
	b.Mark("a2")
	b.Mark("a1")
	b.Mark("a1")

	if b.Len() != 2 {
		t.Fatalf("Len = %d, want 2 distinct assets", b.Len())
	}

	if queued := b.Flush(context.Background(), q); queued != 2 {
		t.Fatalf("Flush queued %d jobs, want 2", queued)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-runner.notify:
		case <-time.After(5 * time.Second):
			t.Fatal("batched job never ran")
		}
	}
	q.Close()

	got := runner.converted()
	if len(got) != 2 || got[0] != "a1" || got[1] != "a2" {
		t.Errorf("flush ran %v, want [a1 a2] in marking order", got)
	}
	if b.Len() != 0 {
		t.Errorf("batch not emptied, Len = %d", b.Len())
	}
}

func TestBatchFlushEmptyIsNoop(t *testing.T) {
	s := newTestStore(t)
	runner := &countingRunner{}
	q := NewQueue(context.Background(), s, runner, 1, 4)
	defer q.Close()

	if queued := NewBatch().Flush(context.Background(), q); queued != 0 {
		t.Errorf("empty flush queued %d jobs", queued)
	}
}

func TestBatchFlushSkipsInFlightAssets(t *testing.T) {
	s := newTestStore(t)
	runner := &countingRunner{block: make(chan struct{}), notify: make(chan string, 4)}
	q := NewQueue(context.Background(), s, runner, 2, 4)

	// a1's pass is already claimed and running when the batch flushes.
	if _, ok := q.Enqueue(context.Background(), "a1"); !ok {
		t.Fatal("direct enqueue rejected")
	}

	b := NewBatch()
	b.Mark("a1")
	b.Mark("a2")
	if queued := b.Flush(context.Background(), q); queued != 1 {
		t.Errorf("Flush queued %d jobs, want 1 (a1 in flight)", queued)
	}

	close(runner.block)
	for i := 0; i < 2; i++ {
		select {
		case <-runner.notify:
		case <-time.After(5 * time.Second):
			t.Fatal("job never ran")
		}
	}
	q.Close()

	if got := runner.converted(); len(got) != 2 {
		t.Errorf("ran %v, want exactly one pass per asset", got)
	}
}

func TestQueueEnqueueAfterCloseRejected(t *testing.T) {
	s := newTestStore(t)
	runner := &countingRunner{}
	q := NewQueue(context.Background(), s, runner, 1, 4)
	q.Close()

	jobID, ok := q.Enqueue(context.Background(), "a1")
	if ok || jobID != "" {
		t.Fatalf("Enqueue after Close accepted (job %q)", jobID)
	}

	// No claim was taken, so a fresh queue can still convert the asset.
	state, err := s.JobState(context.Background(), "a1")
	if err != nil {
		t.Fatalf("JobState: %v", err)
	}
	if state.Pending() {
		t.Errorf("rejected asset holds a pending claim: %s", state)
	}
}

func TestQueueRunsJobAndRecordsState(t *testing.T) {
	s := newTestStore(t)
	runner := &countingRunner{notify: make(chan string, 1)}
	q := NewQueue(context.Background(), s, runner, 1, 4)
	defer q.Close()

	jobID, ok := q.Enqueue(context.Background(), "a1")
	if !ok || jobID == "" {
		t.Fatal("enqueue rejected")
	}

	select {
	case <-runner.notify:
	case <-time.After(5 * time.Second):
		t.Fatal("job never ran")
	}
	q.Close()

	state, err := s.JobState(context.Background(), "a1")
	if err != nil {
		t.Fatalf("JobState: %v", err)
	}
	if state != store.JobStateCompleted {
		t.Errorf("state = %s, want completed", state)
	}
}

func TestQueueSuppressesDuplicateEnqueue(t *testing.T) {
	s := newTestStore(t)
	runner := &countingRunner{block: make(chan struct{}), notify: make(chan string, 4)}
	q := NewQueue(context.Background(), s, runner, 1, 4)

	if _, ok := q.Enqueue(context.Background(), "a1"); !ok {
		t.Fatal("first enqueue rejected")
	}
	if _, ok := q.Enqueue(context.Background(), "a1"); ok {
		t.Error("duplicate enqueue for in-flight asset accepted")
	}

	close(runner.block)
	select {
	case <-runner.notify:
	case <-time.After(5 * time.Second):
		t.Fatal("job never ran")
	}
	q.Close()

	if got := runner.converted(); len(got) != 1 {
		t.Errorf("asset converted %d times, want 1", len(got))
	}

	// A finished job releases the guard for future triggers.
	if _, ok := q2Enqueue(t, s, runner, "a1"); !ok {
		t.Error("enqueue after completion rejected")
	}
}

// q2Enqueue claims through a fresh queue so completion-state reuse is
// exercised without racing the first queue's teardown.
func q2Enqueue(t *testing.T, s *store.Store, runner *countingRunner, assetID string) (string, bool) {
	t.Helper()
	q := NewQueue(context.Background(), s, runner, 1, 4)
	defer q.Close()
	id, ok := q.Enqueue(context.Background(), assetID)
	if ok {
		select {
		case <-runner.notify:
		case <-time.After(5 * time.Second):
			t.Fatal("requeued job never ran")
		}
	}
	return id, ok
}

func TestQueueMarksFailedJobs(t *testing.T) {
	s := newTestStore(t)
	runner := &countingRunner{err: fmt.Errorf("pass failed"), notify: make(chan string, 1)}
	q := NewQueue(context.Background(), s, runner, 1, 4)

	if _, ok := q.Enqueue(context.Background(), "a1"); !ok {
		t.Fatal("enqueue rejected")
	}
	select {
	case <-runner.notify:
	case <-time.After(5 * time.Second):
		t.Fatal("job never ran")
	}
	q.Close()

	state, err := s.JobState(context.Background(), "a1")
	if err != nil {
		t.Fatalf("JobState: %v", err)
	}
	if state != store.JobStateFailed {
		t.Errorf("state = %s, want failed", state)
	}
}

func TestQueueSaturationReleasesClaim(t *testing.T) {
	s := newTestStore(t)
	runner := &countingRunner{block: make(chan struct{})}
	q := NewQueue(context.Background(), s, runner, 1, 1)
	defer func() {
		close(runner.block)
		q.Close()
	}()

	// One job occupies the worker, one fills the buffer.
	if _, ok := q.Enqueue(context.Background(), "a1"); !ok {
		t.Fatal("first enqueue rejected")
	}
	if _, ok := q.Enqueue(context.Background(), "a2"); !ok {
		// The buffered slot may already be drained into the worker;
		// either way a2 is accepted or a3 below proves saturation.
		t.Log("second enqueue rejected by saturation")
	}
	_, ok3 := q.Enqueue(context.Background(), "a3")
	_, ok4 := q.Enqueue(context.Background(), "a4")
	if ok3 && ok4 {
		t.Fatal("queue with capacity 1 accepted every enqueue")
	}

	// A rejected asset's claim is released, so retrying later works.
	rejected := "a3"
	if ok3 {
		rejected = "a4"
	}
	state, err := s.JobState(context.Background(), rejected)
	if err != nil {
		t.Fatalf("JobState: %v", err)
	}
	if state.Pending() {
		t.Errorf("rejected asset still holds a pending claim: %s", state)
	}
}
