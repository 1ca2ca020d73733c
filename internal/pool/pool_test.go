package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ShayCichocki/hydra/internal/agent"
	"github.com/ShayCichocki/hydra/internal/config"
)

// stubWorker is a test double with controllable cleanup behavior.
type stubWorker struct {
	id       int
	resetErr error

	mu     sync.Mutex
	closed bool
}

func (w *stubWorker) Run(ctx context.Context, query string) (*agent.Result, error) {
	return &agent.Result{Text: query}, nil
}

func (w *stubWorker) Reset() error { return w.resetErr }

func (w *stubWorker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *stubWorker) isClosed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// testSnapshot builds a snapshot with one model override per agent so
// different agent ids can land on different fingerprints when needed.
func testSnapshot(overrides map[string]string) *config.Snapshot {
	agents := make(map[string]config.AgentOverride, len(overrides))
	for id, model := range overrides {
		agents[id] = config.AgentOverride{Model: model}
	}
	return &config.Snapshot{
		Source:     "pool-test.yaml",
		Generation: 1,
		Provider:   "stub",
		Providers: map[string]config.ProviderSettings{
			"stub": {Model: "stub-default"},
		},
		Agents: agents,
	}
}

// newTestPool wires a pool to a registry whose constructor counts and
// records every built worker.
func newTestPool(t *testing.T, capacity int, resetErr error) (*Pool, *[]*stubWorker) {
	t.Helper()
	var built []*stubWorker
	var mu sync.Mutex

	registry := agent.NewRegistry()
	err := registry.Register("stub", func(cfg config.AgentConfig, opts agent.BuildOptions) (agent.Worker, error) {
		mu.Lock()
		defer mu.Unlock()
		w := &stubWorker{id: len(built), resetErr: resetErr}
		built = append(built, w)
		return w, nil
	})
	if err != nil {
		t.Fatalf("register stub provider: %v", err)
	}

	return New(config.NewResolver(), registry, capacity), &built
}

func TestAcquireMissConstructs(t *testing.T) {
	p, built := newTestPool(t, 4, nil)
	snap := testSnapshot(nil)

	w, fp, err := p.Acquire("agent_1", snap)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if w == nil || fp == "" {
		t.Fatal("Acquire returned nil worker or empty fingerprint")
	}
	if len(*built) != 1 {
		t.Errorf("constructed %d workers, want 1", len(*built))
	}
	stats := p.Stats()
	if stats.Misses != 1 || stats.Hits != 0 {
		t.Errorf("stats = %+v, want 1 miss", stats)
	}
}

func TestAcquireHitReusesReleasedWorker(t *testing.T) {
	p, built := newTestPool(t, 4, nil)
	snap := testSnapshot(nil)

	w1, fp, err := p.Acquire("agent_1", snap)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p.Release(w1, fp)

	// Same behavioral fingerprint even under a different agent id.
	w2, _, err := p.Acquire("agent_2", snap)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if w2 != w1 {
		t.Error("pool constructed a new worker instead of reusing the idle one")
	}
	if len(*built) != 1 {
		t.Errorf("constructed %d workers, want 1", len(*built))
	}
	stats := p.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats = %+v, want 1 hit 1 miss", stats)
	}
}

func TestAcquireDistinctFingerprintsDoNotShare(t *testing.T) {
	p, built := newTestPool(t, 4, nil)
	snap := testSnapshot(map[string]string{"agent_2": "stub-xl"})

	w1, fp1, _ := p.Acquire("agent_1", snap)
	p.Release(w1, fp1)

	w2, fp2, err := p.Acquire("agent_2", snap)
	if err != nil {
		t.Fatalf("Acquire agent_2: %v", err)
	}
	if fp1 == fp2 {
		t.Fatal("different models produced the same fingerprint")
	}
	if w2 == w1 {
		t.Error("worker reused across different fingerprints")
	}
	if len(*built) != 2 {
		t.Errorf("constructed %d workers, want 2", len(*built))
	}
}

func TestReleaseEvictsLRUOverCapacity(t *testing.T) {
	p, _ := newTestPool(t, 2, nil)
	snap := testSnapshot(map[string]string{
		"agent_2": "model-b",
		"agent_3": "model-c",
	})

	var workers []*stubWorker
	var prints []string
	for _, id := range []string{"agent_1", "agent_2", "agent_3"} {
		w, fp, err := p.Acquire(id, snap)
		if err != nil {
			t.Fatalf("Acquire %s: %v", id, err)
		}
		workers = append(workers, w.(*stubWorker))
		prints = append(prints, fp)
	}

	for i, w := range workers {
		p.Release(w, prints[i])
	}

	if size := p.IdleSize(); size != 2 {
		t.Errorf("IdleSize = %d, want capacity 2", size)
	}
	if !workers[0].isClosed() {
		t.Error("least-recently-released worker was not evicted")
	}
	if workers[1].isClosed() || workers[2].isClosed() {
		t.Error("a recently released worker was evicted")
	}
	if stats := p.Stats(); stats.Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", stats.Evictions)
	}
}

func TestReleaseDiscardsWorkerWhoseCleanupFails(t *testing.T) {
	p, _ := newTestPool(t, 4, errors.New("session still open"))
	snap := testSnapshot(nil)

	w, fp, err := p.Acquire("agent_1", snap)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	p.Release(w, fp)

	if size := p.IdleSize(); size != 0 {
		t.Errorf("IdleSize = %d after failed cleanup, want 0", size)
	}
	if !w.(*stubWorker).isClosed() {
		t.Error("discarded worker was not destroyed")
	}
}

func TestAcquireConstructionFailurePropagates(t *testing.T) {
	registry := agent.NewRegistry()
	boom := errors.New("no credentials")
	if err := registry.Register("stub", func(cfg config.AgentConfig, opts agent.BuildOptions) (agent.Worker, error) {
		return nil, boom
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	p := New(config.NewResolver(), registry, 4)

	_, _, err := p.Acquire("agent_1", testSnapshot(nil))
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped construction error", err)
	}
}

func TestCloseDrainsAndRejects(t *testing.T) {
	p, _ := newTestPool(t, 4, nil)
	snap := testSnapshot(nil)

	w1, fp1, _ := p.Acquire("agent_1", snap)
	w2, fp2, _ := p.Acquire("agent_2", snap)
	p.Release(w1, fp1)

	p.Close()

	if !w1.(*stubWorker).isClosed() {
		t.Error("idle worker survived Close")
	}
	if _, _, err := p.Acquire("agent_1", snap); !errors.Is(err, ErrClosed) {
		t.Errorf("Acquire after Close = %v, want ErrClosed", err)
	}

	// A straggler released after Close is destroyed, not pooled.
	p.Release(w2, fp2)
	if !w2.(*stubWorker).isClosed() {
		t.Error("worker released after Close was not destroyed")
	}
	if size := p.IdleSize(); size != 0 {
		t.Errorf("IdleSize = %d after Close, want 0", size)
	}
}

func TestConcurrentAcquireRelease(t *testing.T) {
	p, _ := newTestPool(t, 4, nil)
	snap := testSnapshot(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := fmt.Sprintf("agent_%d", i+1)
				w, fp, err := p.Acquire(id, snap)
				if err != nil {
					t.Errorf("Acquire: %v", err)
					return
				}
				p.Release(w, fp)
			}
		}(i)
	}
	wg.Wait()

	if size := p.IdleSize(); size > 4 {
		t.Errorf("IdleSize = %d, exceeds capacity 4", size)
	}
}
