package pool

import (
	"container/list"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/ShayCichocki/hydra/internal/agent"
	"github.com/ShayCichocki/hydra/internal/config"
)

// ErrClosed is returned by Acquire after the pool has been shut down.
var ErrClosed = errors.New("pool is closed")

// Stats holds observability counters. They never influence behavior.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// entry is one idle worker. The pool owns it until Acquire removes it,
// at which point ownership transfers to the caller.
type entry struct {
	worker      agent.Worker
	fingerprint string
	releasedAt  time.Time
}

// Pool reuses idle workers by behavioral fingerprint. Lookup, insert,
// and eviction are all O(1): a fingerprint→elements index over a
// doubly-linked recency list, never a linear scan. The lock guards only
// map and list mutations — construction and cleanup of workers happen
// outside it, so a slow worker cannot block unrelated pool operations.
type Pool struct {
	resolver *config.Resolver
	registry *agent.Registry
	capacity int

	mu sync.Mutex
	// order is the recency list; front = most recently released.
	order *list.List
	// byPrint indexes idle entries by fingerprint. Entries sharing a
	// fingerprint are interchangeable, so the index is a set.
	byPrint map[string]map[*list.Element]struct{}
	stats   Stats
	closed  bool
}

// New creates a pool with the given idle capacity.
func New(resolver *config.Resolver, registry *agent.Registry, capacity int) *Pool {
	if capacity <= 0 {
		capacity = config.DefaultPoolMaxIdle
	}
	return &Pool{
		resolver: resolver,
		registry: registry,
		capacity: capacity,
		order:    list.New(),
		byPrint:  make(map[string]map[*list.Element]struct{}),
	}
}

// Acquire returns a worker for the agent id under the snapshot. An
// idle worker with a matching fingerprint is removed and returned (pool
// hit); otherwise a new instance is constructed through the registry
// (pool miss). Construction failures propagate to the caller and are
// fatal to this acquisition only.
func (p *Pool) Acquire(agentID string, snap *config.Snapshot) (agent.Worker, string, error) {
	cfg, err := p.resolver.Resolve(snap, agentID)
	if err != nil {
		return nil, "", err
	}
	fp := Fingerprint(cfg)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, "", ErrClosed
	}
	if elems := p.byPrint[fp]; len(elems) > 0 {
		var elem *list.Element
		for e := range elems {
			elem = e
			break
		}
		p.detachLocked(elem)
		p.stats.Hits++
		p.mu.Unlock()
		return elem.Value.(*entry).worker, fp, nil
	}
	p.stats.Misses++
	p.mu.Unlock()

	w, err := p.registry.Build(cfg, agent.BuildOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("construct worker for %s: %w", agentID, err)
	}
	return w, fp, nil
}

// Release returns a worker to the idle set as most-recently-used.
// Cleanup runs first: a worker without cleanup is pooled as-is, but a
// worker whose cleanup fails is in an unknown state and is discarded.
// When the pool is at capacity the least-recently-released idle entry
// is evicted and destroyed before the insert.
func (p *Pool) Release(w agent.Worker, fingerprint string) {
	if r, ok := w.(agent.Resetter); ok {
		if err := r.Reset(); err != nil {
			log.Printf("[pool] cleanup failed, discarding worker (fingerprint %.8s): %v", fingerprint, err)
			destroy(w)
			return
		}
	}

	var evicted agent.Worker

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		destroy(w)
		return
	}
	if p.order.Len() >= p.capacity {
		if tail := p.order.Back(); tail != nil {
			ev := tail.Value.(*entry)
			p.detachLocked(tail)
			p.stats.Evictions++
			evicted = ev.worker
		}
	}
	elem := p.order.PushFront(&entry{
		worker:      w,
		fingerprint: fingerprint,
		releasedAt:  time.Now(),
	})
	set, ok := p.byPrint[fingerprint]
	if !ok {
		set = make(map[*list.Element]struct{})
		p.byPrint[fingerprint] = set
	}
	set[elem] = struct{}{}
	p.mu.Unlock()

	if evicted != nil {
		destroy(evicted)
	}
}

// Discard destroys a worker without pooling it. Used when a worker's
// state is unknown, e.g. after a whole-run cancellation.
func (p *Pool) Discard(w agent.Worker) {
	destroy(w)
}

// detachLocked removes an element from both the recency list and the
// fingerprint index. Caller must hold the lock.
func (p *Pool) detachLocked(elem *list.Element) {
	ent := elem.Value.(*entry)
	p.order.Remove(elem)
	set := p.byPrint[ent.fingerprint]
	delete(set, elem)
	if len(set) == 0 {
		delete(p.byPrint, ent.fingerprint)
	}
}

// IdleSize returns the number of idle workers.
func (p *Pool) IdleSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.order.Len()
}

// Stats returns a copy of the counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Close shuts the pool down and destroys every idle worker. Workers
// released after Close are destroyed instead of pooled.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	var workers []agent.Worker
	for e := p.order.Front(); e != nil; e = e.Next() {
		workers = append(workers, e.Value.(*entry).worker)
	}
	p.order.Init()
	p.byPrint = make(map[string]map[*list.Element]struct{})
	p.mu.Unlock()

	for _, w := range workers {
		destroy(w)
	}
}

// destroy runs a worker's final cleanup. Absence is tolerated; failure
// is logged, never raised.
func destroy(w agent.Worker) {
	if c, ok := w.(io.Closer); ok {
		if err := c.Close(); err != nil {
			log.Printf("[pool] worker close failed: %v", err)
		}
	}
}
