package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ShayCichocki/hydra/internal/config"
)

// scriptedWorker answers queries deterministically without any network
// call. It backs the "scripted" provider for offline demos and serves
// as the reference implementation of the optional worker interfaces.
type scriptedWorker struct {
	cfg   config.AgentConfig
	opts  BuildOptions
	delay time.Duration

	mu      sync.Mutex
	partial string
}

// NewScriptedWorker builds a deterministic offline worker.
func NewScriptedWorker(cfg config.AgentConfig, opts BuildOptions) (Worker, error) {
	return &scriptedWorker{cfg: cfg, opts: opts}, nil
}

// Run produces a canned response derived from the query.
func (w *scriptedWorker) Run(ctx context.Context, query string) (*Result, error) {
	w.mu.Lock()
	w.partial = fmt.Sprintf("analyzing: %s", query)
	w.mu.Unlock()

	if w.delay > 0 {
		select {
		case <-time.After(w.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := fmt.Sprintf("[%s/%s] %s", w.cfg.AgentID, w.cfg.Model, query)
	w.mu.Lock()
	w.partial = ""
	w.mu.Unlock()

	return &Result{Text: text, CompletionSignaled: !w.opts.SuppressCompletion && !w.opts.DisableTools}, nil
}

// Reset clears per-run state so the worker can be pooled.
func (w *scriptedWorker) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.partial = ""
	return nil
}

// Partial reports output produced so far.
func (w *scriptedWorker) Partial() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.partial
}
