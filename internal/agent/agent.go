// Package agent defines the worker interface and the provider registry
// that constructs workers from resolved configuration.
package agent

import "context"

// Result is a worker's answer to a single query.
type Result struct {
	// Text is the worker's response.
	Text string
	// CompletionSignaled is true when the worker emitted its
	// task-completion side channel (e.g. a mark_task_complete tool
	// call). Orchestrator-facing callers suppress this channel at
	// construction time instead of inspecting it.
	CompletionSignaled bool
}

// Worker runs one query to completion. Implementations must honor
// context cancellation as a cooperative signal; the caller enforces
// timeouts externally and never trusts the worker to self-limit.
type Worker interface {
	Run(ctx context.Context, query string) (*Result, error)
}

// Resetter is implemented by workers that need per-use cleanup before
// being pooled for reuse. A failed Reset means the instance is in an
// unknown state and must be discarded, never pooled.
type Resetter interface {
	Reset() error
}

// PartialReporter is implemented by workers that can report output
// produced so far. Used to attach partial output to timed-out slots.
type PartialReporter interface {
	Partial() string
}

// BuildOptions adjust worker construction for orchestrator-internal
// calls. The zero value builds a normal task worker.
type BuildOptions struct {
	// SuppressCompletion removes the task-completion side channel so a
	// planner call cannot be short-circuited by it.
	SuppressCompletion bool
	// DisableTools removes every tool, forcing a direct text response.
	// Used for synthesis.
	DisableTools bool
}
