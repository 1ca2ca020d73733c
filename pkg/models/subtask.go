// Package models defines the shared data types for hydra runs.
package models

import "time"

// SubtaskStatus represents the terminal state of a single subtask slot.
type SubtaskStatus string

const (
	// StatusCompleted indicates the worker returned a response.
	StatusCompleted SubtaskStatus = "completed"
	// StatusFailed indicates the worker returned an error.
	StatusFailed SubtaskStatus = "failed"
	// StatusTimedOut indicates the worker exceeded its per-slot timeout.
	StatusTimedOut SubtaskStatus = "timed_out"
)

// Valid returns true if the status is a known value.
func (s SubtaskStatus) Valid() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTimedOut:
		return true
	default:
		return false
	}
}

// SubtaskResult holds the outcome of one subtask slot.
// Results are collected in submission order, one per slot, and
// diagnostics are never discarded.
type SubtaskResult struct {
	// Index is the zero-based slot index. The agent id for this slot
	// is agent_{Index+1}.
	Index int `json:"index"`
	// Question is the subquestion assigned to this slot.
	Question string `json:"question"`
	// Status is the terminal state of the slot.
	Status SubtaskStatus `json:"status"`
	// Response is the worker's answer text. Set only on completion.
	Response string `json:"response,omitempty"`
	// Error is the full diagnostic for failed or timed-out slots.
	Error string `json:"error,omitempty"`
	// ErrorType classifies the failure (e.g. "timeout", "worker_error",
	// "pool_construction", "canceled").
	ErrorType string `json:"error_type,omitempty"`
	// PartialOutput holds any output the worker produced before a
	// timeout, when the worker can report it.
	PartialOutput string `json:"partial_output,omitempty"`
	// Duration is the elapsed wall time for this slot.
	Duration time.Duration `json:"duration"`
	// Timeout is the configured per-slot bound, recorded for timed-out
	// slots so the diagnostic carries its context.
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Succeeded returns true if the slot completed with a response.
func (r SubtaskResult) Succeeded() bool {
	return r.Status == StatusCompleted
}

// FinalAnswer is the synthesized output of an orchestration run.
type FinalAnswer struct {
	// Text is the answer presented to the user.
	Text string `json:"text"`
	// Successes counts the subtask results that contributed.
	Successes int `json:"successes"`
	// Degraded is true when fewer than all subtasks completed.
	Degraded bool `json:"degraded"`
	// Fallback is true when the deterministic concatenation was used
	// instead of an AI synthesis call.
	Fallback bool `json:"fallback"`
}

// RunState tracks the orchestrator through its phases.
type RunState string

const (
	// RunPlanning indicates subquestions are being generated.
	RunPlanning RunState = "planning"
	// RunExecuting indicates subtasks are running concurrently.
	RunExecuting RunState = "executing"
	// RunSynthesizing indicates results are being merged.
	RunSynthesizing RunState = "synthesizing"
	// RunDone indicates the run finished with every subtask successful.
	RunDone RunState = "done"
	// RunDegraded indicates the run finished with at least one slot
	// failed or timed out but still produced an answer.
	RunDegraded RunState = "degraded"
	// RunFailed indicates zero subtasks succeeded.
	RunFailed RunState = "failed"
)

// Valid returns true if the state is a known value.
func (s RunState) Valid() bool {
	switch s {
	case RunPlanning, RunExecuting, RunSynthesizing, RunDone, RunDegraded, RunFailed:
		return true
	default:
		return false
	}
}
