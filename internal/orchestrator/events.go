// Package orchestrator coordinates a full run: planning subquestions,
// executing them concurrently through the agent pool, and synthesizing
// the collected results into one answer.
package orchestrator

import (
	"time"
)

// EventType represents the type of orchestrator event.
type EventType string

const (
	// EventRunStarted indicates a run has begun.
	EventRunStarted EventType = "run_started"
	// EventPlanReady indicates planning produced the subquestion list.
	EventPlanReady EventType = "plan_ready"
	// EventSlotStarted indicates a subtask slot began executing.
	EventSlotStarted EventType = "slot_started"
	// EventSlotCompleted indicates a slot finished with a response.
	EventSlotCompleted EventType = "slot_completed"
	// EventSlotFailed indicates a slot finished with an error.
	EventSlotFailed EventType = "slot_failed"
	// EventSlotTimedOut indicates a slot exceeded its timeout.
	EventSlotTimedOut EventType = "slot_timed_out"
	// EventSynthesisStarted indicates result merging has begun.
	EventSynthesisStarted EventType = "synthesis_started"
	// EventRunDone indicates the run produced a final answer.
	EventRunDone EventType = "run_done"
	// EventRunFailed indicates zero subtasks succeeded.
	EventRunFailed EventType = "run_failed"
)

// Event is emitted by the orchestrator as a run progresses.
// These events drive the TUI and progress output.
type Event struct {
	// Type is the kind of event.
	Type EventType
	// RunID identifies the run the event belongs to.
	RunID string
	// Slot is the zero-based subtask index, for slot events.
	Slot int
	// AgentID is the id of the related agent, if applicable.
	AgentID string
	// Question is the subquestion for slot events.
	Question string
	// Message provides additional context about the event.
	Message string
	// Err contains error details for failure events.
	Err error
	// Duration is the elapsed time, for terminal slot events.
	Duration time.Duration
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
