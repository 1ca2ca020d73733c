package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/hydra/internal/agent"
	"github.com/ShayCichocki/hydra/internal/config"
	"github.com/ShayCichocki/hydra/internal/pool"
	"github.com/ShayCichocki/hydra/pkg/models"
)

// Run is the full record of one orchestration: the plan, every slot's
// outcome, and the synthesized answer.
type Run struct {
	// ID is the short run identifier.
	ID string `json:"id"`
	// Task is the original user task.
	Task string `json:"task"`
	// State is the run's terminal (or current) phase.
	State models.RunState `json:"state"`
	// Questions are the planned subquestions, one per slot.
	Questions []string `json:"questions"`
	// Slots holds per-subtask outcomes in submission order.
	Slots []models.SubtaskResult `json:"slots"`
	// Answer is the synthesized result. Nil when the run failed.
	Answer *models.FinalAnswer `json:"answer,omitempty"`
	// Started and Finished bound the run's wall time.
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Recorder persists finished runs. Persistence failures are logged,
// never allowed to affect the run's outcome.
type Recorder interface {
	SaveRun(ctx context.Context, run *Run) error
}

// Options configures an Orchestrator.
type Options struct {
	// ConfigPath is the configuration source for every run.
	ConfigPath string
	// Resolver supplies snapshots and per-agent views. Required.
	Resolver *config.Resolver
	// Registry maps provider names to worker constructors. Required.
	Registry *agent.Registry
	// Pool reuses idle workers. Created from the snapshot's settings on
	// first run when nil.
	Pool *pool.Pool
	// Recorder persists finished runs. Optional.
	Recorder Recorder
	// EventBuffer sizes the event channel. Zero means the default.
	EventBuffer int
}

// Orchestrator drives the plan, execute, synthesize pipeline. The
// phases run sequentially on the calling goroutine; only subtask
// execution fans out.
type Orchestrator struct {
	configPath string
	resolver   *config.Resolver
	registry   *agent.Registry
	pool       *pool.Pool
	recorder   Recorder
	emitter    *emitter
}

// New creates an Orchestrator from options.
func New(opts Options) (*Orchestrator, error) {
	if opts.ConfigPath == "" {
		return nil, fmt.Errorf("config path is required")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	return &Orchestrator{
		configPath: opts.ConfigPath,
		resolver:   opts.Resolver,
		registry:   opts.Registry,
		pool:       opts.Pool,
		recorder:   opts.Recorder,
		emitter:    newEmitter(opts.EventBuffer),
	}, nil
}

// Events returns the channel of progress events for this orchestrator.
// The channel closes when Close is called.
func (o *Orchestrator) Events() <-chan Event {
	return o.emitter.Events()
}

// Close releases the pool and the event channel. Call once, after the
// final Run has returned.
func (o *Orchestrator) Close() {
	if o.pool != nil {
		o.pool.Close()
	}
	o.emitter.Close()
}

// Execute runs the whole pipeline for one task. The returned Run is
// non-nil whenever execution reached the subtask phase, including total
// failures, so callers always see the per-slot diagnostics. The error
// is non-nil only for setup failures and for runs where zero subtasks
// succeeded.
func (o *Orchestrator) Execute(ctx context.Context, task string) (*Run, error) {
	snap, err := o.resolver.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.pool == nil {
		o.pool = pool.New(o.resolver, o.registry, snap.Pool.MaxIdle)
	}

	// Fail fast if the planner/synthesizer view cannot be resolved; it
	// is also the view subtask workers inherit their provider from.
	if _, err := o.resolver.Resolve(snap, config.OrchestratorAgentID); err != nil {
		return nil, fmt.Errorf("resolve orchestrator config: %w", err)
	}

	run := &Run{
		ID:      uuid.New().String()[:8],
		Task:    task,
		State:   models.RunPlanning,
		Started: time.Now(),
	}
	n := snap.Orchestrator.ParallelAgents

	log.Printf("[orchestrator] run %s: task %q, %d parallel agents", run.ID, task, n)
	o.emitter.emit(Event{Type: EventRunStarted, RunID: run.ID, Message: task})

	run.Questions = o.plan(ctx, snap, task, n)
	o.emitter.emit(Event{
		Type:    EventPlanReady,
		RunID:   run.ID,
		Message: fmt.Sprintf("%d subquestions planned", len(run.Questions)),
	})

	run.State = models.RunExecuting
	run.Slots = o.executeParallel(ctx, snap, run.ID, run.Questions)

	run.State = models.RunSynthesizing
	o.emitter.emit(Event{Type: EventSynthesisStarted, RunID: run.ID})

	answer, err := o.synthesize(ctx, snap, task, run.Slots)
	if err != nil {
		run.State = models.RunFailed
		run.Finished = time.Now()
		o.persist(ctx, run)
		o.emitter.emit(Event{Type: EventRunFailed, RunID: run.ID, Err: err})
		return run, err
	}

	answer.Degraded = answer.Successes < len(run.Slots)
	run.Answer = answer
	if answer.Degraded {
		run.State = models.RunDegraded
	} else {
		run.State = models.RunDone
	}
	run.Finished = time.Now()
	o.persist(ctx, run)

	o.emitter.emit(Event{
		Type:     EventRunDone,
		RunID:    run.ID,
		Message:  fmt.Sprintf("%d/%d subtasks contributed", answer.Successes, len(run.Slots)),
		Duration: run.Finished.Sub(run.Started),
	})
	log.Printf("[orchestrator] run %s: %s in %s", run.ID, run.State, run.Finished.Sub(run.Started).Round(time.Millisecond))

	return run, nil
}

// persist saves the run when a recorder is configured.
func (o *Orchestrator) persist(ctx context.Context, run *Run) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.SaveRun(ctx, run); err != nil {
		log.Printf("[orchestrator] run %s: persisting failed: %v", run.ID, err)
	}
}
