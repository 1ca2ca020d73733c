package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ShayCichocki/hydra/internal/agent"
	"github.com/ShayCichocki/hydra/internal/config"
	"github.com/ShayCichocki/hydra/pkg/models"
)

// executeParallel runs every subquestion concurrently, one slot per
// question, and collects the results in submission order. A slot's
// failure or timeout never aborts the batch; every slot reaches a
// terminal status.
func (o *Orchestrator) executeParallel(ctx context.Context, snap *config.Snapshot, runID string, questions []string) []models.SubtaskResult {
	results := make([]models.SubtaskResult, len(questions))
	var wg sync.WaitGroup

	for i, question := range questions {
		wg.Add(1)
		go func(slot int, question string) {
			defer wg.Done()
			agentID := fmt.Sprintf("agent_%d", slot+1)

			o.emitter.emit(Event{
				Type:     EventSlotStarted,
				RunID:    runID,
				Slot:     slot,
				AgentID:  agentID,
				Question: question,
			})

			result := o.runSlot(ctx, snap, agentID, slot, question)
			results[slot] = result

			event := Event{
				Type:     EventSlotCompleted,
				RunID:    runID,
				Slot:     slot,
				AgentID:  agentID,
				Question: question,
				Duration: result.Duration,
			}
			switch result.Status {
			case models.StatusFailed:
				event.Type = EventSlotFailed
				event.Err = errors.New(result.Error)
			case models.StatusTimedOut:
				event.Type = EventSlotTimedOut
				event.Message = fmt.Sprintf("exceeded %s", result.Timeout)
			}
			o.emitter.emit(event)
		}(i, question)
	}

	wg.Wait()
	return results
}

// runSlot executes one subquestion with its per-slot timeout. The
// timeout is enforced here, never trusted to the worker: when the
// deadline passes the slot is marked timed out immediately and a
// background goroutine recovers the worker once its call returns.
func (o *Orchestrator) runSlot(ctx context.Context, snap *config.Snapshot, agentID string, slot int, question string) models.SubtaskResult {
	result := models.SubtaskResult{Index: slot, Question: question}

	worker, fingerprint, err := o.pool.Acquire(agentID, snap)
	if err != nil {
		result.Status = models.StatusFailed
		result.Error = err.Error()
		result.ErrorType = "pool_construction"
		return result
	}

	// Acquire already resolved this id, so this hits the memo.
	cfg, err := o.resolver.Resolve(snap, agentID)
	if err != nil {
		result.Status = models.StatusFailed
		result.Error = err.Error()
		result.ErrorType = "config"
		o.pool.Release(worker, fingerprint)
		return result
	}
	result.Timeout = cfg.Timeout()

	slotCtx, cancel := context.WithTimeout(ctx, cfg.Timeout())

	type outcome struct {
		res *agent.Result
		err error
	}
	done := make(chan outcome, 1)
	start := time.Now()
	go func() {
		res, err := worker.Run(slotCtx, question)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		cancel()
		result.Duration = time.Since(start)
		switch {
		case out.err == nil:
			result.Status = models.StatusCompleted
			result.Response = out.res.Text
		case errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() == nil:
			result.Status = models.StatusTimedOut
			result.Error = out.err.Error()
			result.ErrorType = "timeout"
		case ctx.Err() != nil:
			result.Status = models.StatusFailed
			result.Error = out.err.Error()
			result.ErrorType = "canceled"
		default:
			result.Status = models.StatusFailed
			result.Error = out.err.Error()
			result.ErrorType = "worker_error"
		}
		o.pool.Release(worker, fingerprint)

	case <-slotCtx.Done():
		result.Duration = time.Since(start)
		if ctx.Err() != nil {
			result.Status = models.StatusFailed
			result.Error = "run canceled"
			result.ErrorType = "canceled"
		} else {
			result.Status = models.StatusTimedOut
			result.Error = fmt.Sprintf("worker exceeded %s timeout after %s", result.Timeout, result.Duration.Round(time.Millisecond))
			result.ErrorType = "timeout"
		}
		if reporter, ok := worker.(agent.PartialReporter); ok {
			result.PartialOutput = reporter.Partial()
		}
		// The worker may not honor cancellation promptly. Do not wait;
		// recover it in the background once its call returns.
		go func() {
			<-done
			cancel()
			log.Printf("[orchestrator] %s returned after its slot was abandoned, recovering worker", agentID)
			o.pool.Release(worker, fingerprint)
		}()
	}

	return result
}
