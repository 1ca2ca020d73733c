package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/hydra/pkg/models"
)

// AggregateError reports a run in which zero subtasks succeeded. It
// carries every slot's diagnostic so nothing about the failure is lost.
type AggregateError struct {
	// Task is the original user task.
	Task string
	// Results holds all slot outcomes, in submission order.
	Results []models.SubtaskResult
}

// Error lists every slot's diagnostic.
func (e *AggregateError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "all %d subtasks failed for task %q:", len(e.Results), e.Task)
	for _, r := range e.Results {
		fmt.Fprintf(&b, "\n  agent_%d [%s]", r.Index+1, r.Status)
		if r.Status == models.StatusTimedOut {
			fmt.Fprintf(&b, " after %s (limit %s)", r.Duration.Round(time.Millisecond), r.Timeout)
		}
		if r.Error != "" {
			fmt.Fprintf(&b, ": %s", r.Error)
		}
	}
	return b.String()
}
