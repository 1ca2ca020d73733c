package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/ShayCichocki/hydra/internal/agent"
	"github.com/ShayCichocki/hydra/internal/config"
	"github.com/ShayCichocki/hydra/pkg/models"
)

// defaultSynthesisPrompt is the merging template used when the source
// does not configure one. {count} and {responses} are substituted.
const defaultSynthesisPrompt = `You have {count} responses from different agents that analyzed the same task from different angles:

{responses}

Combine them into one comprehensive, coherent answer. Resolve contradictions explicitly, remove repetition, and keep every substantive finding. Respond with the final answer only.`

// synthesize merges the successful results into one answer. The
// AI-backed path can fail at any point; the deterministic fallback
// guarantees an answer whenever at least one subtask succeeded. Zero
// successes is the only total failure and surfaces every diagnostic.
func (o *Orchestrator) synthesize(ctx context.Context, snap *config.Snapshot, task string, results []models.SubtaskResult) (*models.FinalAnswer, error) {
	var successes []models.SubtaskResult
	for _, r := range results {
		if r.Succeeded() {
			successes = append(successes, r)
		}
	}

	if len(successes) == 0 {
		return nil, &AggregateError{Task: task, Results: results}
	}

	if len(successes) == 1 {
		return &models.FinalAnswer{Text: successes[0].Response, Successes: 1}, nil
	}

	text, err := o.callSynthesizer(ctx, snap, successes)
	if err != nil {
		log.Printf("[orchestrator] synthesis call failed, using simple concatenation: %v", err)
		return fallbackSynthesis(successes), nil
	}
	return &models.FinalAnswer{Text: text, Successes: len(successes)}, nil
}

// callSynthesizer builds a fresh synthesizer worker and makes one
// merging call. Tools and the completion side channel are both off so
// the single response is the answer, taken verbatim.
func (o *Orchestrator) callSynthesizer(ctx context.Context, snap *config.Snapshot, successes []models.SubtaskResult) (string, error) {
	cfg, err := o.resolver.Resolve(snap, config.OrchestratorAgentID)
	if err != nil {
		return "", fmt.Errorf("resolve synthesizer config: %w", err)
	}

	synthesizer, err := o.registry.Build(cfg, agent.BuildOptions{
		DisableTools:       true,
		SuppressCompletion: true,
	})
	if err != nil {
		return "", fmt.Errorf("construct synthesizer: %w", err)
	}

	resp, err := synthesizer.Run(ctx, synthesisPrompt(snap, successes))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", fmt.Errorf("synthesizer returned an empty response")
	}
	return resp.Text, nil
}

// synthesisPrompt renders the merging prompt from the configured
// template, falling back to the built-in one.
func synthesisPrompt(snap *config.Snapshot, successes []models.SubtaskResult) string {
	tmpl := snap.Orchestrator.SynthesisPrompt
	if tmpl == "" {
		tmpl = defaultSynthesisPrompt
	}
	out := strings.ReplaceAll(tmpl, "{count}", fmt.Sprintf("%d", len(successes)))
	return strings.ReplaceAll(out, "{responses}", concatenate(successes))
}

// fallbackSynthesis is the deterministic no-AI merge: successful
// responses concatenated under numbered headings.
func fallbackSynthesis(successes []models.SubtaskResult) *models.FinalAnswer {
	return &models.FinalAnswer{
		Text:      concatenate(successes),
		Successes: len(successes),
		Fallback:  true,
	}
}

// concatenate joins responses under per-agent headings. Heading numbers
// follow the slot index so they match the agent ids used during the run.
func concatenate(successes []models.SubtaskResult) string {
	var b strings.Builder
	for i, r := range successes {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "=== Agent %d Response ===\n%s", r.Index+1, r.Response)
	}
	return b.String()
}
