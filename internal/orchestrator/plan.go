package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/ShayCichocki/hydra/internal/agent"
	"github.com/ShayCichocki/hydra/internal/config"
)

// defaultQuestionPrompt is the planning template used when the source
// does not configure one. {task} and {count} are substituted.
const defaultQuestionPrompt = `You are an orchestrator preparing to analyze this task from multiple angles:

{task}

Generate exactly {count} different, specific questions that together cover the task thoroughly. Each question should approach the task from a distinct direction.

Return ONLY a JSON array of {count} strings, nothing else.`

// fallbackTemplates are the deterministic question shapes used when
// planning fails. For counts beyond the template set they repeat.
var fallbackTemplates = []string{
	"Research comprehensive information about: %s",
	"Analyze and provide insights about: %s",
	"Find alternative perspectives on: %s",
	"Verify and cross-check facts about: %s",
}

// plan produces exactly n subquestions for the task. It never returns
// an error: a planner that cannot be built, fails its call, or returns
// unusable output is logged and replaced by templated questions, so
// planning can never stall the pipeline.
func (o *Orchestrator) plan(ctx context.Context, snap *config.Snapshot, task string, n int) []string {
	cfg, err := o.resolver.Resolve(snap, config.OrchestratorAgentID)
	if err != nil {
		log.Printf("[orchestrator] planner unavailable, using templated questions: %v", err)
		return fallbackQuestions(task, n)
	}

	// The planner must answer in plain text, so its completion side
	// channel is suppressed.
	planner, err := o.registry.Build(cfg, agent.BuildOptions{SuppressCompletion: true})
	if err != nil {
		log.Printf("[orchestrator] planner construction failed, using templated questions: %v", err)
		return fallbackQuestions(task, n)
	}

	prompt := questionPrompt(snap, task, n)
	resp, err := planner.Run(ctx, prompt)
	if err != nil {
		log.Printf("[orchestrator] planning call failed, using templated questions: %v", err)
		return fallbackQuestions(task, n)
	}

	questions, err := parsePlan(resp.Text)
	if err != nil {
		log.Printf("[orchestrator] could not parse plan, using templated questions: %v", err)
		return fallbackQuestions(task, n)
	}

	return fitCount(questions, task, n)
}

// questionPrompt renders the planning prompt from the configured
// template, falling back to the built-in one.
func questionPrompt(snap *config.Snapshot, task string, n int) string {
	tmpl := snap.Orchestrator.QuestionPrompt
	if tmpl == "" {
		tmpl = defaultQuestionPrompt
	}
	out := strings.ReplaceAll(tmpl, "{task}", task)
	return strings.ReplaceAll(out, "{count}", fmt.Sprintf("%d", n))
}

// parsePlan extracts a JSON array of strings from raw planner output.
// Lenient on framing: the array is located between the first '[' and
// the last ']', so surrounding prose or code fences are tolerated.
func parsePlan(raw string) ([]string, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end == -1 || end < start {
		return nil, fmt.Errorf("no JSON array in planner output")
	}

	var items []any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("planner output is not a JSON array: %w", err)
	}

	questions := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("planner array element %d is not a string", i)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		questions = append(questions, s)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("planner array contained no usable questions")
	}
	return questions, nil
}

// fitCount pads a short list with templated fillers and truncates a
// long one, so execution always sees exactly n questions.
func fitCount(questions []string, task string, n int) []string {
	if len(questions) > n {
		return questions[:n]
	}
	for i := len(questions); i < n; i++ {
		questions = append(questions, fallbackQuestion(task, i))
	}
	return questions
}

// fallbackQuestions returns n templated questions derived from the task.
func fallbackQuestions(task string, n int) []string {
	questions := make([]string, n)
	for i := range questions {
		questions[i] = fallbackQuestion(task, i)
	}
	return questions
}

func fallbackQuestion(task string, i int) string {
	return fmt.Sprintf(fallbackTemplates[i%len(fallbackTemplates)], task)
}
