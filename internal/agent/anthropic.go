package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ShayCichocki/hydra/internal/config"
)

// completionToolName is the side channel a worker can use to signal it
// considers the task done.
const completionToolName = "mark_task_complete"

// anthropicWorker answers queries with the Anthropic Messages API.
// One Run is one bounded conversation: the completion tool (when
// enabled) is the only tool, so the loop ends on end_turn, on the
// completion signal, or at the iteration cap.
type anthropicWorker struct {
	client anthropic.Client
	cfg    config.AgentConfig
	opts   BuildOptions
}

// NewAnthropicWorker builds a worker backed by the Anthropic API.
func NewAnthropicWorker(cfg config.AgentConfig, opts BuildOptions) (Worker, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("agent %s: anthropic provider requires api_key", cfg.AgentID)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("agent %s: anthropic provider requires model", cfg.AgentID)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}

	return &anthropicWorker{
		client: anthropic.NewClient(reqOpts...),
		cfg:    cfg,
		opts:   opts,
	}, nil
}

// Run issues the query and collects the text response.
func (w *anthropicWorker) Run(ctx context.Context, query string) (*Result, error) {
	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(query)),
	}

	var tools []anthropic.ToolUnionParam
	if !w.opts.DisableTools && !w.opts.SuppressCompletion {
		tools = completionToolDefinition()
	}

	result := &Result{}
	var text strings.Builder

	for iteration := 0; iteration < w.cfg.MaxIterations; iteration++ {
		params := anthropic.MessageNewParams{
			Model:     anthropic.Model(w.cfg.Model),
			MaxTokens: int64(w.cfg.MaxTokens),
			Messages:  messages,
			Tools:     tools,
		}
		if w.cfg.SystemPrompt != "" {
			params.System = []anthropic.TextBlockParam{{Text: w.cfg.SystemPrompt}}
		}

		resp, err := w.client.Messages.New(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("agent %s: API call failed: %w", w.cfg.AgentID, err)
		}

		var assistantBlocks []anthropic.ContentBlockParamUnion
		var toolResultBlocks []anthropic.ContentBlockParamUnion

		for _, block := range resp.Content {
			switch variant := block.AsAny().(type) {
			case anthropic.TextBlock:
				text.WriteString(variant.Text)
				assistantBlocks = append(assistantBlocks, anthropic.NewTextBlock(variant.Text))
			case anthropic.ToolUseBlock:
				assistantBlocks = append(assistantBlocks,
					anthropic.NewToolUseBlock(variant.ID, variant.Input, variant.Name))
				if variant.Name == completionToolName {
					result.CompletionSignaled = true
				}
				toolResultBlocks = append(toolResultBlocks,
					anthropic.NewToolResultBlock(variant.ID, "acknowledged", false))
			}
		}

		if resp.StopReason == anthropic.StopReasonEndTurn || result.CompletionSignaled {
			result.Text = text.String()
			return result, nil
		}

		messages = append(messages, anthropic.NewAssistantMessage(assistantBlocks...))
		if len(toolResultBlocks) > 0 {
			messages = append(messages, anthropic.NewUserMessage(toolResultBlocks...))
		}
	}

	result.Text = text.String()
	if result.Text == "" {
		return nil, fmt.Errorf("agent %s: max iterations (%d) reached without a response", w.cfg.AgentID, w.cfg.MaxIterations)
	}
	return result, nil
}

// completionToolDefinition returns the single task-completion tool.
func completionToolDefinition() []anthropic.ToolUnionParam {
	return []anthropic.ToolUnionParam{
		{
			OfTool: &anthropic.ToolParam{
				Name:        completionToolName,
				Description: anthropic.String("Signal that the task is fully answered. Call this only after providing the complete answer as text."),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: map[string]interface{}{
						"summary": map[string]interface{}{
							"type":        "string",
							"description": "One-line summary of the completed answer",
						},
					},
				},
			},
		},
	}
}
