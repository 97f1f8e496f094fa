package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shelldon-ai/shelldon/pkg/runlog"
	"github.com/shelldon-ai/shelldon/pkg/shell"
)

const shellToolName = "run_shell_command"

const defaultSystemPrompt = `You are a capable assistant operating a persistent bash session on the
user's machine. Commands run in one long-lived shell: working directory,
environment variables, and started processes persist between calls.

Use the ` + shellToolName + ` tool to run commands. Read each result
carefully before deciding the next step:
- "timeout:" means the command exceeded its time budget; partial output may
  follow. The session usually survives, but a hung command may have been
  interrupted.
- "crashed:" means the shell died mid-command and was restarted; session
  state (cwd, variables) was lost.
- "blocked:" means the command was rejected by security policy. Do not try
  to work around the policy.

When you have enough information, answer the user directly without calling
the tool again.`

// shellToolSpec describes the single tool the model may call.
func shellToolSpec(defaultTimeout time.Duration) ToolSpec {
	return ToolSpec{
		Name: shellToolName,
		Description: fmt.Sprintf(
			"Run a bash command in the persistent session and return its output. "+
				"State persists between calls. Default timeout is %s.", defaultTimeout),
		Properties: map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The bash command to execute",
			},
			"timeout_seconds": map[string]any{
				"type":        "integer",
				"description": "Optional per-command timeout override in seconds",
			},
		},
		Required: []string{"command"},
	}
}

// Config holds runner configuration
type Config struct {
	Provider     LLMProvider
	Shell        Executor
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	MaxTurns     int
	ToolTimeout  time.Duration

	Transcript *runlog.RunLogger // optional
	Stats      Stats             // optional
}

// Runner drives the model/tool loop for one task at a time.
type Runner struct {
	cfg Config
}

// NewRunner creates a new agent runner
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if cfg.Shell == nil {
		return nil, fmt.Errorf("shell executor is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 20
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = shell.DefaultTimeout
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.Stats == nil {
		cfg.Stats = NopStats{}
	}
	return &Runner{cfg: cfg}, nil
}

// Run executes one task to completion and returns the model's final answer.
func (r *Runner) Run(ctx context.Context, task string) (string, error) {
	if r.cfg.Transcript != nil {
		r.cfg.Transcript.Task(task)
	}

	messages := []Message{{Role: "user", Content: task}}
	tools := []ToolSpec{shellToolSpec(r.cfg.ToolTimeout)}

	for turn := 1; turn <= r.cfg.MaxTurns; turn++ {
		resp, err := r.call(ctx, messages, tools)
		if err != nil {
			r.finish("error", turn, err)
			return "", fmt.Errorf("provider call failed: %w", err)
		}

		if r.cfg.Transcript != nil {
			r.cfg.Transcript.ModelTurn(turn, resp.Content, len(resp.ToolCalls) > 0)
		}

		if len(resp.ToolCalls) == 0 {
			if r.cfg.Transcript != nil {
				r.cfg.Transcript.Final(resp.Content)
			}
			r.cfg.Stats.RunFinished("success", turn)
			return resp.Content, nil
		}

		messages = append(messages, Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			rendered := r.runTool(ctx, turn, tc)
			messages = append(messages, Message{
				Role:       "tool",
				Content:    rendered,
				ToolCallID: tc.ID,
			})
		}
	}

	err := fmt.Errorf("%w: no final answer after %d turns", ErrMaxTurnsExceeded, r.cfg.MaxTurns)
	r.finish("max_turns", r.cfg.MaxTurns, err)
	return "", err
}

// call invokes the provider with one bounded retry on transient failures.
func (r *Runner) call(ctx context.Context, messages []Message, tools []ToolSpec) (*LLMResponse, error) {
	req := LLMRequest{
		Model:        r.cfg.Model,
		Messages:     messages,
		Tools:        tools,
		Temperature:  r.cfg.Temperature,
		MaxTokens:    r.cfg.MaxTokens,
		SystemPrompt: r.cfg.SystemPrompt,
	}

	start := time.Now()
	resp, err := r.cfg.Provider.Call(ctx, req)
	if err != nil && IsRetryableError(err) && ctx.Err() == nil {
		log.Warn().Err(err).Str("provider", r.cfg.Provider.Provider()).Msg("Provider call failed, retrying once")
		time.Sleep(time.Second)
		resp, err = r.cfg.Provider.Call(ctx, req)
	}

	status := "success"
	if err != nil {
		status = "error"
	}
	r.cfg.Stats.CallFinished(r.cfg.Provider.Provider(), status, time.Since(start))
	return resp, err
}

// runTool executes one requested shell command and renders the result for
// the model.
func (r *Runner) runTool(ctx context.Context, turn int, tc ToolCall) string {
	if tc.Name != shellToolName {
		return fmt.Sprintf("error: unknown tool %q", tc.Name)
	}

	command, ok := tc.Parameters["command"].(string)
	if !ok || command == "" {
		return "error: tool call is missing the command parameter"
	}

	timeout := r.cfg.ToolTimeout
	if secs, ok := tc.Parameters["timeout_seconds"].(float64); ok && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	if r.cfg.Transcript != nil {
		r.cfg.Transcript.ToolCall(turn, command)
	}

	res := r.cfg.Shell.ExecuteTimeout(ctx, command, timeout)
	rendered := res.Render()

	if r.cfg.Transcript != nil {
		r.cfg.Transcript.ToolResult(turn, res.Outcome.String(), rendered, res.Duration)
	}

	log.Debug().
		Str("session_id", r.cfg.Shell.ID()).
		Str("outcome", res.Outcome.String()).
		Dur("duration", res.Duration).
		Msg("Tool command finished")

	return rendered
}

func (r *Runner) finish(status string, turns int, err error) {
	r.cfg.Stats.RunFinished(status, turns)
	if r.cfg.Transcript != nil && err != nil && !errors.Is(err, context.Canceled) {
		r.cfg.Transcript.Error(err)
	}
}
