package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shelldon-ai/shelldon/pkg/shell"
)

var (
	// ErrMaxTurnsExceeded indicates the model did not produce a final answer
	// within the configured turn budget
	ErrMaxTurnsExceeded = errors.New("max turns exceeded")

	// ErrUnsupportedProvider indicates an unknown provider name
	ErrUnsupportedProvider = errors.New("unsupported provider")
)

// LLMProvider is an interface for LLM API providers
type LLMProvider interface {
	// Call makes an LLM API call
	Call(ctx context.Context, request LLMRequest) (*LLMResponse, error)

	// Provider returns the provider name
	Provider() string
}

// ToolSpec describes a tool offered to the model.
type ToolSpec struct {
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// LLMRequest contains the request parameters for LLM call
type LLMRequest struct {
	Model        string
	Messages     []Message
	Tools        []ToolSpec
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// LLMResponse contains the response from LLM
type LLMResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     *TokenUsage
}

// ToolCall represents a tool invocation requested by the model
type ToolCall struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Message represents one turn in the conversation
type Message struct {
	Role       string     `json:"role"` // user, assistant, tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Executor is the slice of the shell surface the agent drives.
type Executor interface {
	ExecuteTimeout(ctx context.Context, command string, timeout time.Duration) shell.Result
	ID() string
}

// Stats receives counters from the run loop. Implementations must be safe
// for concurrent use.
type Stats interface {
	RunFinished(status string, turns int)
	CallFinished(provider string, status string, duration time.Duration)
}

// NopStats discards all counters.
type NopStats struct{}

// RunFinished implements Stats.
func (NopStats) RunFinished(string, int) {}

// CallFinished implements Stats.
func (NopStats) CallFinished(string, string, time.Duration) {}

// NewProvider creates an LLM provider by name.
func NewProvider(provider, apiKey string) (LLMProvider, error) {
	switch provider {
	case "anthropic":
		return NewAnthropicProvider(apiKey), nil
	case "openai":
		return NewOpenAIProvider(apiKey), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProvider, provider)
	}
}

// IsRetryableError checks if a provider error should be retried
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())

	// Network errors
	if strings.Contains(msg, "econnreset") || strings.Contains(msg, "etimedout") {
		return true
	}

	// Rate limits
	if strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") {
		return true
	}

	// Server errors
	for _, code := range []string{"500", "502", "503", "504"} {
		if strings.Contains(msg, code) {
			return true
		}
	}

	return false
}
