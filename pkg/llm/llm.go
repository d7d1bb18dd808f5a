// Package llm abstracts the text-generation service used to validate and repair
// operation payloads. Every call is a single system instruction plus one user message
// decoded at temperature zero.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const logPrefix = "llm:llm"

// Prompt is one request to the completion service.
type Prompt struct {
	System string
	User   string
}

// Usage holds token accounting reported by the provider.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// Completion is the generated text plus provider metadata.
type Completion struct {
	Text       string
	StopReason string
	Usage      Usage
	Latency    time.Duration
}

// Completer is the port over a request/response text-generation call.
type Completer interface {
	Complete(ctx context.Context, prompt Prompt) (*Completion, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt Prompt) (*Completion, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, prompt Prompt) (*Completion, error) {
	return f(ctx, prompt)
}

// Error is returned when the provider call itself fails.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s completion failed: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// LoggingCompleter logs prompts, generated text, usage and latency around each call.
type LoggingCompleter struct {
	next Completer
}

// WithActivityLog wraps c so every call is logged at info level.
func WithActivityLog(c Completer) *LoggingCompleter {
	return &LoggingCompleter{next: c}
}

// Complete delegates to the wrapped completer.
func (l *LoggingCompleter) Complete(ctx context.Context, prompt Prompt) (*Completion, error) {
	slog.Info(fmt.Sprintf("%s - System prompt: %s", logPrefix, prompt.System))
	slog.Info(fmt.Sprintf("%s - User prompt: %s", logPrefix, prompt.User))

	out, err := l.next.Complete(ctx, prompt)
	if err != nil {
		slog.Info(fmt.Sprintf("%s - Completion failed: %v", logPrefix, err))
		return nil, err
	}

	slog.Info(fmt.Sprintf("%s - Response: %s", logPrefix, out.Text))
	slog.Info(fmt.Sprintf("%s - Usage: input=%d output=%d total=%d stop=%s latency=%s",
		logPrefix, out.Usage.InputTokens, out.Usage.OutputTokens, out.Usage.TotalTokens, out.StopReason, out.Latency))
	return out, nil
}
