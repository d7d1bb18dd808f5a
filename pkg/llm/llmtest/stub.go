// Package llmtest provides a deterministic Completer for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/morezero/backup-assistant/pkg/llm"
)

// Stub returns canned replies in order. After the replies run out the last one repeats.
// A non-nil Err is returned from every call instead.
type Stub struct {
	mu      sync.Mutex
	Replies []string
	Err     error
	Prompts []llm.Prompt
}

// NewStub creates a Stub that answers with replies.
func NewStub(replies ...string) *Stub {
	return &Stub{Replies: replies}
}

// Complete records the prompt and returns the next reply.
func (s *Stub) Complete(_ context.Context, prompt llm.Prompt) (*llm.Completion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Prompts = append(s.Prompts, prompt)
	if s.Err != nil {
		return nil, s.Err
	}
	text := ""
	if n := len(s.Replies); n > 0 {
		i := len(s.Prompts) - 1
		if i >= n {
			i = n - 1
		}
		text = s.Replies[i]
	}
	return &llm.Completion{Text: text, StopReason: "end_turn"}, nil
}

// Calls reports how many prompts were received.
func (s *Stub) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Prompts)
}

// Wrap encloses body in <tag></tag>.
func Wrap(tag, body string) string {
	return "<" + tag + ">" + body + "</" + tag + ">"
}
