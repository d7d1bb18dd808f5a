package capability

import (
	"context"
	"fmt"
)

// Reporter collects the diagnostic text of a turn.
type Reporter interface {
	// Say adds an informational message.
	Say(msg string)
	// Reprompt adds a message asking the user for more input.
	Reprompt(msg string)
	// Fail adds a message and marks the turn failed.
	Fail(msg string)
}

// Invoker runs one logical API call of op, including any repair.
type Invoker interface {
	Invoke(ctx context.Context, op *Operation, req *Request) Outcome
}

// Turn is the state an operation handler works with.
type Turn struct {
	Reporter
	Op         *Operation
	Request    *Request
	Invoker    Invoker
	MaxResults int
}

// Call executes the turn's operation with payload through the invoker.
func (t *Turn) Call(ctx context.Context, payload Payload) Outcome {
	return t.Invoker.Invoke(ctx, t.Op, t.Request.WithPayload(payload))
}

// CallOp executes another operation within the same turn, e.g. a creation step of a
// composite workflow.
func (t *Turn) CallOp(ctx context.Context, op *Operation, payload Payload) Outcome {
	req := t.Request.WithPayload(payload)
	req.Operation = op.Name
	return t.Invoker.Invoke(ctx, op, req)
}

// Settle reports a non-successful outcome and returns whether a result is available.
func (t *Turn) Settle(op *Operation, o Outcome) bool {
	switch o.Kind {
	case Succeeded:
		return true
	case Repaired:
		t.Say(fmt.Sprintf("API \"%s\" succeeded after its request was corrected.", op.Name))
		return true
	case Handled:
		if o.Reprompt {
			t.Reprompt(o.Message)
		} else {
			t.Say(o.Message)
		}
		return false
	default:
		t.Fail(op.FailureMessage(o.Payload, o.Err))
		return false
	}
}

// DefaultHandle executes the operation once and reports its summary.
func DefaultHandle(ctx context.Context, t *Turn) error {
	out := t.Call(ctx, t.Request.Payload)
	if t.Settle(t.Op, out) {
		t.Say(t.Op.Summarize(out.Payload, out.Result))
	}
	return nil
}
