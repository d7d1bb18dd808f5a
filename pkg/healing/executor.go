// Package healing executes operations with at most one model-assisted repair of the
// request payload.
package healing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/backup-assistant/pkg/capability"
	"github.com/morezero/backup-assistant/pkg/llm"
)

const logPrefix = "healing:executor"

// Executor implements capability.Invoker.
//
// A call goes DISPATCHED -> EXECUTING and ends SUCCEEDED, HANDLED or, through one
// REPAIR_RETRY, SUCCEEDED (repaired) or ESCALATED. The remote call runs at most twice
// and the completion service is asked at most once per call. Operations marked
// NoRepair escalate on the first unclassified failure.
type Executor struct {
	completer llm.Completer
	tpl       llm.Template
}

// New creates an Executor that repairs payloads with tpl.
func New(completer llm.Completer, tpl llm.Template) *Executor {
	return &Executor{completer: completer, tpl: tpl}
}

// Invoke runs op with req.Payload.
func (e *Executor) Invoke(ctx context.Context, op *capability.Operation, req *capability.Request) capability.Outcome {
	if op.Execute == nil {
		return capability.Outcome{
			Kind:    capability.Escalated,
			Err:     fmt.Errorf("%s - operation %s cannot be executed directly", logPrefix, op.Name),
			Payload: req.Payload,
		}
	}

	result, err := op.Execute(ctx, req)
	if err == nil {
		return capability.Outcome{Kind: capability.Succeeded, Result: result, Payload: req.Payload}
	}

	if rule, ok := op.Classify(err, req.Payload); ok {
		slog.Info(fmt.Sprintf("%s - %s returned handled error %s", logPrefix, op.Name, rule.Code))
		return capability.Outcome{Kind: capability.Handled, Message: rule.Message, Reprompt: rule.Reprompt, Payload: req.Payload}
	}

	if op.NoRepair {
		slog.Error(fmt.Sprintf("%s - %s failed: %v", logPrefix, op.Name, err))
		return capability.Outcome{Kind: capability.Escalated, Err: err, Payload: req.Payload}
	}

	slog.Warn(fmt.Sprintf("%s - %s failed, requesting repair: %v", logPrefix, op.Name, err))
	fixed, ok := e.repair(ctx, op.Name, req.Payload, err)
	if !ok {
		return capability.Outcome{Kind: capability.Escalated, Err: err, Payload: req.Payload}
	}

	result, err = op.Execute(ctx, req.WithPayload(fixed))
	if err != nil {
		slog.Error(fmt.Sprintf("%s - %s failed after repair: %v", logPrefix, op.Name, err))
		return capability.Outcome{Kind: capability.Escalated, Err: err, Payload: fixed}
	}

	slog.Info(fmt.Sprintf("%s - %s succeeded after repair", logPrefix, op.Name))
	return capability.Outcome{Kind: capability.Repaired, Result: result, Payload: fixed}
}

func (e *Executor) repair(ctx context.Context, name string, payload capability.Payload, cause error) (capability.Payload, bool) {
	prompt := e.tpl.Render(map[string]string{
		llm.VarAPIName:  name,
		llm.VarAPIJSON:  payload.JSON(),
		llm.VarAPIError: capability.ErrorText(cause),
	})

	out, err := e.completer.Complete(ctx, prompt)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - repair call for %s failed: %v", logPrefix, name, err))
		return nil, false
	}

	raw := llm.Tagged(out.Text, e.tpl.Tag)
	if raw == "" {
		slog.Warn(fmt.Sprintf("%s - no <%s> block in repair reply for %s", logPrefix, e.tpl.Tag, name))
		return nil, false
	}
	fixed, err := capability.ParsePayload(raw)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - repaired payload for %s is unusable: %v", logPrefix, name, err))
		return nil, false
	}
	return fixed, true
}
