package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/morezero/backup-assistant/pkg/capability"
	"github.com/morezero/backup-assistant/pkg/db"
	"github.com/morezero/backup-assistant/pkg/events"
	"github.com/morezero/backup-assistant/pkg/response"
	"github.com/morezero/backup-assistant/pkg/semver"
	"github.com/morezero/backup-assistant/pkg/validator"
)

const logPrefix = "dispatcher:dispatch"

// PayloadValidator corrects the payload of generic operations.
type PayloadValidator interface {
	Validate(ctx context.Context, in validator.Input) validator.Result
}

// AccountResolver returns the account the remote API calls run in.
type AccountResolver interface {
	AccountID(ctx context.Context, region string) (string, error)
}

// Journal records finished invocations.
type Journal interface {
	RecordInvocation(ctx context.Context, inv *db.Invocation) error
}

// Options are the per-process limits of the dispatcher.
type Options struct {
	DefaultRegion string
	MaxResults    int
	BodyBudget    int
	// Versions gates the event message version. Nil accepts every version.
	Versions *semver.Gate
}

// Params wires a Dispatcher. Journal and Publisher are optional.
type Params struct {
	Registry  *capability.Registry
	Validator PayloadValidator
	Invoker   capability.Invoker
	Accounts  AccountResolver
	Journal   Journal
	Publisher events.EventPublisher
	Options   Options
}

// Dispatcher runs one agent turn per event.
type Dispatcher struct {
	registry  *capability.Registry
	validator PayloadValidator
	invoker   capability.Invoker
	accounts  AccountResolver
	journal   Journal
	publisher events.EventPublisher
	opts      Options
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(p Params) *Dispatcher {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.Discard
	}
	return &Dispatcher{
		registry:  p.Registry,
		validator: p.Validator,
		invoker:   p.Invoker,
		accounts:  p.Accounts,
		journal:   p.Journal,
		publisher: publisher,
		opts:      p.Options,
	}
}

// Registry returns the operation table the dispatcher serves.
func (d *Dispatcher) Registry() *capability.Registry {
	return d.registry
}

// Dispatch runs the turn described by ev and always returns a response.
func (d *Dispatcher) Dispatch(ctx context.Context, ev *Event) *Response {
	start := time.Now()
	id := uuid.NewString()
	inv := ParseEvent(ev, d.opts.DefaultRegion)
	agg := response.NewAggregator(d.opts.BodyBudget)
	tally := &tallyInvoker{next: d.invoker}

	slog.Debug(fmt.Sprintf("%s - id=%s session=%s operation=%s region=%s", logPrefix, id, ev.SessionID, inv.Operation, inv.Region))

	d.run(ctx, ev, inv, agg, tally)

	resp := &Response{
		MessageVersion: ResponseVersion,
		Response: ActionResponse{
			ActionGroup: ev.ActionGroup,
			Function:    ev.Function,
			FunctionResponse: FunctionResponse{
				ResponseState: string(agg.State()),
				ResponseBody:  ResponseBody{Text: TextBody{Body: agg.Body()}},
			},
		},
		SessionAttributes:       inv.SessionAttributes,
		PromptSessionAttributes: inv.PromptSessionAttributes,
	}

	d.record(ctx, id, ev, inv, resp, tally, time.Since(start))
	return resp
}

func (d *Dispatcher) run(ctx context.Context, ev *Event, inv *Invocation, agg *response.Aggregator, invoker *tallyInvoker) {
	if d.opts.Versions != nil && !d.opts.Versions.Accepts(ev.MessageVersion) {
		agg.Fail(fmt.Sprintf("Message version \"%s\" is not supported.", ev.MessageVersion))
		return
	}

	op, ok := d.registry.Lookup(inv.Operation)
	if !ok {
		slog.Warn(fmt.Sprintf("%s - unsupported operation %q", logPrefix, inv.Operation))
		agg.Fail(fmt.Sprintf("API \"%s\" is not supported. No API invocation was performed.", inv.Operation))
		return
	}

	if err := d.resolveAccount(ctx, inv); err != nil {
		agg.Fail(fmt.Sprintf("Unable to determine the AWS account :: \"%s\"", capability.ErrorText(err)))
		return
	}
	agg.Say(fmt.Sprintf("AWS account %s will be used.", inv.AccountID))
	agg.Say(fmt.Sprintf("AWS region %s will be used.", inv.Region))

	payload, ok := d.payload(ctx, op, inv, agg)
	if !ok {
		return
	}
	agg.Say(fmt.Sprintf("API \"%s\" was specified.", op.Name))

	if missing := op.Missing(payload); len(missing) > 0 {
		for _, msg := range missing {
			agg.Reprompt(msg)
		}
		return
	}

	if op.PageKey != "" && d.opts.MaxResults > 0 {
		if n, ok := intValue(payload[op.PageKey]); !ok || n > d.opts.MaxResults {
			payload[op.PageKey] = d.opts.MaxResults
			agg.Say(fmt.Sprintf("Results restricted to a max of %d item(s).", d.opts.MaxResults))
		}
	}

	turn := &capability.Turn{
		Reporter: agg,
		Op:       op,
		Request: &capability.Request{
			Operation: op.Name,
			AccountID: inv.AccountID,
			Region:    inv.Region,
			Intent:    inv.Intent,
			Payload:   payload,
		},
		Invoker:    invoker,
		MaxResults: d.opts.MaxResults,
	}

	handle := op.Handle
	if handle == nil {
		handle = capability.DefaultHandle
	}
	if err := handle(ctx, turn); err != nil {
		slog.Error(fmt.Sprintf("%s - %s handler failed: %v", logPrefix, op.Name, err))
		agg.Fail(fmt.Sprintf("Error occurred while processing API \"%s\" :: \"%s\"", op.Name, capability.ErrorText(err)))
	}
}

// resolveAccount fills inv.AccountID, resolving and caching it in the session bag
// when the bag does not hold one yet.
func (d *Dispatcher) resolveAccount(ctx context.Context, inv *Invocation) error {
	if inv.AccountID != "" {
		return nil
	}
	id, err := d.accounts.AccountID(ctx, inv.Region)
	if err != nil {
		return err
	}
	inv.AccountID = id
	inv.SessionAttributes[SessionAccountID] = id
	return nil
}

// payload returns the payload the operation runs with: the raw text for custom
// operations, the validator's output otherwise.
func (d *Dispatcher) payload(ctx context.Context, op *capability.Operation, inv *Invocation, agg *response.Aggregator) (capability.Payload, bool) {
	const noPayload = "API call JSON text does not exist. No API was invoked."

	if op.Custom {
		p, err := capability.ParsePayload(inv.PayloadText)
		if err != nil {
			if capability.ErrorCode(err) == capability.CodeEmptyPayload {
				agg.Fail(noPayload)
			} else {
				agg.Fail(fmt.Sprintf("API call JSON text for \"%s\" is not a valid JSON object. No API was invoked.", op.Name))
			}
			return nil, false
		}
		return p, true
	}

	res := d.validator.Validate(ctx, validator.Input{
		AccountID: inv.AccountID,
		Region:    inv.Region,
		Operation: op.Name,
		Intent:    inv.Intent,
		Payload:   inv.PayloadText,
	})
	if res.Empty() {
		agg.Fail(noPayload)
		return nil, false
	}
	if res.Changelog != "" {
		slog.Info(fmt.Sprintf("%s - %s payload corrected: %s", logPrefix, op.Name, res.Changelog))
	}
	return res.Payload, true
}

func (d *Dispatcher) record(ctx context.Context, id string, ev *Event, inv *Invocation, resp *Response, tally *tallyInvoker, took time.Duration) {
	state := resp.State()
	if state == "" {
		state = "SUCCESS"
	}
	bodyBytes := len(resp.Body())

	if d.journal != nil {
		err := d.journal.RecordInvocation(ctx, &db.Invocation{
			ID:         id,
			SessionID:  ev.SessionID,
			Operation:  inv.Operation,
			Region:     inv.Region,
			AccountID:  inv.AccountID,
			State:      state,
			Repaired:   tally.has(capability.Repaired),
			Handled:    tally.has(capability.Handled),
			BodyBytes:  bodyBytes,
			DurationMs: took.Milliseconds(),
			Created:    time.Now().UTC(),
		})
		if err != nil {
			slog.Error(fmt.Sprintf("%s - failed to record invocation %s: %v", logPrefix, id, err))
		}
	}

	err := d.publisher.PublishCompleted(ctx, &events.ActionCompletedEvent{
		InvocationID: id,
		SessionID:    ev.SessionID,
		Operation:    inv.Operation,
		Region:       inv.Region,
		AccountID:    inv.AccountID,
		State:        state,
		Outcomes:     tally.kinds(),
		BodyBytes:    bodyBytes,
		DurationMs:   took.Milliseconds(),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish completion of %s: %v", logPrefix, id, err))
	}

	slog.Info(fmt.Sprintf("%s - %s operation=%s state=%s bytes=%d took=%s", logPrefix, id, inv.Operation, state, bodyBytes, took))
}

// tallyInvoker remembers the outcome of every call made during a turn.
type tallyInvoker struct {
	next     capability.Invoker
	outcomes []capability.Kind
}

func (t *tallyInvoker) Invoke(ctx context.Context, op *capability.Operation, req *capability.Request) capability.Outcome {
	out := t.next.Invoke(ctx, op, req)
	t.outcomes = append(t.outcomes, out.Kind)
	return out
}

func (t *tallyInvoker) has(k capability.Kind) bool {
	for _, o := range t.outcomes {
		if o == k {
			return true
		}
	}
	return false
}

func (t *tallyInvoker) kinds() []string {
	out := make([]string, 0, len(t.outcomes))
	for _, o := range t.outcomes {
		out = append(out, o.String())
	}
	return out
}

func intValue(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case float64:
		return int(t), true
	case json.Number:
		n, err := t.Int64()
		return int(n), err == nil
	case string:
		n, err := strconv.Atoi(t)
		return n, err == nil
	}
	return 0, false
}
