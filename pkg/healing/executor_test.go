package healing

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morezero/backup-assistant/pkg/capability"
	"github.com/morezero/backup-assistant/pkg/llm"
	"github.com/morezero/backup-assistant/pkg/llm/llmtest"
)

type scriptedAPI struct {
	errs     []error
	payloads []capability.Payload
}

func (s *scriptedAPI) execute(_ context.Context, req *capability.Request) (capability.Payload, error) {
	i := len(s.payloads)
	s.payloads = append(s.payloads, req.Payload)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	return capability.Payload{"Attempt": i + 1}, nil
}

func newOp(api *scriptedAPI) *capability.Operation {
	return &capability.Operation{
		Name:    "replicate_item",
		Execute: api.execute,
		Errors: []capability.ErrorRule{
			{Code: "InvalidParameterValue", Message: `The ARN "{SourceArn}" is not a valid ARN.`},
		},
	}
}

func request() *capability.Request {
	return &capability.Request{Operation: "replicate_item", Region: "us-east-1", Payload: capability.Payload{"SourceArn": "arn:x"}}
}

func fixedReply(body string) string {
	return llmtest.Wrap("FIXED_API_JSON", body)
}

func TestInvoke_SucceedsFirstTime(t *testing.T) {
	api := &scriptedAPI{}
	stub := llmtest.NewStub()
	out := New(stub, llm.DefaultTemplates().Repair).Invoke(context.Background(), newOp(api), request())

	assert.Equal(t, capability.Succeeded, out.Kind)
	assert.Equal(t, "1", out.Result.String("Attempt"))
	assert.Len(t, api.payloads, 1)
	assert.Equal(t, 0, stub.Calls())
}

func TestInvoke_ClassifiedErrorIsHandledWithoutRepair(t *testing.T) {
	api := &scriptedAPI{errs: []error{&smithy.GenericAPIError{Code: "InvalidParameterValue", Message: "bad arn"}}}
	stub := llmtest.NewStub(fixedReply(`{}`))
	out := New(stub, llm.DefaultTemplates().Repair).Invoke(context.Background(), newOp(api), request())

	assert.Equal(t, capability.Handled, out.Kind)
	assert.Equal(t, `The ARN "arn:x" is not a valid ARN.`, out.Message)
	assert.Len(t, api.payloads, 1)
	assert.Equal(t, 0, stub.Calls())
}

func TestInvoke_RepairsOnce(t *testing.T) {
	api := &scriptedAPI{errs: []error{&smithy.GenericAPIError{Code: "ValidationException", Message: "SourceArn malformed"}}}
	stub := llmtest.NewStub(fixedReply(`{"SourceArn":"arn:aws:rds:us-east-1:1:db:x"}`))
	out := New(stub, llm.DefaultTemplates().Repair).Invoke(context.Background(), newOp(api), request())

	assert.Equal(t, capability.Repaired, out.Kind)
	assert.Equal(t, "2", out.Result.String("Attempt"))
	require.Len(t, api.payloads, 2)
	assert.Equal(t, "arn:aws:rds:us-east-1:1:db:x", api.payloads[1].String("SourceArn"))
	assert.Equal(t, "arn:aws:rds:us-east-1:1:db:x", out.Payload.String("SourceArn"))

	require.Equal(t, 1, stub.Calls())
	user := stub.Prompts[0].User
	assert.Contains(t, user, "replicate_item")
	assert.Contains(t, user, `{"SourceArn":"arn:x"}`)
	assert.Contains(t, user, "ValidationException: SourceArn malformed")
}

func TestInvoke_AlwaysFailingAPIEscalatesAfterExactlyTwoCalls(t *testing.T) {
	fail := errors.New("internal failure")
	api := &scriptedAPI{errs: []error{fail, errors.New("still failing"), errors.New("never reached")}}
	stub := llmtest.NewStub(fixedReply(`{"SourceArn":"other"}`))
	out := New(stub, llm.DefaultTemplates().Repair).Invoke(context.Background(), newOp(api), request())

	assert.Equal(t, capability.Escalated, out.Kind)
	assert.EqualError(t, out.Err, "still failing")
	assert.Len(t, api.payloads, 2)
	assert.Equal(t, 1, stub.Calls())
}

func TestInvoke_UnusableRepairEscalatesWithoutRetry(t *testing.T) {
	tests := []struct {
		name string
		stub *llmtest.Stub
	}{
		{"no tag", llmtest.NewStub("I am not sure")},
		{"not an object", llmtest.NewStub(fixedReply(`"SourceArn"`))},
		{"completion unreachable", &llmtest.Stub{Err: errors.New("connection refused")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := errors.New("first failure")
			api := &scriptedAPI{errs: []error{first}}
			out := New(tt.stub, llm.DefaultTemplates().Repair).Invoke(context.Background(), newOp(api), request())

			assert.Equal(t, capability.Escalated, out.Kind)
			assert.ErrorIs(t, out.Err, first)
			assert.Len(t, api.payloads, 1)
			assert.Equal(t, 1, tt.stub.Calls())
		})
	}
}

func TestInvoke_OperationWithoutExecute(t *testing.T) {
	op := &capability.Operation{Name: "composite"}
	out := New(llmtest.NewStub(), llm.DefaultTemplates().Repair).Invoke(context.Background(), op, request())
	assert.Equal(t, capability.Escalated, out.Kind)
	assert.Error(t, out.Err)
}

func TestInvoke_NoRepairEscalatesWithoutCompletion(t *testing.T) {
	fail := errors.New("listing failed")
	api := &scriptedAPI{errs: []error{fail}}
	op := newOp(api)
	op.Custom = true
	op.NoRepair = true
	stub := llmtest.NewStub(fixedReply(`{"SourceArn":"other"}`))

	out := New(stub, llm.DefaultTemplates().Repair).Invoke(context.Background(), op, request())

	assert.Equal(t, capability.Escalated, out.Kind)
	assert.ErrorIs(t, out.Err, fail)
	assert.Len(t, api.payloads, 1)
	assert.Zero(t, stub.Calls())
}

func TestInvoke_RepromptRuleIsCarried(t *testing.T) {
	api := &scriptedAPI{errs: []error{capability.NewError("ItemNotFound", "no item")}}
	op := newOp(api)
	op.Errors = append(op.Errors, capability.ErrorRule{Code: "ItemNotFound", Message: `Item "{SourceArn}" does not exist.`, Reprompt: true})
	stub := llmtest.NewStub()

	out := New(stub, llm.DefaultTemplates().Repair).Invoke(context.Background(), op, request())

	assert.Equal(t, capability.Handled, out.Kind)
	assert.True(t, out.Reprompt)
	assert.Equal(t, `Item "arn:x" does not exist.`, out.Message)
	assert.Zero(t, stub.Calls())
}
