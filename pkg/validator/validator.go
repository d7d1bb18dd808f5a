// Package validator asks the completion service to check and correct a generated
// operation payload before it is executed.
package validator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/morezero/backup-assistant/pkg/capability"
	"github.com/morezero/backup-assistant/pkg/llm"
)

const logPrefix = "validator:validator"

// Input is what the model sees.
type Input struct {
	AccountID string
	Region    string
	Operation string
	Intent    string
	Payload   string
}

// Result of a validation. A nil Payload means no usable payload was produced.
type Result struct {
	Payload   capability.Payload
	Raw       string
	Changelog string
}

// Empty reports whether validation produced nothing usable.
func (r Result) Empty() bool {
	return r.Payload == nil
}

// Validator renders the validation template and extracts the corrected payload.
type Validator struct {
	completer llm.Completer
	tpl       llm.Template
}

// New creates a Validator.
func New(completer llm.Completer, tpl llm.Template) *Validator {
	return &Validator{completer: completer, tpl: tpl}
}

// Validate never fails. A completion error, a missing tag or an extracted value that is
// not a JSON object all produce an empty Result.
func (v *Validator) Validate(ctx context.Context, in Input) Result {
	prompt := v.tpl.Render(map[string]string{
		llm.VarAccountID:     in.AccountID,
		llm.VarRegion:        in.Region,
		llm.VarAPIName:       in.Operation,
		llm.VarUserInput:     in.Intent,
		llm.VarGeneratedJSON: in.Payload,
	})

	out, err := v.completer.Complete(ctx, prompt)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - validation call for %s failed: %v", logPrefix, in.Operation, err))
		return Result{}
	}

	res := Result{
		Raw:       llm.Tagged(out.Text, v.tpl.Tag),
		Changelog: llm.Tagged(out.Text, v.tpl.ChangelogTag),
	}
	if res.Raw == "" {
		slog.Warn(fmt.Sprintf("%s - no <%s> block in validation reply for %s", logPrefix, v.tpl.Tag, in.Operation))
		return res
	}

	p, err := capability.ParsePayload(res.Raw)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - validated payload for %s is unusable: %v", logPrefix, in.Operation, err))
		return res
	}
	res.Payload = p
	slog.Debug(fmt.Sprintf("%s - validated %s changelog=%q", logPrefix, in.Operation, res.Changelog))
	return res
}
