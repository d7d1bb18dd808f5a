package capability

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Request is everything one execution of an operation needs.
type Request struct {
	Operation string
	AccountID string
	Region    string
	Intent    string
	Payload   Payload
}

// WithPayload returns a copy of r carrying p.
func (r *Request) WithPayload(p Payload) *Request {
	c := *r
	c.Payload = p
	return &c
}

// ExecuteFunc performs the remote call for an operation.
type ExecuteFunc func(ctx context.Context, req *Request) (Payload, error)

// HandleFunc drives a whole turn for an operation that needs more than one call or a
// precheck. A returned error is reported as a failure of the turn.
type HandleFunc func(ctx context.Context, t *Turn) error

// Requirement is satisfied when any of Fields holds a non-empty value.
type Requirement struct {
	Fields  []string
	Message string
}

// Need declares a required field with the message reported when it is missing.
func Need(field, message string) Requirement {
	return Requirement{Fields: []string{field}, Message: message}
}

// NeedAny declares a requirement satisfied by any one of fields.
func NeedAny(message string, fields ...string) Requirement {
	return Requirement{Fields: fields, Message: message}
}

// Satisfied reports whether p meets r.
func (r Requirement) Satisfied(p Payload) bool {
	for _, f := range r.Fields {
		if p.Has(f) {
			return true
		}
	}
	return false
}

// ErrorRule maps a remote error code to a fixed message. Message may reference payload
// values as {Path}. A Reprompt rule asks the user to correct the input instead of
// reporting the message as information.
type ErrorRule struct {
	Code     string
	Message  string
	Reprompt bool
}

// Operation describes one named action. Operations are immutable once registered.
type Operation struct {
	Name        string
	Service     string
	Description string
	// Custom operations skip LLM validation; their payload is used as given.
	Custom bool
	// NoRepair escalates unclassified failures without asking for a repaired payload.
	// It is set on operations whose Execute is not a single API call.
	NoRepair bool
	Requires []Requirement
	// PageKey names the parameter that carries the result limit, e.g. MaxResults.
	PageKey string
	// Label and ResultKey drive the default summary "<Label> :: <result[ResultKey]>".
	Label     string
	ResultKey string
	// FailLabel prefixes the error text when the call escalates.
	FailLabel string
	Errors    []ErrorRule
	Execute   ExecuteFunc
	Handle    HandleFunc
}

// Missing returns the messages for every unmet requirement in declaration order.
func (o *Operation) Missing(p Payload) []string {
	var out []string
	for _, r := range o.Requires {
		if r.Satisfied(p) {
			continue
		}
		msg := r.Message
		if msg == "" {
			msg = fmt.Sprintf("%s is missing. It is required to invoke API \"%s\".", r.Fields[0], o.Name)
		}
		out = append(out, Render(msg, p))
	}
	return out
}

// Classify returns the rule matching the code of err, with its message rendered
// against p.
func (o *Operation) Classify(err error, p Payload) (ErrorRule, bool) {
	code := ErrorCode(err)
	if code == "" {
		return ErrorRule{}, false
	}
	for _, r := range o.Errors {
		if r.Code == code {
			r.Message = Render(r.Message, p)
			return r, true
		}
	}
	return ErrorRule{}, false
}

// FailureMessage describes an escalated call.
func (o *Operation) FailureMessage(p Payload, err error) string {
	label := fmt.Sprintf("Error occurred while invoking API \"%s\"", o.Name)
	if o.FailLabel != "" {
		label = Render(o.FailLabel, p)
	}
	return fmt.Sprintf("%s :: \"%s\"", label, ErrorText(err))
}

// Summarize renders the default result summary "<Label> :: <result>".
func (o *Operation) Summarize(p, result Payload) string {
	label := fmt.Sprintf("Result of API \"%s\"", o.Name)
	if o.Label != "" {
		label = Render(o.Label, p)
	}
	var v any = map[string]any(result)
	if o.ResultKey != "" {
		v = result[o.ResultKey]
	}
	if isEmpty(v) {
		// Calls without output, e.g. deletions, report only their label.
		if o.Label != "" && o.ResultKey == "" {
			return label + "."
		}
		return label + " :: none"
	}
	return label + " :: " + FormatValue(v)
}

var placeholder = regexp.MustCompile(`\{([A-Za-z0-9_.|]+)\}`)

// Render replaces {Path} tokens in tpl with values from p. A token may list
// alternatives as {A|B}; the first non-empty one is used. Absent values render empty.
func Render(tpl string, p Payload) string {
	return placeholder.ReplaceAllStringFunc(tpl, func(tok string) string {
		return p.FirstString(strings.Split(tok[1:len(tok)-1], "|")...)
	})
}
