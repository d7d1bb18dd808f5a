// Package response accumulates the diagnostic text of one invocation and decides its
// outcome state.
package response

import (
	"strings"
	"unicode/utf8"
)

// DefaultBudget is the body size limit in bytes. It leaves headroom under the
// orchestrator's 25KB response ceiling.
const DefaultBudget = 22000

// Separator joins messages in the body.
const Separator = " "

// State is the outcome signalled to the orchestrator. Success is the empty value and
// is encoded by omitting the field.
type State string

const (
	StateSuccess  State = ""
	StateReprompt State = "REPROMPT"
	StateFailure  State = "FAILURE"
)

// Aggregator collects messages in order. It implements capability.Reporter.
type Aggregator struct {
	budget   int
	parts    []string
	reprompt bool
	failure  bool
}

// NewAggregator creates an Aggregator. A non-positive budget selects DefaultBudget.
func NewAggregator(budget int) *Aggregator {
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Aggregator{budget: budget}
}

// Say adds an informational message.
func (a *Aggregator) Say(msg string) {
	if msg == "" {
		return
	}
	a.parts = append(a.parts, msg)
}

// Reprompt adds a message and flags that the user must supply more input.
func (a *Aggregator) Reprompt(msg string) {
	a.Say(msg)
	a.reprompt = true
}

// Fail adds a message and flags the invocation failed.
func (a *Aggregator) Fail(msg string) {
	a.Say(msg)
	a.failure = true
}

// State returns the outcome. Failure takes precedence over Reprompt.
func (a *Aggregator) State() State {
	switch {
	case a.failure:
		return StateFailure
	case a.reprompt:
		return StateReprompt
	}
	return StateSuccess
}

// Messages returns a copy of the collected messages.
func (a *Aggregator) Messages() []string {
	return append([]string(nil), a.parts...)
}

// Body joins the messages and truncates to the budget.
func (a *Aggregator) Body() string {
	return Truncate(strings.Join(a.parts, Separator), a.budget)
}

// Truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 0 {
		return ""
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
