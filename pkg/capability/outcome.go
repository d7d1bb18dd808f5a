package capability

// Kind tags an Outcome.
type Kind int

const (
	// Succeeded means the first execution returned a result.
	Succeeded Kind = iota
	// Handled means a classified domain error was turned into a fixed message.
	Handled
	// Repaired means the call succeeded after one payload repair.
	Repaired
	// Escalated means execution failed and no repair helped.
	Escalated
)

func (k Kind) String() string {
	switch k {
	case Succeeded:
		return "succeeded"
	case Handled:
		return "handled"
	case Repaired:
		return "repaired"
	case Escalated:
		return "escalated"
	}
	return "unknown"
}

// Outcome is the terminal state of one logical API call.
type Outcome struct {
	Kind Kind
	// Result is set for Succeeded and Repaired.
	Result Payload
	// Message is set for Handled.
	Message string
	// Reprompt marks a Handled outcome that needs corrected input from the user.
	Reprompt bool
	// Err is the final error for Escalated.
	Err error
	// Payload is the payload of the last execution attempt.
	Payload Payload
}

// OK reports whether the call produced a result.
func (o Outcome) OK() bool {
	return o.Kind == Succeeded || o.Kind == Repaired
}
