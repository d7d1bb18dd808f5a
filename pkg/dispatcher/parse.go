package dispatcher

import (
	"strings"
)

// Invocation is the per-turn context extracted from an Event.
type Invocation struct {
	Operation   string
	Region      string
	PayloadText string
	Intent      string
	// SessionAttributes is a copy of the event bag. It is returned to the agent, so
	// writes (the cached account id) persist to the next turn.
	SessionAttributes       map[string]string
	PromptSessionAttributes map[string]string
	AccountID               string
}

// ParseEvent extracts the invocation context. The payload text is not checked.
func ParseEvent(ev *Event, defaultRegion string) *Invocation {
	inv := &Invocation{
		Intent:                  ev.InputText,
		SessionAttributes:       copyBag(ev.SessionAttributes),
		PromptSessionAttributes: copyBag(ev.PromptSessionAttributes),
	}

	inv.Region = defaultRegion
	if region, ok := ev.Param(ParamRegion); ok && strings.TrimSpace(region) != "" {
		inv.Region = strings.TrimSpace(region)
	}
	if name, ok := ev.Param(ParamAPIName, ParamAPINameLegacy); ok {
		inv.Operation = NormalizeOperation(name)
	}
	if text, ok := ev.Param(ParamAPIJSON, ParamAPIJSONLegacy); ok {
		inv.PayloadText = text
	}
	inv.AccountID = inv.SessionAttributes[SessionAccountID]
	return inv
}

// NormalizeOperation lower-cases name and strips a namespace such as
// "backup.client." from it.
func NormalizeOperation(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func copyBag(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
