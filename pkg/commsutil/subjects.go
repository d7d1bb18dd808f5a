package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	SubjectAgentInvoke     = "agent.backup.invoke"
	SubjectActionCompleted = "agent.action.completed"
)

// BuildCompletedSubject builds the per-operation completion subject. Characters that
// NATS treats as tokens separators or wildcards are replaced.
func BuildCompletedSubject(operation string) string {
	safe := strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(operation)
	if safe == "" {
		safe = "unknown"
	}
	return fmt.Sprintf("%s.%s", SubjectActionCompleted, safe)
}
