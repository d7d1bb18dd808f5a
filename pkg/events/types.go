// Package events defines the action-completed event and the publishers that emit it.
package events

// ActionCompletedEvent is emitted after every agent turn.
type ActionCompletedEvent struct {
	InvocationID string   `json:"invocationId"`
	SessionID    string   `json:"sessionId,omitempty"`
	Operation    string   `json:"operation"`
	Region       string   `json:"region,omitempty"`
	AccountID    string   `json:"accountId,omitempty"`
	State        string   `json:"state"`
	Outcomes     []string `json:"outcomes,omitempty"`
	BodyBytes    int      `json:"bodyBytes"`
	DurationMs   int64    `json:"durationMs"`
	Timestamp    string   `json:"timestamp"`
}
