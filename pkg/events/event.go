package events

import "time"

// Event defines the contract for all session events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "THREAD_CREATED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

const (
	TypeSessionStarted   = "SESSION_STARTED"
	TypeThreadCreated    = "THREAD_CREATED"
	TypeThreadSelected   = "THREAD_SELECTED"
	TypeDocumentIngested = "DOCUMENT_INGESTED"
	TypeTurnCompleted    = "TURN_COMPLETED"
)

type BaseEvent struct {
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewSessionEvent stamps an event for one session and thread.
func NewSessionEvent(eventType, sessionID, threadID string, data map[string]interface{}) BaseEvent {
	payload := map[string]interface{}{
		"session_id": sessionID,
		"thread_id":  threadID,
	}
	for k, v := range data {
		payload[k] = v
	}
	return BaseEvent{
		Type:       eventType,
		Data:       payload,
		OccurredAt: time.Now(),
	}
}
