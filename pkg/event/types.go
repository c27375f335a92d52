package event

import (
	"context"
)

const contextKey = "eventCtx"

// EventContext is filled in by handlers so the tracker can describe what changed.
type EventContext struct {
	Resource   string
	Operation  string
	OldData    interface{}
	NewData    interface{}
	Additional map[string]interface{}
}

// Payload is the JSON document stored in the outbox.
type Payload struct {
	Resource   string                 `json:"resource"`
	Operation  string                 `json:"operation"`
	ActorID    string                 `json:"actor_id,omitempty"`
	ClinicID   string                 `json:"clinic_id,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	Data       interface{}            `json:"data,omitempty"`
	Changes    map[string]interface{} `json:"changes,omitempty"`
	Additional map[string]interface{} `json:"additional,omitempty"`
}

// Recorder persists events, normally into the transactional outbox.
type Recorder interface {
	Record(ctx context.Context, eventType string, payload []byte) error
}

type FieldExtractor interface {
	ExtractFields(obj interface{}, fields []string) map[string]interface{}
	ExtractChanges(old, new interface{}, fields []string) map[string]interface{}
}
