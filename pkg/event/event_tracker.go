package event

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// TrackerConfig selects which resources are tracked and which fields are diffed.
type TrackerConfig struct {
	Enabled       bool
	TrackedFields map[string][]string
}

// Tracker turns successful mutating requests into outbox events.
type Tracker struct {
	recorder  Recorder
	config    TrackerConfig
	extractor FieldExtractor
}

func NewTracker(recorder Recorder, config TrackerConfig) *Tracker {
	return &Tracker{
		recorder:  recorder,
		config:    config,
		extractor: JSONFieldExtractor{},
	}
}

// EventType builds the outbox type name, e.g. CLIENT_CREATE.
func EventType(resource, action string) string {
	return fmt.Sprintf("%s_%s", strings.ToUpper(resource), strings.ToUpper(action))
}

// TrackEvent records a <RESOURCE>_<ACTION> event after the handler has
// responded. The write happens outside the handler's transaction and is
// best-effort: a failure is logged and the event is lost. Events that must
// commit with the data are emitted by the services inside their transaction.
func (t *Tracker) TrackEvent(resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if t == nil || !t.config.Enabled {
			c.Next()
			return
		}

		eventCtx := &EventContext{
			Resource:  resource,
			Operation: action,
		}
		c.Set(contextKey, eventCtx)

		c.Next()

		if c.Writer.Status() >= 400 || (eventCtx.NewData == nil && eventCtx.OldData == nil) {
			return
		}

		payload := Payload{
			Resource:   resource,
			Operation:  action,
			ActorID:    c.GetString("user_id"),
			ClinicID:   c.Param("clinicID"),
			RequestID:  c.GetString("request_id"),
			Data:       eventCtx.NewData,
			Additional: eventCtx.Additional,
		}
		if payload.Data == nil {
			payload.Data = eventCtx.OldData
		}
		if fields := t.config.TrackedFields[resource]; len(fields) > 0 && eventCtx.OldData != nil && eventCtx.NewData != nil {
			if changes := t.extractor.ExtractChanges(eventCtx.OldData, eventCtx.NewData, fields); len(changes) > 0 {
				payload.Changes = changes
			}
		}

		body, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("resource", resource).Msg("failed to marshal event payload")
			return
		}

		eventType := EventType(resource, action)
		if err := t.recorder.Record(c.Request.Context(), eventType, body); err != nil {
			log.Error().Err(err).Str("event_type", eventType).Msg("failed to record event")
		}
	}
}
