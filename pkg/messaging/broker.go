package messaging

import (
	"context"
	"encoding/json"
)

const (
	// EventsChannel carries domain events published from the outbox.
	EventsChannel = "clinic.events"
	// InvalidationChannel carries cache eviction notices between API instances.
	InvalidationChannel = "clinic.cache.invalidate"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Ping(ctx context.Context) error
	Close() error
}

// Message is the envelope published for outbox events.
type Message struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Invalidation asks every instance to drop a cached entry.
type Invalidation struct {
	Cache string `json:"cache"`
	Key   string `json:"key"`
}
