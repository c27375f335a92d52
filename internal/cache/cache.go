package cache

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/pkg/messaging"
)

// Store is an in-process cache whose deletions are broadcast to the other
// API instances over the broker.
type Store struct {
	name   string
	cache  *gocache.Cache
	broker messaging.Broker
}

// New creates a store. broker may be nil, in which case evictions stay local.
func New(name string, ttl, cleanup time.Duration, broker messaging.Broker) *Store {
	return &Store{
		name:   name,
		cache:  gocache.New(ttl, cleanup),
		broker: broker,
	}
}

func (s *Store) Name() string {
	return s.name
}

func (s *Store) Get(key string) (interface{}, bool) {
	return s.cache.Get(key)
}

func (s *Store) Set(key string, value interface{}) {
	s.cache.Set(key, value, gocache.DefaultExpiration)
}

// Delete drops key locally and asks peers to drop it too.
func (s *Store) Delete(ctx context.Context, key string) {
	s.cache.Delete(key)
	if s.broker == nil {
		return
	}
	msg := messaging.Invalidation{Cache: s.name, Key: key}
	if err := s.broker.Publish(ctx, messaging.InvalidationChannel, msg); err != nil {
		log.Warn().Err(err).Str("cache", s.name).Str("key", key).Msg("failed to broadcast cache invalidation")
	}
}

// evict drops key without broadcasting.
func (s *Store) evict(key string) {
	s.cache.Delete(key)
}

// Listen applies invalidations from peers. It blocks until the
// subscription ends, which happens when ctx is done.
func Listen(ctx context.Context, broker messaging.Broker, stores ...*Store) error {
	byName := make(map[string]*Store, len(stores))
	for _, s := range stores {
		byName[s.name] = s
	}

	ch, err := broker.Subscribe(ctx, messaging.InvalidationChannel)
	if err != nil {
		return err
	}

	for raw := range ch {
		var msg messaging.Invalidation
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Warn().Err(err).Msg("dropping malformed cache invalidation")
			continue
		}
		if s, ok := byName[msg.Cache]; ok {
			s.evict(msg.Key)
		}
	}
	return nil
}
