package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/pkg/messaging"
)

type fakeBroker struct {
	mu        sync.Mutex
	published []interface{}
	ch        chan []byte
	pubErr    error
}

func (f *fakeBroker) Publish(_ context.Context, _ string, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, message)
	return f.pubErr
}

func (f *fakeBroker) Subscribe(context.Context, string) (<-chan []byte, error) {
	return f.ch, nil
}

func (f *fakeBroker) Ping(context.Context) error { return nil }
func (f *fakeBroker) Close() error               { return nil }

func TestStoreDeleteBroadcasts(t *testing.T) {
	broker := &fakeBroker{}
	s := New("permissions", time.Minute, time.Minute, broker)

	s.Set("k", 1)
	v, ok := s.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	s.Delete(context.Background(), "k")
	_, ok = s.Get("k")
	assert.False(t, ok)
	require.Len(t, broker.published, 1)
	assert.Equal(t, messaging.Invalidation{Cache: "permissions", Key: "k"}, broker.published[0])
}

func TestStoreDeleteWithoutBroker(t *testing.T) {
	s := New("sessions", time.Minute, time.Minute, nil)
	s.Set("k", "v")
	assert.NotPanics(t, func() { s.Delete(context.Background(), "k") })
}

func TestStoreDeleteToleratesPublishFailure(t *testing.T) {
	s := New("sessions", time.Minute, time.Minute, &fakeBroker{pubErr: errors.New("down")})
	s.Set("k", "v")
	s.Delete(context.Background(), "k")
	_, ok := s.Get("k")
	assert.False(t, ok)
}

func TestListenEvictsNamedStore(t *testing.T) {
	broker := &fakeBroker{ch: make(chan []byte, 3)}
	perms := New("permissions", time.Minute, time.Minute, nil)
	sessions := New("sessions", time.Minute, time.Minute, nil)
	perms.Set("a", 1)
	sessions.Set("a", 1)

	msg, _ := json.Marshal(messaging.Invalidation{Cache: "permissions", Key: "a"})
	broker.ch <- []byte("not json")
	broker.ch <- msg
	close(broker.ch)

	require.NoError(t, Listen(context.Background(), broker, perms, sessions))

	_, ok := perms.Get("a")
	assert.False(t, ok)
	_, ok = sessions.Get("a")
	assert.True(t, ok)
}
