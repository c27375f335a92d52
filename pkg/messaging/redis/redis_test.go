package redis

import (
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

func TestNewRedisBrokerRejectsBadURL(t *testing.T) {
	_, err := NewRedisBroker(Config{URL: "http://not-redis"}, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse Redis URL")
}

func TestPublishRecordsFailureMetric(t *testing.T) {
	// nothing listens on this port, so every call fails fast
	client := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	m := metrics.NewMetricsWithRegistry(prometheus.NewRegistry(), "clinic", "test")
	b := newBroker(client, nil, m)
	defer b.Close()

	err := b.Publish(context.Background(), "events", map[string]string{"type": "CLIENT_CREATE"})
	require.Error(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RedisOperations.WithLabelValues("publish", "error")))
}

func TestPublishRejectsUnmarshalableMessage(t *testing.T) {
	b := newBroker(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"}), nil, nil)
	defer b.Close()

	err := b.Publish(context.Background(), "events", make(chan int))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to marshal message")
}
