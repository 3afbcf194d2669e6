package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	inboundredis "github.com/colinloretz/railsconf-webhooks/inbound/redis"
	"github.com/colinloretz/railsconf-webhooks/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHeartbeats struct {
	workers map[string][]inboundredis.WorkerHeartbeat
	err     error
}

func (s stubHeartbeats) GetAllActiveWorkers(ctx context.Context) (map[string][]inboundredis.WorkerHeartbeat, error) {
	return s.workers, s.err
}

func TestRedisCollector_NewRedisCollector(t *testing.T) {
	t.Run("creates collector successfully", func(t *testing.T) {
		// The constructor itself needs no Redis connection
		loader := providers.NewLoader()

		collector := NewRedisCollector(nil, loader, stubHeartbeats{})

		assert.NotNil(t, collector)
		assert.NotNil(t, collector.providersLoader)
	})
}

func TestRedisCollector_GetActiveWorkers(t *testing.T) {
	ctx := context.Background()

	t.Run("maps heartbeats to worker info per provider", func(t *testing.T) {
		beat := time.Now().Truncate(time.Second)
		collector := NewRedisCollector(nil, providers.NewLoader(), stubHeartbeats{
			workers: map[string][]inboundredis.WorkerHeartbeat{
				"stripe": {
					{WorkerID: "worker-1", Provider: "stripe", Status: "idle", LastHeartbeat: beat},
					{WorkerID: "worker-2", Provider: "stripe", Status: "processing", LastHeartbeat: beat},
				},
				"movies": {
					{WorkerID: "worker-1", Provider: "movies", Status: "idle", LastHeartbeat: beat},
				},
			},
		})

		workers, err := collector.GetActiveWorkers(ctx)

		require.NoError(t, err)
		require.Len(t, workers["stripe"], 2)
		require.Len(t, workers["movies"], 1)
		assert.Equal(t, WorkerInfo{
			WorkerID:      "worker-1",
			Provider:      "stripe",
			Status:        "idle",
			LastHeartbeat: beat,
		}, workers["stripe"][0])
	})

	t.Run("no active workers yields empty map", func(t *testing.T) {
		collector := NewRedisCollector(nil, providers.NewLoader(), stubHeartbeats{})

		workers, err := collector.GetActiveWorkers(ctx)

		require.NoError(t, err)
		assert.Empty(t, workers)
	})

	t.Run("heartbeat store failure surfaces", func(t *testing.T) {
		collector := NewRedisCollector(nil, providers.NewLoader(), stubHeartbeats{
			err: errors.New("connection refused"),
		})

		_, err := collector.GetActiveWorkers(ctx)

		assert.ErrorContains(t, err, "reading worker heartbeats")
	})
}
