//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/colinloretz/railsconf-webhooks/inbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWebhook(id string) inbound.InboundWebhook {
	now := time.Now()
	return inbound.InboundWebhook{
		ID:        id,
		Provider:  "stripe",
		Body:      []byte(`{"id":"evt_1","type":"customer.updated","data":{"object":{}}}`),
		Headers:   map[string]string{"Content-Type": "application/json"},
		Status:    inbound.Received,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRepository_CreateAndGet_Integration(t *testing.T) {
	ctx := context.Background()

	redisContainer, cleanup := SetupRedisContainer(t, ctx)
	defer cleanup()

	repo := CreateTestRepository(t, redisContainer.Addr)
	defer repo.Close(ctx)

	t.Run("stored record round-trips byte-for-byte", func(t *testing.T) {
		id := GenerateID(t, 1)
		wh := testWebhook(id)

		require.NoError(t, repo.Create(ctx, wh))
		assert.True(t, KeyExists(t, redisContainer.Addr, "inbound:"+id))

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, wh.ID, got.ID)
		assert.Equal(t, wh.Provider, got.Provider)
		assert.Equal(t, wh.Body, got.Body)
		assert.Equal(t, inbound.Received, got.Status)
		assert.Equal(t, wh.Headers, got.Headers)
	})

	t.Run("get missing record returns not found", func(t *testing.T) {
		_, err := repo.Get(ctx, "no-such-id")
		assert.ErrorIs(t, err, inbound.ErrNotFound)
	})
}

func TestRepository_UpdateStatus_Integration(t *testing.T) {
	ctx := context.Background()

	redisContainer, cleanup := SetupRedisContainer(t, ctx)
	defer cleanup()

	repo := CreateTestRepository(t, redisContainer.Addr)
	defer repo.Close(ctx)

	t.Run("received transitions to processed once", func(t *testing.T) {
		id := GenerateID(t, 2)
		require.NoError(t, repo.Create(ctx, testWebhook(id)))

		require.NoError(t, repo.UpdateStatus(ctx, id, inbound.Processed))

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, inbound.Processed, got.Status)

		// Second transition is rejected; the record stays processed
		err = repo.UpdateStatus(ctx, id, inbound.Skipped)
		assert.ErrorIs(t, err, inbound.ErrStaleTransition)

		got, err = repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, inbound.Processed, got.Status)
	})

	t.Run("update of missing record returns not found", func(t *testing.T) {
		err := repo.UpdateStatus(ctx, "no-such-id", inbound.Processed)
		assert.ErrorIs(t, err, inbound.ErrNotFound)
	})

	t.Run("concurrent transitions settle on exactly one terminal status", func(t *testing.T) {
		id := GenerateID(t, 3)
		require.NoError(t, repo.Create(ctx, testWebhook(id)))

		results := make(chan error, 2)
		go func() { results <- repo.UpdateStatus(ctx, id, inbound.Processed) }()
		go func() { results <- repo.UpdateStatus(ctx, id, inbound.Failed) }()

		var wins, losses int
		for i := 0; i < 2; i++ {
			if err := <-results; err == nil {
				wins++
			} else {
				assert.ErrorIs(t, err, inbound.ErrStaleTransition)
				losses++
			}
		}
		assert.Equal(t, 1, wins)
		assert.Equal(t, 1, losses)
	})
}

func TestRepository_TaskQueue_Integration(t *testing.T) {
	ctx := context.Background()

	redisContainer, cleanup := SetupRedisContainer(t, ctx)
	defer cleanup()

	repo := CreateTestRepository(t, redisContainer.Addr)
	defer repo.Close(ctx)

	t.Run("enqueued task is consumed once and acked", func(t *testing.T) {
		id := GenerateID(t, 4)
		require.NoError(t, repo.Create(ctx, testWebhook(id)))
		require.NoError(t, repo.Enqueue(ctx, "stripe", id))

		tasks, err := repo.Consume(ctx, "stripe")
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, id, tasks[0].WebhookID)
		assert.NotEmpty(t, tasks[0].MessageID)

		require.NoError(t, repo.Acknowledge(ctx, "stripe", tasks[0].MessageID))

		// Nothing left to consume
		tasks, err = repo.Consume(ctx, "stripe")
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("consume on empty stream returns no tasks", func(t *testing.T) {
		tasks, err := repo.Consume(ctx, "movies")
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})
}
