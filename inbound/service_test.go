package inbound_test

import (
	"context"
	"errors"
	"testing"

	"github.com/colinloretz/railsconf-webhooks/inbound"
	"github.com/colinloretz/railsconf-webhooks/inbound/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestReceive(t *testing.T) {
	ctx := context.Background()

	t.Run("success - record stored then task enqueued", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := inbound.NewService(repo, zerolog.Nop())

		body := []byte(`{"title":"X"}`)
		headers := map[string]string{"Content-Type": "application/json"}

		var storedID string
		repo.On("Create", ctx, inbound.MatchWebhook(func(wh inbound.InboundWebhook) bool {
			storedID = wh.ID
			return wh.Provider == "movies" &&
				string(wh.Body) == string(body) &&
				wh.Status == inbound.Received &&
				wh.ID != ""
		})).Return(nil)
		repo.On("Enqueue", ctx, "movies", mock.AnythingOfType("string")).Return(nil)

		id, err := service.Receive(ctx, "movies", body, headers)

		require.NoError(t, err)
		assert.Equal(t, storedID, id)
		repo.AssertExpectations(t)
	})

	t.Run("persistence failure - no enqueue", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := inbound.NewService(repo, zerolog.Nop())

		repo.On("Create", ctx, mock.Anything).Return(errors.New("redis down"))

		_, err := service.Receive(ctx, "movies", []byte(`{}`), nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "storing inbound webhook")
		repo.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("enqueue failure surfaces an error after the record exists", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := inbound.NewService(repo, zerolog.Nop())

		repo.On("Create", ctx, mock.Anything).Return(nil)
		repo.On("Enqueue", ctx, "stripe", mock.AnythingOfType("string")).Return(errors.New("stream unavailable"))

		_, err := service.Receive(ctx, "stripe", []byte(`{}`), nil)

		// The sender gets an error and retries; workers tolerate the duplicate
		require.Error(t, err)
		assert.Contains(t, err.Error(), "enqueueing webhook")
	})
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := inbound.NewService(repo, zerolog.Nop())

		repo.On("UpdateStatus", ctx, "webhook-123", inbound.Processed).Return(nil)

		err := service.UpdateStatus(ctx, "webhook-123", inbound.Processed)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("invalid status", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := inbound.NewService(repo, zerolog.Nop())

		err := service.UpdateStatus(ctx, "webhook-123", inbound.Status(999))

		require.Error(t, err)
		assert.Contains(t, err.Error(), "validating status")
	})
}

func TestGet(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := inbound.NewService(repo, zerolog.Nop())

		stored := inbound.InboundWebhook{ID: "webhook-123", Provider: "stripe", Status: inbound.Received}
		repo.On("Get", ctx, "webhook-123").Return(stored, nil)

		wh, err := service.Get(ctx, "webhook-123")

		require.NoError(t, err)
		assert.Equal(t, stored, wh)
	})

	t.Run("not found", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		service := inbound.NewService(repo, zerolog.Nop())

		repo.On("Get", ctx, "missing").Return(inbound.InboundWebhook{}, inbound.ErrNotFound)

		_, err := service.Get(ctx, "missing")

		require.Error(t, err)
		assert.ErrorIs(t, err, inbound.ErrNotFound)
	})
}
