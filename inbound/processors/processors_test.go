package processors_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/colinloretz/railsconf-webhooks/inbound"
	"github.com/colinloretz/railsconf-webhooks/inbound/processors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovies_Process(t *testing.T) {
	ctx := context.Background()
	p := processors.Movies{Log: zerolog.Nop()}

	t.Run("well-formed movie event is processed", func(t *testing.T) {
		wh := inbound.InboundWebhook{
			ID:     "wh-1",
			Body:   []byte(`{"title":"Dungeons & Dragons: Honor Among Thieves"}`),
			Status: inbound.Received,
		}

		status, err := p.Process(ctx, wh)

		require.NoError(t, err)
		assert.Equal(t, inbound.Processed, status)
	})

	t.Run("malformed body is a permanent failure", func(t *testing.T) {
		wh := inbound.InboundWebhook{ID: "wh-2", Body: []byte(`{not json`)}

		_, err := p.Process(ctx, wh)

		require.Error(t, err)
		assert.ErrorIs(t, err, inbound.ErrMalformedPayload)
	})
}

type customerRecorder struct {
	called bool
	data   json.RawMessage
	err    error
}

func (c *customerRecorder) UpdateCustomer(ctx context.Context, customer json.RawMessage) error {
	c.called = true
	c.data = customer
	return c.err
}

func TestStripe_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("customer.updated invokes the collaborator and processes", func(t *testing.T) {
		customers := &customerRecorder{}
		p := processors.Stripe{Customers: customers, Log: zerolog.Nop()}

		wh := inbound.InboundWebhook{
			ID:   "wh-1",
			Body: []byte(`{"id":"evt_1","type":"customer.updated","data":{"object":{"id":"cus_1","email":"a@b.co"}}}`),
		}

		status, err := p.Process(ctx, wh)

		require.NoError(t, err)
		assert.Equal(t, inbound.Processed, status)
		assert.True(t, customers.called)
		assert.JSONEq(t, `{"id":"cus_1","email":"a@b.co"}`, string(customers.data))
	})

	t.Run("unknown event type is skipped, not an error", func(t *testing.T) {
		customers := &customerRecorder{}
		p := processors.Stripe{Customers: customers, Log: zerolog.Nop()}

		wh := inbound.InboundWebhook{
			ID:   "wh-2",
			Body: []byte(`{"id":"evt_2","type":"invoice.paid","data":{"object":{}}}`),
		}

		status, err := p.Process(ctx, wh)

		require.NoError(t, err)
		assert.Equal(t, inbound.Skipped, status)
		assert.False(t, customers.called)
	})

	t.Run("business failure is transient", func(t *testing.T) {
		customers := &customerRecorder{err: errors.New("customer store unavailable")}
		p := processors.Stripe{Customers: customers, Log: zerolog.Nop()}

		wh := inbound.InboundWebhook{
			ID:   "wh-3",
			Body: []byte(`{"id":"evt_3","type":"customer.updated","data":{"object":{}}}`),
		}

		_, err := p.Process(ctx, wh)

		require.Error(t, err)
		assert.NotErrorIs(t, err, inbound.ErrMalformedPayload)
	})

	t.Run("malformed body is a permanent failure", func(t *testing.T) {
		p := processors.Stripe{Log: zerolog.Nop()}

		_, err := p.Process(ctx, inbound.InboundWebhook{ID: "wh-4", Body: []byte(`<xml/>`)})

		require.Error(t, err)
		assert.ErrorIs(t, err, inbound.ErrMalformedPayload)
	})

	t.Run("event without type is a permanent failure", func(t *testing.T) {
		p := processors.Stripe{Log: zerolog.Nop()}

		_, err := p.Process(ctx, inbound.InboundWebhook{ID: "wh-5", Body: []byte(`{"data":{}}`)})

		require.Error(t, err)
		assert.ErrorIs(t, err, inbound.ErrMalformedPayload)
	})
}
