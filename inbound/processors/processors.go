package processors

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/colinloretz/railsconf-webhooks/inbound"
	"github.com/rs/zerolog"
)

/* Provider-specific processing logic, invoked by the worker off the request
 * path. Each processor parses the stored body into its provider's event
 * shape and reports the terminal status for the record.
 */

// MovieEvent is the payload shape for movie catalog notifications
type MovieEvent struct {
	Title string `json:"title"`
}

// Movies processes movie catalog webhooks
type Movies struct {
	Log zerolog.Logger
}

func (m Movies) Process(ctx context.Context, wh inbound.InboundWebhook) (inbound.Status, error) {
	var event MovieEvent
	if err := json.Unmarshal(wh.Body, &event); err != nil {
		return 0, fmt.Errorf("%w: decoding movie event: %v", inbound.ErrMalformedPayload, err)
	}

	// Catalog updates carry no event type; every well-formed payload is handled
	m.Log.Info().Str("webhook_id", wh.ID).Str("title", event.Title).Msg("movie received")
	return inbound.Processed, nil
}

// StripeEvent is the envelope shape of Stripe webhook payloads
type StripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

/* CustomerUpdater is the external business-logic collaborator for customer
 * events. A failure here is transient: the record stays received and the
 * queue redelivers the task.
 */
type CustomerUpdater interface {
	UpdateCustomer(ctx context.Context, customer json.RawMessage) error
}

// Stripe processes Stripe webhooks, dispatching on the event type
type Stripe struct {
	Customers CustomerUpdater
	Log       zerolog.Logger
}

func (s Stripe) Process(ctx context.Context, wh inbound.InboundWebhook) (inbound.Status, error) {
	var event StripeEvent
	if err := json.Unmarshal(wh.Body, &event); err != nil {
		return 0, fmt.Errorf("%w: decoding stripe event: %v", inbound.ErrMalformedPayload, err)
	}
	if event.Type == "" {
		return 0, fmt.Errorf("%w: stripe event has no type", inbound.ErrMalformedPayload)
	}

	switch event.Type {
	case "customer.updated":
		if s.Customers != nil {
			if err := s.Customers.UpdateCustomer(ctx, event.Data.Object); err != nil {
				return 0, fmt.Errorf("updating customer for event %s: %w", event.ID, err)
			}
		}
		return inbound.Processed, nil
	default:
		s.Log.Debug().Str("webhook_id", wh.ID).Str("type", event.Type).Msg("uninteresting stripe event")
		return inbound.Skipped, nil
	}
}
