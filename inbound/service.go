package inbound

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

/* Service represents the business logic layer
 * Uses pointer semantics as it's an API, not data
 */

// UseCase defines the business operations for inbound webhook management
type UseCase interface {
	Receive(ctx context.Context, provider string, body []byte, headers map[string]string) (string, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	Get(ctx context.Context, id string) (InboundWebhook, error)
}

type Service struct {
	Repo Repository
	Log  zerolog.Logger
}

// NewService creates a new inbound webhook service with dependency injection
func NewService(repo Repository, log zerolog.Logger) *Service {
	return &Service{
		Repo: repo,
		Log:  log,
	}
}

/* Receive records a verified delivery and hands it to the processing queue.
 * The record write is durable before this returns; callers only acknowledge
 * the sender after a nil return. An enqueue failure after a successful write
 * is surfaced as an error so the sender retries the whole delivery —
 * workers tolerate the resulting duplicate record via idempotent status
 * transitions.
 */
func (s *Service) Receive(ctx context.Context, provider string, body []byte, headers map[string]string) (string, error) {
	now := time.Now().UTC()
	wh := InboundWebhook{
		ID:        uuid.New().String(),
		Provider:  provider,
		Body:      body,
		Headers:   headers,
		Status:    Received,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Repo.Create(ctx, wh); err != nil {
		return "", fmt.Errorf("storing inbound webhook: %w", err)
	}

	if err := s.Repo.Enqueue(ctx, provider, wh.ID); err != nil {
		s.Log.Error().Err(err).
			Str("provider", provider).
			Str("webhook_id", wh.ID).
			Msg("record stored but enqueue failed, sender will retry")
		return "", fmt.Errorf("enqueueing webhook %s: %w", wh.ID, err)
	}

	return wh.ID, nil
}

// UpdateStatus transitions the status of an inbound webhook
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) error {
	if err := status.Validate(); err != nil {
		return fmt.Errorf("validating status: %w", err)
	}

	if err := s.Repo.UpdateStatus(ctx, id, status); err != nil {
		return fmt.Errorf("updating webhook status: %w", err)
	}
	return nil
}

// Get retrieves an inbound webhook by id
func (s *Service) Get(ctx context.Context, id string) (InboundWebhook, error) {
	wh, err := s.Repo.Get(ctx, id)
	if err != nil {
		return InboundWebhook{}, fmt.Errorf("getting webhook: %w", err)
	}
	return wh, nil
}
