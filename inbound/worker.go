package inbound

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// consumeErrorBackoff is how long Run waits after a failed Consume call
const consumeErrorBackoff = time.Second

/* ErrMalformedPayload marks a permanent parse failure: the payload passed
 * verification but cannot be decoded into the provider's event shape.
 * Redelivering it would fail forever, so the worker moves the record to
 * Failed and acknowledges the task instead of looping.
 */
var ErrMalformedPayload = errors.New("malformed webhook payload")

/* Processor is the provider-specific processing step
 * It parses the stored body, executes the business effect, and reports the
 * terminal status the record should take: Processed for handled events,
 * Skipped for event types the provider does not care about.
 * Errors wrapping ErrMalformedPayload are permanent; any other error is
 * treated as transient and the task is redelivered by the queue.
 */
type Processor interface {
	Process(ctx context.Context, wh InboundWebhook) (Status, error)
}

// ProcessorFunc adapts a function to the Processor interface
type ProcessorFunc func(ctx context.Context, wh InboundWebhook) (Status, error)

func (f ProcessorFunc) Process(ctx context.Context, wh InboundWebhook) (Status, error) {
	return f(ctx, wh)
}

/* Heartbeater reports worker liveness for operational visibility
 * Optional; implemented by the Redis repository
 */
type Heartbeater interface {
	SetWorkerHeartbeat(ctx context.Context, workerID, provider, status string) error
}

/* Worker consumes processing tasks off the queue, runs the provider's
 * Processor, and transitions record status. It runs entirely off the HTTP
 * request path, so processors may block on external calls.
 *
 * Every step is idempotent: a redelivered task for an already-terminal
 * record is acknowledged without touching it, and status transitions are
 * compare-and-set in the store.
 */
type Worker struct {
	ID         string
	Repo       Repository
	Processors map[string]Processor
	Heartbeat  Heartbeater
	Log        zerolog.Logger
}

// NewWorker creates a worker with dependency injection
func NewWorker(id string, repo Repository, processors map[string]Processor, log zerolog.Logger) *Worker {
	return &Worker{
		ID:         id,
		Repo:       repo,
		Processors: processors,
		Log:        log,
	}
}

/* Run consumes tasks for one provider until the context is cancelled.
 * Task-level failures are logged and left unacknowledged so the queue
 * redelivers them; only context cancellation stops the loop.
 */
func (w *Worker) Run(ctx context.Context, provider string) error {
	log := w.Log.With().Str("provider", provider).Str("worker_id", w.ID).Logger()
	log.Info().Msg("worker started")

	for {
		if err := ctx.Err(); err != nil {
			log.Info().Msg("worker stopping")
			return err
		}

		w.beat(ctx, provider, "idle")

		tasks, err := w.Repo.Consume(ctx, provider)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			log.Error().Err(err).Msg("consuming tasks")
			// A broken queue connection fails before the blocking read;
			// wait it out instead of spinning on the failing call
			select {
			case <-ctx.Done():
			case <-time.After(consumeErrorBackoff):
			}
			continue
		}

		for _, task := range tasks {
			w.beat(ctx, provider, "processing")
			if err := w.ProcessTask(ctx, provider, task); err != nil {
				// Left unacked on purpose: the queue redelivers it
				log.Error().Err(err).
					Str("webhook_id", task.WebhookID).
					Msg("processing task, will be redelivered")
			}
		}
	}
}

/* ProcessTask handles a single queued task. A nil return means the task was
 * fully handled and acknowledged; an error means the queue should redeliver.
 */
func (w *Worker) ProcessTask(ctx context.Context, provider string, task Task) error {
	wh, err := w.Repo.Get(ctx, task.WebhookID)
	if errors.Is(err, ErrNotFound) {
		// Record expired or was never written; nothing left to process
		w.Log.Warn().Str("webhook_id", task.WebhookID).Msg("task references missing record, dropping")
		return w.Repo.Acknowledge(ctx, provider, task.MessageID)
	}
	if err != nil {
		return fmt.Errorf("loading webhook %s: %w", task.WebhookID, err)
	}

	// Redelivery of an already-finished record is a no-op, not an error
	if wh.Status.IsFinal() {
		return w.Repo.Acknowledge(ctx, provider, task.MessageID)
	}

	processor, ok := w.Processors[provider]
	if !ok {
		w.Log.Warn().Str("provider", provider).Msg("no processor configured, skipping record")
		return w.finish(ctx, provider, task, Skipped)
	}

	status, err := processor.Process(ctx, wh)
	if err != nil {
		if errors.Is(err, ErrMalformedPayload) {
			w.Log.Error().Err(err).
				Str("webhook_id", wh.ID).
				Msg("permanent parse failure, marking failed")
			return w.finish(ctx, provider, task, Failed)
		}
		return fmt.Errorf("processing webhook %s: %w", wh.ID, err)
	}

	return w.finish(ctx, provider, task, status)
}

// finish transitions the record and acknowledges the task
func (w *Worker) finish(ctx context.Context, provider string, task Task, status Status) error {
	err := w.Repo.UpdateStatus(ctx, task.WebhookID, status)
	switch {
	case errors.Is(err, ErrStaleTransition):
		// A concurrent delivery of the same task finished first
	case errors.Is(err, ErrNotFound):
		w.Log.Warn().Str("webhook_id", task.WebhookID).Msg("record vanished before status update")
	case err != nil:
		return fmt.Errorf("updating status for %s: %w", task.WebhookID, err)
	}

	if err := w.Repo.Acknowledge(ctx, provider, task.MessageID); err != nil {
		return fmt.Errorf("acknowledging task for %s: %w", task.WebhookID, err)
	}
	return nil
}

func (w *Worker) beat(ctx context.Context, provider, status string) {
	if w.Heartbeat == nil {
		return
	}
	if err := w.Heartbeat.SetWorkerHeartbeat(ctx, w.ID, provider, status); err != nil {
		w.Log.Debug().Err(err).Msg("sending heartbeat")
	}
}
