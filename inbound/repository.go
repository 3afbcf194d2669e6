package inbound

import (
	"context"
	"errors"
)

/* Small, focused interfaces following "The Go Way"
 * Interfaces abstract behavior, not things
 * Written for users of the API, not just for testing
 */

// ErrNotFound is returned when a webhook id has no stored record.
var ErrNotFound = errors.New("inbound webhook not found")

/* ErrStaleTransition is returned by UpdateStatus when the stored record is
 * already in a terminal state. Callers treat it as "someone got there first",
 * not as a failure — it is what makes queue redeliveries harmless.
 */
var ErrStaleTransition = errors.New("status transition not allowed from current state")

// Task is one unit of processing work handed to a worker by the queue.
type Task struct {
	// WebhookID identifies the InboundWebhook record to process
	WebhookID string
	// MessageID is the queue's own delivery identifier, used to acknowledge
	MessageID string
}

// Reader provides read operations for inbound webhooks
type Reader interface {
	/* Context is always the first parameter in functions that do I/O
	 * This allows for cancellation, timeouts, and shared values
	 */
	Get(ctx context.Context, id string) (InboundWebhook, error)
}

// Writer provides write operations for inbound webhooks
type Writer interface {
	/* Create durably stores a new record. It must not return before the
	 * write is durable — the HTTP acknowledgment depends on it.
	 */
	Create(ctx context.Context, wh InboundWebhook) error
	/* UpdateStatus transitions a record's status and refreshes updated_at.
	 * The transition is compare-and-set: it only applies when the stored
	 * status allows it, so concurrent workers cannot regress a record.
	 * Returns ErrNotFound or ErrStaleTransition accordingly.
	 */
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// TaskQueue provides at-least-once handoff of records to workers
type TaskQueue interface {
	// Enqueue adds a processing task for the given record
	Enqueue(ctx context.Context, provider, webhookID string) error
	/* Consume reads pending tasks for a provider
	 * Blocks until a task is available or context is cancelled
	 */
	Consume(ctx context.Context, provider string) ([]Task, error)
	/* Acknowledge marks a task as done so the queue stops redelivering it
	 * Never acknowledges implicitly; an unacked task comes back
	 */
	Acknowledge(ctx context.Context, provider, messageID string) error
}

/* Interface composition - combining small interfaces into larger ones
 * This is preferred over large monolithic interfaces
 */
type Repository interface {
	Reader
	Writer
	TaskQueue
	Close(ctx context.Context) error
}
