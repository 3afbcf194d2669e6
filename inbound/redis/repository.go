package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/colinloretz/railsconf-webhooks/inbound"
	"github.com/redis/go-redis/v9"
)

/* Redis implementation of inbound.Repository
 * Uses Redis Hashes for the durable inbound webhook records
 * Uses Redis Streams with consumer groups as the processing task queue
 * (at-least-once: unacknowledged entries stay pending and are redelivered)
 */

const (
	hashPrefix          = "inbound"         // Record naming: inbound:{webhook_id}
	streamPrefix        = "inbound:tasks"   // Stream naming: inbound:tasks:{provider}
	consumerGroupPrefix = "inbound-workers" // Consumer group naming: inbound-workers-{provider}
	defaultConsumer     = "worker"

	consumeBlock = 1 * time.Second
	consumeCount = 10

	// Pending entries older than this are stolen from dead consumers
	reclaimAfter = 30 * time.Second
)

/* statusTransition applies a compare-and-set status change in one atomic
 * step server-side: only a record still in "received" can move to a
 * terminal state. Concurrent workers racing on the same id cannot regress
 * or double-apply a transition.
 */
var statusTransition = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return 'not_found'
end
if status ~= 'received' then
  return 'stale'
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'updated_at', ARGV[2])
return 'ok'
`)

type Repository struct {
	client   *redis.Client
	consumer string
}

// NewRepository creates a new Redis repository
func NewRepository(addr, password string, db int) (*Repository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	return &Repository{
		client:   client,
		consumer: defaultConsumer,
	}, nil
}

/* WithConsumer sets the consumer name used when reading from streams
 * Distinct names let multiple worker processes share a consumer group
 */
func (r *Repository) WithConsumer(name string) *Repository {
	r.consumer = name
	return r
}

// Create durably stores a new inbound webhook record
func (r *Repository) Create(ctx context.Context, wh inbound.InboundWebhook) error {
	headersJSON, err := json.Marshal(wh.Headers)
	if err != nil {
		return fmt.Errorf("marshaling headers: %w", err)
	}

	hashKey := recordKey(wh.ID)
	err = r.client.HSet(ctx, hashKey, map[string]interface{}{
		"id":         wh.ID,
		"provider":   wh.Provider,
		"payload":    wh.Body,
		"headers":    string(headersJSON),
		"status":     wh.Status.String(),
		"created_at": wh.CreatedAt.Unix(),
		"updated_at": wh.UpdatedAt.Unix(),
	}).Err()
	if err != nil {
		return fmt.Errorf("storing inbound webhook: %w", err)
	}

	return nil
}

// Get retrieves an inbound webhook by id
func (r *Repository) Get(ctx context.Context, id string) (inbound.InboundWebhook, error) {
	data, err := r.client.HGetAll(ctx, recordKey(id)).Result()
	if err != nil {
		return inbound.InboundWebhook{}, fmt.Errorf("getting webhook: %w", err)
	}
	if len(data) == 0 {
		return inbound.InboundWebhook{}, fmt.Errorf("%w: %s", inbound.ErrNotFound, id)
	}

	headers := make(map[string]string)
	if headersStr, ok := data["headers"]; ok && headersStr != "" {
		if err := json.Unmarshal([]byte(headersStr), &headers); err != nil {
			return inbound.InboundWebhook{}, fmt.Errorf("unmarshaling headers: %w", err)
		}
	}

	wh := inbound.InboundWebhook{
		ID:        data["id"],
		Provider:  data["provider"],
		Body:      []byte(data["payload"]),
		Headers:   headers,
		Status:    inbound.NewStatus(data["status"]),
		CreatedAt: time.Unix(parseInt64(data["created_at"]), 0),
		UpdatedAt: time.Unix(parseInt64(data["updated_at"]), 0),
	}

	return wh, nil
}

// UpdateStatus applies the compare-and-set status transition
func (r *Repository) UpdateStatus(ctx context.Context, id string, status inbound.Status) error {
	result, err := statusTransition.Run(ctx, r.client,
		[]string{recordKey(id)},
		status.String(), time.Now().Unix(),
	).Text()
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}

	switch result {
	case "ok":
		return nil
	case "not_found":
		return fmt.Errorf("%w: %s", inbound.ErrNotFound, id)
	case "stale":
		return fmt.Errorf("%w: %s is already terminal", inbound.ErrStaleTransition, id)
	default:
		return fmt.Errorf("unexpected transition result: %s", result)
	}
}

// Enqueue adds a processing task to the provider's stream
func (r *Repository) Enqueue(ctx context.Context, provider, webhookID string) error {
	stream := streamKey(provider)

	// Create consumer group if it doesn't exist
	r.client.XGroupCreateMkStream(ctx, stream, groupName(provider), "0")
	// Ignore error if group already exists

	_, err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			"webhook_id": webhookID,
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("adding task to stream: %w", err)
	}

	return nil
}

// Consume reads pending tasks for a provider from its stream
func (r *Repository) Consume(ctx context.Context, provider string) ([]inbound.Task, error) {
	stream := streamKey(provider)
	group := groupName(provider)

	// Create consumer group if it doesn't exist
	r.client.XGroupCreateMkStream(ctx, stream, group, "0")
	// Ignore error if group already exists

	// Steal entries abandoned by crashed consumers before reading new ones
	claimed, _, err := r.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: r.consumer,
		MinIdle:  reclaimAfter,
		Start:    "0",
		Count:    consumeCount,
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("reclaiming pending tasks: %w", err)
	}
	if len(claimed) > 0 {
		return tasksFromMessages(claimed), nil
	}

	streams, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: r.consumer,
		Streams:  []string{stream, ">"},
		Count:    consumeCount,
		Block:    consumeBlock,
	}).Result()
	if err == redis.Nil {
		// No tasks available
		return []inbound.Task{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return []inbound.Task{}, nil
	}

	return tasksFromMessages(streams[0].Messages), nil
}

// Acknowledge marks a task as fully handled
func (r *Repository) Acknowledge(ctx context.Context, provider, messageID string) error {
	err := r.client.XAck(ctx, streamKey(provider), groupName(provider), messageID).Err()
	if err != nil {
		return fmt.Errorf("acknowledging task: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Close()
}

// GetClient returns the underlying Redis client for advanced operations
func (r *Repository) GetClient() *redis.Client {
	return r.client
}

// Helper functions

func tasksFromMessages(msgs []redis.XMessage) []inbound.Task {
	tasks := make([]inbound.Task, 0, len(msgs))
	for _, msg := range msgs {
		webhookID, ok := msg.Values["webhook_id"].(string)
		if !ok {
			continue
		}
		tasks = append(tasks, inbound.Task{
			WebhookID: webhookID,
			MessageID: msg.ID,
		})
	}
	return tasks
}

func recordKey(id string) string {
	return fmt.Sprintf("%s:%s", hashPrefix, id)
}

func streamKey(provider string) string {
	return fmt.Sprintf("%s:%s", streamPrefix, provider)
}

func groupName(provider string) string {
	return fmt.Sprintf("%s-%s", consumerGroupPrefix, provider)
}

func parseInt64(s string) int64 {
	var result int64
	fmt.Sscanf(s, "%d", &result)
	return result
}
