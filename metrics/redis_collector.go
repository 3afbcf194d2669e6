package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	inboundredis "github.com/colinloretz/railsconf-webhooks/inbound/redis"
	"github.com/colinloretz/railsconf-webhooks/providers"
	"github.com/redis/go-redis/v9"
)

/* HeartbeatReader reads worker liveness from the heartbeat store.
 * Implemented by the Redis repository, which owns the key layout.
 */
type HeartbeatReader interface {
	GetAllActiveWorkers(ctx context.Context) (map[string][]inboundredis.WorkerHeartbeat, error)
}

// RedisCollector implements the Collector interface for Redis-backed metrics
type RedisCollector struct {
	client          *redis.Client
	providersLoader *providers.Loader
	heartbeats      HeartbeatReader
}

// NewRedisCollector creates a new Redis metrics collector
func NewRedisCollector(client *redis.Client, loader *providers.Loader, heartbeats HeartbeatReader) *RedisCollector {
	return &RedisCollector{
		client:          client,
		providersLoader: loader,
		heartbeats:      heartbeats,
	}
}

// Collect gathers all metrics from Redis
func (c *RedisCollector) Collect(ctx context.Context) (Metrics, error) {
	queueLengths, err := c.GetQueueLengths(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting queue lengths: %w", err)
	}

	statusCounts, err := c.GetStatusCounts(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting status counts: %w", err)
	}

	throughput, err := c.GetThroughput(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting throughput: %w", err)
	}

	workers, err := c.GetActiveWorkers(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting active workers: %w", err)
	}

	return Metrics{
		QueueLengths: queueLengths,
		StatusCounts: statusCounts,
		Throughput:   throughput,
		Workers:      workers,
		Timestamp:    time.Now(),
	}, nil
}

// GetQueueLengths returns the number of queued tasks in each provider stream
func (c *RedisCollector) GetQueueLengths(ctx context.Context) (map[string]int64, error) {
	queueLengths := make(map[string]int64)

	for _, provider := range c.providersLoader.List() {
		streamKey := fmt.Sprintf("inbound:tasks:%s", provider.Name)

		length, err := c.client.XLen(ctx, streamKey).Result()
		if err != nil && err != redis.Nil {
			// Continue even if one stream fails
			continue
		}

		queueLengths[provider.Name] = length
	}

	return queueLengths, nil
}

// GetStatusCounts returns counts of inbound webhooks grouped by status
func (c *RedisCollector) GetStatusCounts(ctx context.Context) (map[string]int64, error) {
	statusCounts := map[string]int64{
		"received":  0,
		"processed": 0,
		"skipped":   0,
		"failed":    0,
	}

	recordKeys, err := c.scanRecordKeys(ctx)
	if err != nil {
		return nil, err
	}
	if len(recordKeys) == 0 {
		return statusCounts, nil
	}

	// Use pipeline for efficient batch operations
	pipe := c.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(recordKeys))

	for i, key := range recordKeys {
		cmds[i] = pipe.HGetAll(ctx, key)
	}

	_, err = pipe.Exec(ctx)
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("executing pipeline: %w", err)
	}

	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil || len(data) == 0 {
			continue
		}

		status := data["status"]
		if _, exists := statusCounts[status]; exists {
			statusCounts[status]++
		}
	}

	return statusCounts, nil
}

// GetThroughput calculates webhooks finished over different time windows
func (c *RedisCollector) GetThroughput(ctx context.Context) (ThroughputMetrics, error) {
	now := time.Now()
	oneMinuteAgo := now.Add(-1 * time.Minute).Unix()
	fiveMinutesAgo := now.Add(-5 * time.Minute).Unix()
	fifteenMinutesAgo := now.Add(-15 * time.Minute).Unix()

	var lastMinute, lastFiveMinutes, lastFifteenMinutes int64

	recordKeys, err := c.scanRecordKeys(ctx)
	if err != nil {
		return ThroughputMetrics{}, err
	}

	for _, key := range recordKeys {
		data, err := c.client.HMGet(ctx, key, "status", "updated_at").Result()
		if err != nil || len(data) < 2 {
			continue
		}

		status, ok1 := data[0].(string)
		updatedAtStr, ok2 := data[1].(string)
		if !ok1 || !ok2 || (status != "processed" && status != "skipped") {
			continue
		}

		var updatedAt int64
		fmt.Sscanf(updatedAtStr, "%d", &updatedAt)

		// Count in time windows
		if updatedAt >= fifteenMinutesAgo {
			lastFifteenMinutes++
			if updatedAt >= fiveMinutesAgo {
				lastFiveMinutes++
				if updatedAt >= oneMinuteAgo {
					lastMinute++
				}
			}
		}
	}

	return ThroughputMetrics{
		LastMinute:         lastMinute,
		LastFiveMinutes:    lastFiveMinutes,
		LastFifteenMinutes: lastFifteenMinutes,
	}, nil
}

// GetActiveWorkers returns information about active workers
func (c *RedisCollector) GetActiveWorkers(ctx context.Context) (map[string][]WorkerInfo, error) {
	heartbeats, err := c.heartbeats.GetAllActiveWorkers(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading worker heartbeats: %w", err)
	}

	workers := make(map[string][]WorkerInfo, len(heartbeats))
	for provider, beats := range heartbeats {
		for _, hb := range beats {
			workers[provider] = append(workers[provider], WorkerInfo{
				WorkerID:      hb.WorkerID,
				Provider:      hb.Provider,
				Status:        hb.Status,
				LastHeartbeat: hb.LastHeartbeat,
			})
		}
	}

	return workers, nil
}

/* scanRecordKeys returns the keys of inbound webhook record hashes.
 * Task streams share the "inbound:" prefix and are filtered out.
 */
func (c *RedisCollector) scanRecordKeys(ctx context.Context) ([]string, error) {
	var recordKeys []string
	var cursor uint64

	for {
		keys, nextCursor, err := c.client.Scan(ctx, cursor, "inbound:*", 1000).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning inbound keys: %w", err)
		}

		for _, key := range keys {
			if strings.HasPrefix(key, "inbound:tasks:") {
				continue
			}
			recordKeys = append(recordKeys, key)
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return recordKeys, nil
}
