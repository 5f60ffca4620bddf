// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atifkhan161/contract-crown-sub004/internal/protocol"
)

// DefaultQueueName is the Redis list (queue) the historian drains.
const DefaultQueueName = "contract_crown_events"

// Connect opens a Redis client and checks it with a ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// EventQueue is the Redis list carrying the public event log from the game
// server to the historian.
type EventQueue struct {
	rdb   *redis.Client
	queue string
}

func NewEventQueue(rdb *redis.Client, queue string) *EventQueue {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &EventQueue{rdb: rdb, queue: queue}
}

// PublishEvent serializes rec to JSON and pushes it onto the queue.
func (q *EventQueue) PublishEvent(ctx context.Context, rec protocol.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal event record: %w", err)
	}
	if err := q.rdb.RPush(ctx, q.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", q.queue, err)
	}
	return nil
}

// Pop blocks up to timeout for the next record. It returns false when the
// wait timed out with nothing queued.
func (q *EventQueue) Pop(ctx context.Context, timeout time.Duration) (protocol.Record, bool, error) {
	res, err := q.rdb.BLPop(ctx, timeout, q.queue).Result()
	if errors.Is(err, redis.Nil) {
		return protocol.Record{}, false, nil
	}
	if err != nil {
		return protocol.Record{}, false, fmt.Errorf("BLPop %s: %w", q.queue, err)
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return protocol.Record{}, false, nil
	}
	var rec protocol.Record
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return protocol.Record{}, false, fmt.Errorf("invalid event record: %w", err)
	}
	return rec, true, nil
}

func (q *EventQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.queue).Result()
}
