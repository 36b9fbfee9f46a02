// Package notify pushes notification payloads onto a Redis list for
// downstream delivery. The queue is optional and enqueue-only; when Redis
// is not configured every call is a no-op.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const queueKey = "vrhub:notifications"

type Message struct {
	Recipient   string    `json:"recipient"`
	SenderType  string    `json:"senderType"`
	SenderID    string    `json:"senderId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Queue enqueues notifications. A nil *Queue is valid and drops everything.
type Queue struct {
	client *redis.Client
}

// NewQueue connects to redisURL, or returns nil when the URL is empty.
func NewQueue(redisURL string) (*Queue, error) {
	if redisURL == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return NewQueueWithClient(redis.NewClient(opts)), nil
}

func NewQueueWithClient(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Enqueue pushes the message. Failures are logged, never returned: a lost
// notification must not fail the request that produced it.
func (q *Queue) Enqueue(ctx context.Context, msg Message) {
	if q == nil {
		return
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("notify: encode: %v", err)
		return
	}
	if err := q.client.LPush(ctx, queueKey, payload).Err(); err != nil {
		log.Printf("notify: enqueue: %v", err)
	}
}
