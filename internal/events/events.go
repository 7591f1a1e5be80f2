// Package events publishes pipeline happenings to a Redis channel so
// sibling tools (dashboards, the draft writer) can react without
// polling the JSON documents. A nil publisher is valid and silent,
// which is how an unconfigured Redis behaves everywhere.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Channel is the pub/sub channel all pipeline events go to.
const Channel = "jobflow:events"

// Event names.
const (
	RunCompleted     = "run.completed"
	DecisionRecorded = "decision.recorded"
	Submitted        = "application.submitted"
	MaterialsReady   = "application.materials_ready"
)

// Publisher writes events to Redis.
type Publisher struct {
	rdb *redis.Client
}

// Connect creates and verifies a Redis-backed publisher.
func Connect(ctx context.Context, redisURL string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Publisher{rdb: rdb}, nil
}

type envelope struct {
	Event   string      `json:"event"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload,omitempty"`
}

// Publish emits one event. Safe on a nil publisher.
func (p *Publisher) Publish(ctx context.Context, event string, payload interface{}) error {
	if p == nil || p.rdb == nil {
		return nil
	}
	body, err := json.Marshal(envelope{Event: event, At: time.Now().UTC(), Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.rdb.Publish(ctx, Channel, body).Err()
}

// Close releases the connection. Safe on a nil publisher.
func (p *Publisher) Close() error {
	if p == nil || p.rdb == nil {
		return nil
	}
	return p.rdb.Close()
}
