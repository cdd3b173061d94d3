// Package idempotency provides a short-TTL Redis-backed dedup cache for
// inbound webhook deliveries. SMS and email providers retry a delivery
// whose acknowledgement they didn't see in time; without a dedup layer a
// retried delivery would run the Turn Orchestrator a second time over the
// same inbound message and could double-book or double-reply.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultTTL comfortably outlasts a provider's retry window without
// holding keys around indefinitely.
const defaultTTL = 24 * time.Hour

// Cache records which provider delivery ids have already been processed.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New wraps a Redis client. A nil client makes every MarkProcessed call
// report "not seen before", i.e. dedup is disabled rather than refusing
// to boot — the webhook still works, just without retry-safety.
func New(client *redis.Client) *Cache {
	return &Cache{client: client, ttl: defaultTTL}
}

func (c *Cache) key(scope, id string) string {
	return fmt.Sprintf("idempotency:%s:%s", scope, id)
}

// MarkProcessed atomically records id as seen within scope (e.g. "sms",
// "email") and reports whether it had already been recorded, so the
// caller can skip reprocessing a retried delivery.
func (c *Cache) MarkProcessed(ctx context.Context, scope, id string) (alreadySeen bool, err error) {
	if c == nil || c.client == nil || id == "" {
		return false, nil
	}
	ok, err := c.client.SetNX(ctx, c.key(scope, id), time.Now().UTC().Format(time.RFC3339), c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency: setnx failed: %w", err)
	}
	return !ok, nil
}
