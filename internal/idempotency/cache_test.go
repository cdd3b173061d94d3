package idempotency

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	return New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestMarkProcessedFirstTimeReportsNotSeen(t *testing.T) {
	c := newTestCache(t)

	seen, err := c.MarkProcessed(context.Background(), "sms", "msg-1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMarkProcessedRetryReportsAlreadySeen(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, err := c.MarkProcessed(ctx, "sms", "msg-1")
	require.NoError(t, err)

	seen, err := c.MarkProcessed(ctx, "sms", "msg-1")
	require.NoError(t, err)
	assert.True(t, seen, "a retried delivery id should report already seen")
}

func TestMarkProcessedScopesIndependently(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, err := c.MarkProcessed(ctx, "sms", "msg-1")
	require.NoError(t, err)

	seen, err := c.MarkProcessed(ctx, "email", "msg-1")
	require.NoError(t, err)
	assert.False(t, seen, "the same id in a different scope should be treated as unseen")
}

func TestMarkProcessedWithNilCacheIsDisabled(t *testing.T) {
	var c *Cache

	seen, err := c.MarkProcessed(context.Background(), "sms", "msg-1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMarkProcessedWithEmptyIDIsNoop(t *testing.T) {
	c := newTestCache(t)

	seen, err := c.MarkProcessed(context.Background(), "sms", "")
	require.NoError(t, err)
	assert.False(t, seen)
}
