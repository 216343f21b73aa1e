package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/Ravikumar-Shah-2804/research-copilot-sub001/pkg/redis"
)

const seenKeyPrefix = "papers:seen:"

// RedisSeenCache records ingested arXiv IDs in Redis with a TTL, so a
// paper ingested recently is not fetched again. All operations are
// best-effort; Redis being down degrades to re-fetching, never to failure.
type RedisSeenCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ SeenCache = (*RedisSeenCache)(nil)

// NewRedisSeenCache wraps the shared Redis client.
func NewRedisSeenCache(client *redis.Client, ttl time.Duration) *RedisSeenCache {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisSeenCache{
		client: client,
		ttl:    ttl,
		logger: slog.Default().With("component", "seen-cache"),
	}
}

// Seen reports whether the paper was marked in a previous run.
func (c *RedisSeenCache) Seen(ctx context.Context, arxivID string) bool {
	n, err := c.client.Exists(ctx, seenKeyPrefix+arxivID)
	if err != nil {
		c.logger.Debug("seen lookup failed, treating as unseen", "arxiv_id", arxivID, "error", err)
		return false
	}
	return n > 0
}

// MarkSeen records the paper as ingested.
func (c *RedisSeenCache) MarkSeen(ctx context.Context, arxivID string) error {
	_, err := c.client.SetNX(ctx, seenKeyPrefix+arxivID, 1, c.ttl)
	if err != nil {
		c.logger.Debug("mark seen failed", "arxiv_id", arxivID, "error", err)
	}
	return err
}
