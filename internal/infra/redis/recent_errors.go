package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/stylevault/resilience/internal/core/domain"
)

const (
	recentKey   = "errors:recent"
	recentLimit = 100
	recentTTL   = 24 * time.Hour
)

// RecentErrorCache persists recent error ids best-effort. Writes are
// fire-and-forget and read failures fall back to an empty cache; loss of this
// data never blocks the core.
type RecentErrorCache struct {
	client *Client
}

// NewRecentErrorCache wraps a Redis client as a broadcast reporter.
func NewRecentErrorCache(client *Client) *RecentErrorCache {
	return &RecentErrorCache{client: client}
}

// Report pushes the record id and code onto the recent list, trimming to the
// cap. Implements broadcast.Reporter.
func (c *RecentErrorCache) Report(ctx context.Context, rec *domain.ErrorRecord) error {
	entry := fmt.Sprintf("%s|%s|%d", rec.ID, rec.Code(), rec.Context.Timestamp.Unix())

	pipe := c.client.rdb.Pipeline()
	pipe.LPush(ctx, recentKey, entry)
	pipe.LTrim(ctx, recentKey, 0, recentLimit-1)
	pipe.Expire(ctx, recentKey, recentTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache error id: %w", err)
	}
	return nil
}

// Recent returns cached entries, newest first. Any failure yields an empty
// slice; callers never see cache errors.
func (c *RecentErrorCache) Recent(ctx context.Context, limit int) []string {
	if limit <= 0 || limit > recentLimit {
		limit = recentLimit
	}

	entries, err := c.client.rdb.LRange(ctx, recentKey, 0, int64(limit-1)).Result()
	if err != nil {
		slog.Debug("Recent error cache read failed", "error", err)
		return nil
	}
	return entries
}
