package meetings

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/aura-meet/engagement/internal/engagement"
)

const snapshotKeyPrefix = "engagement:snapshot:"

// SnapshotCache keeps the latest engagement summary per meeting in Redis
// so join replies and HTTP reads skip the sample scan.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSnapshotCache creates a snapshot cache with the given TTL.
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &SnapshotCache{client: client, ttl: ttl}
}

// Get returns the cached summary, or nil on miss.
func (c *SnapshotCache) Get(ctx context.Context, meetingID uuid.UUID) (*engagement.Summary, error) {
	raw, err := c.client.Get(ctx, snapshotKeyPrefix+meetingID.String()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var summary engagement.Summary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// Set stores the summary.
func (c *SnapshotCache) Set(ctx context.Context, meetingID uuid.UUID, summary *engagement.Summary) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, snapshotKeyPrefix+meetingID.String(), raw, c.ttl).Err()
}

// Invalidate drops the cached summary.
func (c *SnapshotCache) Invalidate(ctx context.Context, meetingID uuid.UUID) error {
	return c.client.Del(ctx, snapshotKeyPrefix+meetingID.String()).Err()
}
