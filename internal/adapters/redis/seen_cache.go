package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inventory-sync/internal/core"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "pos-sale:"

// SeenCache keeps recently synced POS sale ids and the id of the sale they
// produced, so resubmissions can be answered without a database transaction.
type SeenCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ core.SeenCache = (*SeenCache)(nil)

func NewSeenCache(client *redis.Client, ttl time.Duration) *SeenCache {
	return &SeenCache{
		client: client,
		prefix: defaultKeyPrefix,
		ttl:    ttl,
	}
}

func (c *SeenCache) key(posSaleID string) string {
	return c.prefix + posSaleID
}

func (c *SeenCache) Seen(ctx context.Context, posSaleID string) (string, bool, error) {
	saleID, err := c.client.Get(ctx, c.key(posSaleID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read seen-cache: %w", err)
	}
	return saleID, true, nil
}

func (c *SeenCache) Remember(ctx context.Context, posSaleID, saleID string) error {
	if err := c.client.Set(ctx, c.key(posSaleID), saleID, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write seen-cache: %w", err)
	}
	return nil
}

// Ping checks connectivity for health reporting.
func (c *SeenCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
