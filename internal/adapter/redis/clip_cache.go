package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

const DefaultClipCacheKey = "streamrelay:posted_clips"

// ClipCache stores the announced clip ids as a redis list, oldest first.
type ClipCache struct {
	rdb goredis.Cmdable
	key string
}

func NewClipCache(rdb goredis.Cmdable, key string) *ClipCache {
	if key == "" {
		key = DefaultClipCacheKey
	}
	return &ClipCache{rdb: rdb, key: key}
}

// Load returns all stored ids. A missing key is an empty cache.
func (c *ClipCache) Load(ctx context.Context) ([]string, error) {
	ids, err := c.rdb.LRange(ctx, c.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load clip cache: %w", err)
	}
	return ids, nil
}

// Save replaces the stored list in one MULTI/EXEC so readers never see a partial list.
func (c *ClipCache) Save(ctx context.Context, ids []string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, c.key)
		if len(ids) > 0 {
			values := make([]any, len(ids))
			for i, id := range ids {
				values[i] = id
			}
			pipe.RPush(ctx, c.key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save clip cache: %w", err)
	}
	return nil
}
