package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"gopherai-insect/internal/model"
)

// ClassificationCache keeps raw vision-model answers keyed by image digest,
// so re-uploads of the same photo skip the upstream call.
type ClassificationCache struct {
	client *redisv9.Client
	ttl    time.Duration
}

func NewClassificationCache(client *redisv9.Client, ttl time.Duration) *ClassificationCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ClassificationCache{client: client, ttl: ttl}
}

func (c *ClassificationCache) Get(ctx context.Context, digest, modelName string) (*model.CachedClassification, bool, error) {
	raw, err := c.client.Get(ctx, c.key(digest, modelName)).Bytes()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get classification failed: %w", err)
	}

	var entry model.CachedClassification
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached classification failed: %w", err)
	}
	return &entry, true, nil
}

func (c *ClassificationCache) Set(ctx context.Context, digest, modelName string, v model.CachedClassification) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal classification cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(digest, modelName), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set classification failed: %w", err)
	}
	return nil
}

func (c *ClassificationCache) Delete(ctx context.Context, digest, modelName string) error {
	if err := c.client.Del(ctx, c.key(digest, modelName)).Err(); err != nil {
		return fmt.Errorf("redis delete classification failed: %w", err)
	}
	return nil
}

func (c *ClassificationCache) key(digest, modelName string) string {
	return fmt.Sprintf("insect:classification:%s:%s", modelName, digest)
}
