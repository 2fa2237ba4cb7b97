package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/GustavoLR548/news-relay-bot/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// Redis key prefixes
	titlesPrefix   = "news:titles:" // news:titles:{sourceKey} -> hash {category: title}
	defaultTimeout = 5 * time.Second
)

// RedisTitleRepository implements TitleStore with one Redis hash per source key.
// HSET on a single field is atomic, so no read-modify-write is needed.
type RedisTitleRepository struct {
	client *redis.Client
	log    *zap.SugaredLogger
}

// NewRedisTitleRepository creates a new Redis-based title store
func NewRedisTitleRepository(client *redis.Client, log *zap.SugaredLogger) *RedisTitleRepository {
	return &RedisTitleRepository{
		client: client,
		log:    logger.OrNop(log),
	}
}

// LoadTitle returns the remembered title, "" when missing or on any Redis error
func (r *RedisTitleRepository) LoadTitle(sourceKey, category string) string {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	title, err := r.client.HGet(ctx, titlesPrefix+sourceKey, category).Result()
	if err == redis.Nil {
		return ""
	}
	if err != nil {
		r.log.Warnf("Failed to load last title for %s/%s, treating it as empty: %v", sourceKey, category, err)
		return ""
	}

	return title
}

// SaveTitle records the title; failures are logged and swallowed
func (r *RedisTitleRepository) SaveTitle(sourceKey, category, title string) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := r.client.HSet(ctx, titlesPrefix+sourceKey, category, title).Err(); err != nil {
		r.log.Errorf("Failed to save last title for %s/%s: %v", sourceKey, category, err)
	}
}

// Snapshot returns every stored pair as a Document (used by the stats endpoint and tests)
func (r *RedisTitleRepository) Snapshot() (Document, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	doc := Document{}
	iter := r.client.Scan(ctx, 0, titlesPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		sourceKey := key[len(titlesPrefix):]
		for category, title := range fields {
			doc.Set(sourceKey, category, title)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan titles: %w", err)
	}

	return doc, nil
}
