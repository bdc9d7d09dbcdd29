package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Compile-time check to ensure cachedContentStore implements ContentStore
var _ ContentStore = (*cachedContentStore)(nil)

// cachedContentStore — read-through кэш поверх ContentStore.
// Блобы иммутабельны (ключ — хэш содержимого), поэтому инвалидация не нужна:
// запись в кэше либо отсутствует, либо верна. TTL нужен только чтобы кэш не рос бесконечно.
type cachedContentStore struct {
	inner  ContentStore
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedContentStore оборачивает store в Redis-кэш.
func NewCachedContentStore(inner ContentStore, client *redis.Client, ttl time.Duration, logger *zap.Logger) ContentStore {
	return &cachedContentStore{
		inner:  inner,
		client: client,
		ttl:    ttl,
		logger: logger.Named("ContentCache"),
	}
}

func blobCacheKey(hash string) string {
	return fmt.Sprintf("content_blob:%s", hash)
}

// Put пишет в основное хранилище и прогревает кэш.
// Ошибка кэша не фейлит запись — кэш строго best-effort.
func (c *cachedContentStore) Put(ctx context.Context, payload []byte) (string, error) {
	hash, err := c.inner.Put(ctx, payload)
	if err != nil {
		return "", err
	}
	if cacheErr := c.client.Set(ctx, blobCacheKey(hash), []byte(payload), c.ttl).Err(); cacheErr != nil {
		c.logger.Warn("Failed to warm content cache", zap.String("hash", hash), zap.Error(cacheErr))
	}
	return hash, nil
}

// Get сначала смотрит в Redis, при промахе идет в основное хранилище и кэширует результат.
func (c *cachedContentStore) Get(ctx context.Context, hash string) (json.RawMessage, error) {
	cached, err := c.client.Get(ctx, blobCacheKey(hash)).Bytes()
	if err == nil {
		c.logger.Debug("Content cache hit", zap.String("hash", hash))
		return json.RawMessage(cached), nil
	}
	if !errors.Is(err, redis.Nil) {
		// Redis недоступен — деградируем до основного хранилища
		c.logger.Warn("Content cache read failed, falling through", zap.String("hash", hash), zap.Error(err))
	}

	payload, err := c.inner.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	if cacheErr := c.client.Set(ctx, blobCacheKey(hash), []byte(payload), c.ttl).Err(); cacheErr != nil {
		c.logger.Warn("Failed to populate content cache", zap.String("hash", hash), zap.Error(cacheErr))
	}
	return payload, nil
}

// Exists не кэшируется: проверка редкая и должна быть авторитетной.
func (c *cachedContentStore) Exists(ctx context.Context, hash string) (bool, error) {
	return c.inner.Exists(ctx, hash)
}
