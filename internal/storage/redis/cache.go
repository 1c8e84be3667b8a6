package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"agenticflow/backend/internal/config"
	"agenticflow/backend/internal/domain"
)

// 键前缀。
const (
	processedKeyPrefix      = "agenticflow:processed:"
	classificationKeyPrefix = "agenticflow:classification:"
)

// Cache Redis 缓存：邮件去重标记与最新分类缓存。
type Cache struct {
	client *redis.Client
}

// NewCache 建立 Redis 连接并验证可达。
func NewCache(ctx context.Context, cfg config.RedisConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Cache{client: client}, nil
}

// MarkProcessed 用 SETNX 打去重标记。
//
// 返回 true 表示本次调用抢到标记（首次处理），false 表示该邮件
// 已被处理过，重复投递应当跳过。
func (c *Cache) MarkProcessed(ctx context.Context, messageID string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, processedKeyPrefix+messageID, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// IsProcessed 查询某封邮件是否已有去重标记。
func (c *Cache) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	n, err := c.client.Exists(ctx, processedKeyPrefix+messageID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}

// ClearProcessed 清除去重标记，供重新分析使用。
func (c *Cache) ClearProcessed(ctx context.Context, messageID string) error {
	return c.client.Del(ctx, processedKeyPrefix+messageID).Err()
}

// CacheClassification 缓存最新分类结果。
func (c *Cache) CacheClassification(ctx context.Context, classification *domain.Classification, ttl time.Duration) error {
	data, err := json.Marshal(classification)
	if err != nil {
		return fmt.Errorf("marshal classification: %w", err)
	}
	return c.client.Set(ctx, classificationKeyPrefix+classification.MessageID, data, ttl).Err()
}

// GetCachedClassification 读取缓存的分类结果；未命中返回 (nil, nil)。
func (c *Cache) GetCachedClassification(ctx context.Context, messageID string) (*domain.Classification, error) {
	data, err := c.client.Get(ctx, classificationKeyPrefix+messageID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var classification domain.Classification
	if err := json.Unmarshal(data, &classification); err != nil {
		return nil, fmt.Errorf("unmarshal classification: %w", err)
	}
	return &classification, nil
}

// Health 健康检查。
func (c *Cache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close 关闭连接。
func (c *Cache) Close() error {
	return c.client.Close()
}
