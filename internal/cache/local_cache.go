package cache

import (
	"context"
	"sync"
	"time"

	"agenticflow/backend/internal/domain"
)

// Local 本地内存缓存
//
// Redis 未启用时作为去重标记与分类缓存的进程内替代。
// 单实例部署下语义等价;多实例部署需要 Redis。
type Local struct {
	mu   sync.Mutex
	data map[string]*entry
	ttl  time.Duration
}

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// NewLocal 创建本地缓存
//
// 参数:
//   - ttl: 默认过期时间
func NewLocal(ttl time.Duration) *Local {
	c := &Local{
		data: make(map[string]*entry),
		ttl:  ttl,
	}

	// 启动定期清理
	go c.cleanupLoop()

	return c
}

// MarkProcessed 原子地标记邮件已处理
//
// 返回 true 表示标记是新写入的（邮件未处理过）。
func (c *Local) MarkProcessed(_ context.Context, messageID string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := "processed:" + messageID
	if e, ok := c.data[key]; ok && time.Now().Before(e.expiresAt) {
		return false, nil
	}

	c.set(key, true, ttl)
	return true, nil
}

// IsProcessed 查询邮件是否已处理
func (c *Local) IsProcessed(_ context.Context, messageID string) (bool, error) {
	_, ok := c.get("processed:" + messageID)
	return ok, nil
}

// ClearProcessed 清除处理标记
func (c *Local) ClearProcessed(_ context.Context, messageID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, "processed:"+messageID)
	return nil
}

// CacheClassification 缓存一条分类结果
func (c *Local) CacheClassification(_ context.Context, classification *domain.Classification, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	copied := *classification
	c.set("classification:"+classification.MessageID, &copied, ttl)
	return nil
}

// GetCachedClassification 读取缓存的分类结果,未命中返回 nil
func (c *Local) GetCachedClassification(_ context.Context, messageID string) (*domain.Classification, error) {
	val, ok := c.get("classification:" + messageID)
	if !ok {
		return nil, nil
	}
	classification, ok := val.(*domain.Classification)
	if !ok {
		return nil, nil
	}
	copied := *classification
	return &copied, nil
}

// set 写入一个条目,调用方持锁
func (c *Local) set(key string, value interface{}, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.ttl
	}
	c.data[key] = &entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// get 读取一个未过期的条目
func (c *Local) get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.data, key)
		return nil, false
	}
	return e.value, true
}

// cleanupLoop 定期清理过期条目
func (c *Local) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		c.mu.Lock()
		for key, e := range c.data {
			if now.After(e.expiresAt) {
				delete(c.data, key)
			}
		}
		c.mu.Unlock()
	}
}
