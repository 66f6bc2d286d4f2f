// Package cache 结清详情在 Redis 中的读模型缓存
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wyfcoding/cartera/internal/cartera/domain"
	pkgcache "github.com/wyfcoding/cartera/pkg/cache"
)

const keyPrefix = "cartera:cierre:"

// ClosureCache 基于 Redis 的结清详情缓存
type ClosureCache struct {
	rc  *pkgcache.RedisCache
	ttl time.Duration
}

// NewClosureCache 创建缓存，ttl 为 0 时使用 5 分钟
func NewClosureCache(rc *pkgcache.RedisCache, ttl time.Duration) *ClosureCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ClosureCache{rc: rc, ttl: ttl}
}

func closureKey(creditID uint) string {
	return fmt.Sprintf("%s%d", keyPrefix, creditID)
}

// Get 未命中时返回 (nil, nil)
func (c *ClosureCache) Get(ctx context.Context, creditID uint) (*domain.ClosureDetail, error) {
	var detail domain.ClosureDetail
	err := c.rc.GetJSON(ctx, closureKey(creditID), &detail)
	if errors.Is(err, pkgcache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *ClosureCache) Set(ctx context.Context, creditID uint, detail *domain.ClosureDetail) error {
	if detail == nil {
		return nil
	}
	return c.rc.SetJSON(ctx, closureKey(creditID), detail, c.ttl)
}

func (c *ClosureCache) Invalidate(ctx context.Context, creditIDs ...uint) error {
	keys := make([]string, len(creditIDs))
	for i, id := range creditIDs {
		keys[i] = closureKey(id)
	}
	return c.rc.Delete(ctx, keys...)
}
