// 包 tilecache：瓦片响应的两级缓存（进程内 LRU + 可选 Redis）
package tilecache

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"spatial-layer/internal/logger"
	"spatial-layer/internal/metrics"

	"github.com/redis/go-redis/v9"
)

// 文档注释：两级瓦片缓存
// 背景：多实例部署时 Redis 让同一数据代数的瓦片在实例间共享；Redis 不可用时只退化为本地缓存，不影响查询。
// 约束：rc 为 nil 表示禁用 Redis；Redis 错误只记录调试日志并按未命中处理。
type Cache struct {
	lru *LRU
	rc  *redis.Client
	ttl time.Duration
}

// New：maxItems/maxBytes 为本地 LRU 限额，ttl 同时作用于本地与 Redis
func New(maxItems int, maxBytes int64, ttl time.Duration, rc *redis.Client) *Cache {
	return &Cache{lru: NewLRU(maxItems, maxBytes, ttl), rc: rc, ttl: ttl}
}

// 文档注释：按环境变量构造
// 约束：TILE_CACHE_SIZE 默认 4096 条，0 表示关闭本地缓存；TILE_CACHE_MAX_MB 默认 64，0 表示不限字节；TILE_CACHE_TTL_S 默认 300 秒。
func NewFromEnv(rc *redis.Client) *Cache {
	size := 4096
	if s := os.Getenv("TILE_CACHE_SIZE"); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n >= 0 {
			size = n
		}
	}
	maxMB := 64
	if s := os.Getenv("TILE_CACHE_MAX_MB"); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n >= 0 {
			maxMB = n
		}
	}
	ttlSec := 300
	if s := os.Getenv("TILE_CACHE_TTL_S"); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n > 0 {
			ttlSec = n
		}
	}
	return New(size, int64(maxMB)<<20, time.Duration(ttlSec)*time.Second, rc)
}

// 文档注释：瓦片缓存键
// 约束：version 需为数据内容标识（引擎快照指纹），不能用进程内计数器，否则多实例共享 Redis 时会串数据。
func Key(version string, z, x, y int, format string) string {
	return "tile:" + version + ":" + strconv.Itoa(z) + "/" + strconv.Itoa(x) + "/" + strconv.Itoa(y) + ":" + format
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	if b, ok := c.lru.Get(key); ok {
		metrics.TileCacheTotal.WithLabelValues("memory", "hit").Inc()
		return b, true
	}
	metrics.TileCacheTotal.WithLabelValues("memory", "miss").Inc()
	if c.rc == nil {
		return nil, false
	}
	b, err := c.rc.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.L().Debug("tile_cache_redis_get_error", "key", key, "err", err)
		}
		metrics.TileCacheTotal.WithLabelValues("redis", "miss").Inc()
		return nil, false
	}
	metrics.TileCacheTotal.WithLabelValues("redis", "hit").Inc()
	c.lru.Set(key, b)
	return b, true
}

func (c *Cache) Set(ctx context.Context, key string, b []byte) {
	if c == nil {
		return
	}
	c.lru.Set(key, b)
	if c.rc == nil {
		return
	}
	if err := c.rc.Set(ctx, key, b, c.ttl).Err(); err != nil {
		logger.L().Debug("tile_cache_redis_set_error", "key", key, "err", err)
	}
}
