package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"shortener.local/internal/app/shortlink"
	"shortener.local/internal/platform/metrics"
)

// notFoundSentinel 是 Redis 里的负缓存值，不能和 JSON 编码的正常值混淆。
const notFoundSentinel = "__nil__"

const keyPrefix = "sl:"

// ShortlinkCache 是两级旁路缓存：L1 本地 ristretto，L2 Redis。
//
// 任意一级都可以为 nil。只缓存短码是否存在以及过期时间，点击数永远走存储。
type ShortlinkCache struct {
	client   *redis.Client
	local    *LocalCache
	ttl      time.Duration
	emptyTTL time.Duration
}

var _ shortlink.Cache = (*ShortlinkCache)(nil)

func NewShortlinkCache(client *redis.Client, local *LocalCache) *ShortlinkCache {
	return &ShortlinkCache{
		client:   client,
		local:    local,
		ttl:      time.Hour,
		emptyTTL: 30 * time.Second,
	}
}

// redisEntry 是 L2 的存储格式。
type redisEntry struct {
	ExpiresAtMs *int64 `json:"expires_at_ms,omitempty"`
}

func encodeEntry(e shortlink.CacheEntry) (string, error) {
	var re redisEntry
	if e.ExpiresAt != nil {
		ms := e.ExpiresAt.UnixMilli()
		re.ExpiresAtMs = &ms
	}
	b, err := json.Marshal(re)
	return string(b), err
}

func decodeEntry(raw string) (shortlink.CacheEntry, error) {
	if raw == notFoundSentinel {
		return shortlink.CacheEntry{Missing: true}, nil
	}
	var re redisEntry
	if err := json.Unmarshal([]byte(raw), &re); err != nil {
		return shortlink.CacheEntry{}, err
	}
	var e shortlink.CacheEntry
	if re.ExpiresAtMs != nil {
		t := time.UnixMilli(*re.ExpiresAtMs).UTC()
		e.ExpiresAt = &t
	}
	return e, nil
}

func hitResult(e shortlink.CacheEntry) string {
	if e.Missing {
		return "hit_negative"
	}
	return "hit"
}

func (c *ShortlinkCache) Get(ctx context.Context, code string) (shortlink.CacheEntry, bool) {
	// L1
	if c.local != nil {
		if e, ok := c.local.Get(code); ok {
			metrics.CacheOperations.WithLabelValues("l1", hitResult(e)).Inc()
			return e, true
		}
		metrics.CacheOperations.WithLabelValues("l1", "miss").Inc()
	}
	if c.client == nil {
		return shortlink.CacheEntry{}, false
	}

	// L2
	res, err := c.client.Get(ctx, keyPrefix+code).Result()
	if errors.Is(err, redis.Nil) {
		metrics.CacheOperations.WithLabelValues("l2", "miss").Inc()
		return shortlink.CacheEntry{}, false
	}
	if err != nil {
		metrics.CacheOperations.WithLabelValues("l2", "error").Inc()
		slog.Warn("redis get failed", "code", code, "err", err)
		return shortlink.CacheEntry{}, false
	}
	e, err := decodeEntry(res)
	if err != nil {
		metrics.CacheOperations.WithLabelValues("l2", "error").Inc()
		slog.Warn("bad cache entry", "code", code, "err", err)
		return shortlink.CacheEntry{}, false
	}
	metrics.CacheOperations.WithLabelValues("l2", hitResult(e)).Inc()

	// 回填 L1
	if c.local != nil {
		if e.Missing {
			c.local.SetNotFound(code)
		} else {
			c.local.Set(code, e)
		}
	}
	return e, true
}

func (c *ShortlinkCache) Set(ctx context.Context, code string, entry shortlink.CacheEntry) error {
	if c.local != nil {
		c.local.Set(code, entry)
	}
	if c.client == nil {
		return nil
	}
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+code, raw, c.ttl).Err()
}

// SetNotFound 写负缓存，防止不存在的短码反复打到数据库。
func (c *ShortlinkCache) SetNotFound(ctx context.Context, code string) error {
	if c.local != nil {
		c.local.SetNotFound(code)
	}
	if c.client == nil {
		return nil
	}
	return c.client.Set(ctx, keyPrefix+code, notFoundSentinel, c.emptyTTL).Err()
}

func (c *ShortlinkCache) Delete(ctx context.Context, code string) error {
	if c.local != nil {
		c.local.Del(code)
	}
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, keyPrefix+code).Err()
}

func (c *ShortlinkCache) Close() {
	if c.local != nil {
		c.local.Close()
		slog.Info("本地缓存已关闭")
	}
}
