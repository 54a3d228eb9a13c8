package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"

	"shortener.local/internal/app/shortlink"
)

// LocalCache 基于 ristretto 的进程内 L1 缓存，值是 shortlink.CacheEntry。
type LocalCache struct {
	cache    *ristretto.Cache
	ttl      time.Duration
	emptyTTL time.Duration
}

// NewLocalCache maxItems 决定计数器数量，maxCost 是最大条目数（每条 cost=1）。
func NewLocalCache(maxItems int64, maxCost int64) (*LocalCache, error) {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxItems * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
		// cost 只按条目数算
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &LocalCache{
		cache:    cache,
		ttl:      5 * time.Minute, // 多实例时靠短 TTL 收敛
		emptyTTL: 10 * time.Second,
	}, nil
}

func (l *LocalCache) Get(code string) (shortlink.CacheEntry, bool) {
	v, ok := l.cache.Get(code)
	if !ok {
		return shortlink.CacheEntry{}, false
	}
	entry, ok := v.(shortlink.CacheEntry)
	return entry, ok
}

// Set 先同步删除旧值再写入并等待生效，防止旧的负缓存在写入被丢弃时残留。
func (l *LocalCache) Set(code string, entry shortlink.CacheEntry) {
	l.cache.Del(code)
	l.cache.SetWithTTL(code, entry, 1, l.ttl)
	l.cache.Wait()
}

func (l *LocalCache) SetNotFound(code string) {
	l.cache.SetWithTTL(code, shortlink.CacheEntry{Missing: true}, 1, l.emptyTTL)
	l.cache.Wait()
}

func (l *LocalCache) Del(code string) {
	l.cache.Del(code)
}

func (l *LocalCache) Close() {
	l.cache.Close()
}
