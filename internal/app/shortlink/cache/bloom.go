package cache

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"

	"shortener.local/internal/app/shortlink"
)

// BloomFilter 记录所有签发过的短码。
//
// 删除和过期清理不会从过滤器里移除短码，只会让判断偏向“可能存在”，不影响正确性。
type BloomFilter struct {
	filter *bloom.BloomFilter
	mu     sync.RWMutex
}

var _ shortlink.Filter = (*BloomFilter)(nil)

// NewBloomFilter expectedItems 预期短码数量，falsePositiveRate 误判率（如 0.01）。
func NewBloomFilter(expectedItems uint, falsePositiveRate float64) *BloomFilter {
	return &BloomFilter{
		filter: bloom.NewWithEstimates(expectedItems, falsePositiveRate),
	}
}

func (b *BloomFilter) Add(code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.filter.AddString(code)
}

// MightExist 返回 false 表示一定不存在。
func (b *BloomFilter) MightExist(code string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filter.TestString(code)
}

// Count 估算已添加的短码数量。
func (b *BloomFilter) Count() uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.filter.ApproximatedSize()
}
