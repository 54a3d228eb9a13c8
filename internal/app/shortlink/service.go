package shortlink

import (
	"context"
	"time"
)

// ShortLink 是短链领域对象。
//
// 领域层不携带 HTTP/DB 细节（没有 JSON tag、没有 SQL 字段名），
// 对外的 JSON 形状由 httpapi 的 view 决定。
type ShortLink struct {
	ID          string
	OriginalURL string
	ShortCode   string
	DeleteToken string
	CreatedAt   time.Time
	ExpiresAt   *time.Time // nil 表示永不过期
	Clicks      int64
}

// IsExpiredAt 当且仅当设置了过期时间且 ExpiresAt <= now。
func (l ShortLink) IsExpiredAt(now time.Time) bool {
	return l.ExpiresAt != nil && !l.ExpiresAt.After(now)
}

// LinkInfo 是 Info 的结果：记录本身 + 派生状态。
type LinkInfo struct {
	Link                ShortLink
	IsExpired           bool
	TimeUntilExpiration *string // 仅在设置了过期时间且尚未过期时有值
}

// Stats 是某一时刻全量记录的聚合。
type Stats struct {
	Total       int64
	Active      int64
	Expired     int64
	TotalClicks int64
	At          time.Time
}

// Store 是持久化的抽象：一个带短码唯一约束的键索引存储。
//
// 并发控制由实现负责：点击数自增必须是相对存储值的原子更新，
// 短码唯一性由唯一约束保证。
type Store interface {
	// Insert 写入新记录；短码冲突返回 ErrCodeTaken。
	Insert(ctx context.Context, link ShortLink) error
	// FindByCode 返回记录（包括已过期未清理的），不存在返回 ErrNotFound。
	FindByCode(ctx context.Context, code string) (ShortLink, error)
	// IncrementClicks 对未过期记录原子地 clicks+1 并返回更新后的记录。
	// 不存在返回 ErrNotFound，已过期返回 ErrExpired（且不自增）。
	IncrementClicks(ctx context.Context, code string, now time.Time) (ShortLink, error)
	// List 按 created_at 倒序返回记录；activeOnly 时排除 now 时刻已过期的。
	List(ctx context.Context, activeOnly bool, now time.Time) ([]ShortLink, error)
	// DeleteByCode 永久删除记录，不存在返回 ErrNotFound。
	DeleteByCode(ctx context.Context, code string) error
	// DeleteExpired 批量删除 now 时刻所有已过期记录，返回被删除的记录。
	DeleteExpired(ctx context.Context, now time.Time) ([]ShortLink, error)
	// Stats 返回 now 时刻的聚合数据。
	Stats(ctx context.Context, now time.Time) (Stats, error)
	// Codes 返回全部已存储的短码（用于预热布隆过滤器）。
	Codes(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close()
}

// CacheEntry 是短码查找缓存中的一项，只缓存不可变的部分。
type CacheEntry struct {
	Missing   bool       // 负缓存：短码不存在
	ExpiresAt *time.Time // Missing=false 时有效
}

// Cache 是短码 -> CacheEntry 的旁路缓存。实现允许失败，失败时按未命中处理。
type Cache interface {
	Get(ctx context.Context, code string) (CacheEntry, bool)
	Set(ctx context.Context, code string, entry CacheEntry) error
	SetNotFound(ctx context.Context, code string) error
	Delete(ctx context.Context, code string) error
}

// Filter 是短码存在性过滤器（布隆过滤器）。
//
// MightExist 返回 false 表示一定不存在。
type Filter interface {
	Add(code string)
	MightExist(code string) bool
}

// EventKind 生命周期事件类型。
type EventKind string

const (
	EventCreated EventKind = "created"
	EventDeleted EventKind = "deleted"
	EventExpired EventKind = "expired"
)

// Event 是短链生命周期事件（创建/删除/过期清理），不包含点击明细。
type Event struct {
	Kind      EventKind
	Code      string
	URL       string
	Clicks    int64
	ExpiresAt *time.Time
	At        time.Time
}

// Publisher 投递生命周期事件。Publish 不能阻塞请求路径。
type Publisher interface {
	Publish(event Event)
	Close()
}
