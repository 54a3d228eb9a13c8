package shortlink

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxCodeAttempts 是 Create 寻找未占用短码的最大尝试次数。
// 62^6 的空间里连续 32 次冲突在任何现实规模下都不会发生。
const DefaultMaxCodeAttempts = 32

// Registry 管理短链记录的生命周期：创建、跳转计数、查询、删除、过期回收。
//
// Registry 本身不加锁，同一记录上的并发写由 Store 串行化。
// cache / filter / events 都是可选的，nil 时跳过。
type Registry struct {
	store       Store
	cache       Cache
	filter      Filter
	events      Publisher
	now         func() time.Time
	genCode     func() string
	maxAttempts int
	reserved    map[string]struct{}
}

type Option func(*Registry)

// WithClock 替换时间源（测试用）。
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithCache(c Cache) Option {
	return func(r *Registry) { r.cache = c }
}

func WithFilter(f Filter) Option {
	return func(r *Registry) { r.filter = f }
}

func WithPublisher(p Publisher) Option {
	return func(r *Registry) { r.events = p }
}

// WithCodeGenerator 替换短码生成函数（测试里用来制造冲突）。
func WithCodeGenerator(gen func() string) Option {
	return func(r *Registry) { r.genCode = gen }
}

func WithMaxCodeAttempts(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// WithReservedCodes 声明不能作为短码的名字，例如和静态路由重名的 "health"。
func WithReservedCodes(codes ...string) Option {
	return func(r *Registry) {
		if r.reserved == nil {
			r.reserved = make(map[string]struct{}, len(codes))
		}
		for _, c := range codes {
			r.reserved[c] = struct{}{}
		}
	}
}

func NewRegistry(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:       store,
		now:         time.Now,
		genCode:     GenerateShortCode,
		maxAttempts: DefaultMaxCodeAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// clock 返回截断到毫秒的 UTC 时间，保证两种存储都能无损往返。
func (r *Registry) clock() time.Time {
	return r.now().UTC().Truncate(time.Millisecond)
}

// Create 为 originalURL 创建短链。expireInMs 为 nil 表示永不过期。
//
// 返回完整记录（包括删除令牌），这是唯一会暴露令牌的操作。
func (r *Registry) Create(ctx context.Context, originalURL string, expireInMs *int64) (ShortLink, error) {
	if err := ValidateURL(originalURL); err != nil {
		return ShortLink{}, err
	}
	if !IsValidExpiration(expireInMs) {
		return ShortLink{}, ErrInvalidExpiration
	}

	now := r.clock()
	link := ShortLink{
		ID:          uuid.NewString(),
		OriginalURL: originalURL,
		DeleteToken: GenerateDeleteToken(),
		CreatedAt:   now,
	}
	if expireInMs != nil {
		exp, err := ComputeExpiry(now, *expireInMs)
		if err != nil {
			return ShortLink{}, ErrInvalidExpiration
		}
		link.ExpiresAt = &exp
	}

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		code := r.genCode()
		if _, ok := r.reserved[code]; ok {
			continue
		}
		// 布隆过滤器说“可能存在”就直接换一个，省一次写库
		if r.filter != nil && r.filter.MightExist(code) {
			continue
		}
		link.ShortCode = code
		err := r.store.Insert(ctx, link)
		if err == nil {
			r.afterCreate(ctx, link)
			return link, nil
		}
		if errors.Is(err, ErrCodeTaken) {
			slog.Debug("short code collision, retrying", "code", code, "attempt", attempt)
			continue
		}
		slog.Error("shortlink insert failed", "err", err)
		return ShortLink{}, storageErr(err)
	}

	slog.Error("short code attempts exhausted", "attempts", r.maxAttempts)
	return ShortLink{}, ErrCodeSpaceExhausted
}

func (r *Registry) afterCreate(ctx context.Context, link ShortLink) {
	if r.filter != nil {
		r.filter.Add(link.ShortCode)
	}
	// 写缓存同时覆盖之前可能存在的负缓存
	if r.cache != nil {
		if err := r.cache.Set(ctx, link.ShortCode, CacheEntry{ExpiresAt: link.ExpiresAt}); err != nil {
			slog.Warn("cache set failed", "code", link.ShortCode, "err", err)
		}
	}
	r.publish(EventCreated, link, link.CreatedAt)

	expires := "never"
	if link.ExpiresAt != nil {
		expires = link.ExpiresAt.Format(time.RFC3339)
	}
	slog.Info("shortlink created", "code", link.ShortCode, "url", link.OriginalURL, "expires_at", expires)
}

// Resolve 解析短码并计一次点击。
//
// 已过期的记录返回 ErrExpired，不计数；不存在返回 ErrNotFound。
func (r *Registry) Resolve(ctx context.Context, code string) (ShortLink, error) {
	if !IsShortCode(code) {
		return ShortLink{}, ErrNotFound
	}
	now := r.clock()

	if r.filter != nil && !r.filter.MightExist(code) {
		return ShortLink{}, ErrNotFound
	}
	cached := false
	if r.cache != nil {
		if entry, ok := r.cache.Get(ctx, code); ok {
			cached = true
			if entry.Missing {
				return ShortLink{}, ErrNotFound
			}
			if entry.ExpiresAt != nil && !entry.ExpiresAt.After(now) {
				slog.Warn("expired shortlink requested", "code", code)
				return ShortLink{}, ErrExpired
			}
		}
	}

	link, err := r.store.IncrementClicks(ctx, code, now)
	switch {
	case err == nil:
		if r.cache != nil && !cached {
			_ = r.cache.Set(ctx, code, CacheEntry{ExpiresAt: link.ExpiresAt})
		}
		slog.Info("redirect", "code", code, "url", link.OriginalURL, "clicks", link.Clicks)
		return link, nil
	case errors.Is(err, ErrNotFound):
		if r.cache != nil {
			_ = r.cache.SetNotFound(ctx, code)
		}
		slog.Warn("unknown shortlink requested", "code", code)
		return ShortLink{}, ErrNotFound
	case errors.Is(err, ErrExpired):
		slog.Warn("expired shortlink requested", "code", code)
		return ShortLink{}, ErrExpired
	}
	slog.Error("shortlink resolve failed", "code", code, "err", err)
	return ShortLink{}, storageErr(err)
}

// List 返回记录，按创建时间倒序。activeOnly 时排除已过期的。
func (r *Registry) List(ctx context.Context, activeOnly bool) ([]ShortLink, error) {
	links, err := r.store.List(ctx, activeOnly, r.clock())
	if err != nil {
		slog.Error("shortlink list failed", "err", err)
		return nil, storageErr(err)
	}
	if links == nil {
		links = []ShortLink{}
	}
	return links, nil
}

// Delete 在令牌匹配时永久删除记录。已过期但未清理的记录同样可以删除。
func (r *Registry) Delete(ctx context.Context, code, token string) error {
	if token == "" {
		return ErrMissingToken
	}
	if !IsShortCode(code) {
		return ErrNotFound
	}
	link, err := r.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			slog.Warn("delete of unknown shortlink", "code", code)
			return ErrNotFound
		}
		slog.Error("shortlink lookup failed", "code", code, "err", err)
		return storageErr(err)
	}
	if subtle.ConstantTimeCompare([]byte(link.DeleteToken), []byte(token)) != 1 {
		slog.Warn("delete with invalid token", "code", code)
		return ErrForbidden
	}
	if err := r.store.DeleteByCode(ctx, code); err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("shortlink delete failed", "code", code, "err", err)
		}
		return storageErr(err)
	}

	if r.cache != nil {
		_ = r.cache.Delete(ctx, code)
	}
	r.publish(EventDeleted, link, r.clock())
	slog.Info("shortlink deleted", "code", code)
	return nil
}

// Info 返回记录及派生状态，不计点击。
func (r *Registry) Info(ctx context.Context, code string) (LinkInfo, error) {
	if !IsShortCode(code) {
		return LinkInfo{}, ErrNotFound
	}
	link, err := r.store.FindByCode(ctx, code)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Error("shortlink lookup failed", "code", code, "err", err)
		}
		return LinkInfo{}, storageErr(err)
	}

	now := r.clock()
	info := LinkInfo{Link: link, IsExpired: link.IsExpiredAt(now)}
	if link.ExpiresAt != nil && !info.IsExpired {
		left := FormatDuration(link.ExpiresAt.Sub(now))
		info.TimeUntilExpiration = &left
	}
	return info, nil
}

// Stats 返回调用时刻的聚合数据。
func (r *Registry) Stats(ctx context.Context) (Stats, error) {
	now := r.clock()
	st, err := r.store.Stats(ctx, now)
	if err != nil {
		slog.Error("shortlink stats failed", "err", err)
		return Stats{}, storageErr(err)
	}
	st.At = now
	return st, nil
}

// PurgeExpired 批量删除所有已过期记录，返回被删除的短码。供清理任务调用。
func (r *Registry) PurgeExpired(ctx context.Context) ([]string, error) {
	now := r.clock()
	removed, err := r.store.DeleteExpired(ctx, now)
	if err != nil {
		return nil, storageErr(err)
	}

	codes := make([]string, 0, len(removed))
	for _, link := range removed {
		codes = append(codes, link.ShortCode)
		if r.cache != nil {
			_ = r.cache.Delete(ctx, link.ShortCode)
		}
		r.publish(EventExpired, link, now)
		slog.Debug("expired shortlink removed",
			"code", link.ShortCode,
			"created_at", link.CreatedAt,
			"expires_at", link.ExpiresAt,
			"clicks", link.Clicks,
		)
	}
	return codes, nil
}

// WarmFilter 把已存储的全部短码灌入布隆过滤器，启动时调用一次。
func (r *Registry) WarmFilter(ctx context.Context) (int, error) {
	if r.filter == nil {
		return 0, nil
	}
	codes, err := r.store.Codes(ctx)
	if err != nil {
		return 0, storageErr(err)
	}
	for _, code := range codes {
		r.filter.Add(code)
	}
	return len(codes), nil
}

func (r *Registry) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

func (r *Registry) publish(kind EventKind, link ShortLink, at time.Time) {
	if r.events == nil {
		return
	}
	r.events.Publish(Event{
		Kind:      kind,
		Code:      link.ShortCode,
		URL:       link.OriginalURL,
		Clicks:    link.Clicks,
		ExpiresAt: link.ExpiresAt,
		At:        at,
	})
}
