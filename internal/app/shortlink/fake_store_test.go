package shortlink

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// memStore 是测试用的内存 Store，语义与真实存储一致。
type memStore struct {
	mu      sync.Mutex
	links   map[string]ShortLink
	inserts int
	failAll error
}

func newMemStore() *memStore {
	return &memStore{links: map[string]ShortLink{}}
}

func (s *memStore) Insert(_ context.Context, link ShortLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	s.inserts++
	if _, ok := s.links[link.ShortCode]; ok {
		return ErrCodeTaken
	}
	s.links[link.ShortCode] = link
	return nil
}

func (s *memStore) FindByCode(_ context.Context, code string) (ShortLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return ShortLink{}, s.failAll
	}
	l, ok := s.links[code]
	if !ok {
		return ShortLink{}, ErrNotFound
	}
	return l, nil
}

func (s *memStore) IncrementClicks(_ context.Context, code string, now time.Time) (ShortLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return ShortLink{}, s.failAll
	}
	l, ok := s.links[code]
	if !ok {
		return ShortLink{}, ErrNotFound
	}
	if l.IsExpiredAt(now) {
		return ShortLink{}, ErrExpired
	}
	l.Clicks++
	s.links[code] = l
	return l, nil
}

func (s *memStore) List(_ context.Context, activeOnly bool, now time.Time) ([]ShortLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ShortLink
	for _, l := range s.links {
		if activeOnly && l.IsExpiredAt(now) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ShortCode < out[j].ShortCode
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memStore) DeleteByCode(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.links[code]; !ok {
		return ErrNotFound
	}
	delete(s.links, code)
	return nil
}

func (s *memStore) DeleteExpired(_ context.Context, now time.Time) ([]ShortLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return nil, s.failAll
	}
	var out []ShortLink
	for code, l := range s.links {
		if l.IsExpiredAt(now) {
			out = append(out, l)
			delete(s.links, code)
		}
	}
	return out, nil
}

func (s *memStore) Stats(_ context.Context, now time.Time) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var st Stats
	for _, l := range s.links {
		st.Total++
		st.TotalClicks += l.Clicks
		if l.IsExpiredAt(now) {
			st.Expired++
		} else {
			st.Active++
		}
	}
	return st, nil
}

func (s *memStore) Codes(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.links))
	for code := range s.links {
		out = append(out, code)
	}
	return out, nil
}

func (s *memStore) Ping(context.Context) error { return nil }
func (s *memStore) Close()                     {}

// mapCache 是测试用的 Cache。
type mapCache struct {
	mu      sync.Mutex
	entries map[string]CacheEntry
}

func newMapCache() *mapCache { return &mapCache{entries: map[string]CacheEntry{}} }

func (c *mapCache) Get(_ context.Context, code string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[code]
	return e, ok
}

func (c *mapCache) Set(_ context.Context, code string, e CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[code] = e
	return nil
}

func (c *mapCache) SetNotFound(_ context.Context, code string) error {
	return c.Set(context.Background(), code, CacheEntry{Missing: true})
}

func (c *mapCache) Delete(_ context.Context, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, code)
	return nil
}

// setFilter 是精确的 Filter（没有误判）。
type setFilter struct {
	mu    sync.Mutex
	codes map[string]bool
}

func newSetFilter() *setFilter { return &setFilter{codes: map[string]bool{}} }

func (f *setFilter) Add(code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes[code] = true
}

func (f *setFilter) MightExist(code string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.codes[code]
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) kinds() []EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventKind, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

// fakeClock 可手动推进的时钟。
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var errBoom = errors.New("disk on fire")
