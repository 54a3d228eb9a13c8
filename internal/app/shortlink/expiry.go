package shortlink

import (
	"strconv"
	"strings"
	"time"
)

const (
	// MinExpirationMs 最短有效期：1 秒。
	MinExpirationMs int64 = 1000
	// MaxExpirationMs 最长有效期：2 年（按 365 天计）。
	MaxExpirationMs int64 = 2 * 365 * 24 * 60 * 60 * 1000
)

const (
	day   = 24 * time.Hour
	month = 30 * day
	year  = 365 * day
)

// IsValidExpiration 校验请求中的有效期（毫秒）。nil 表示永不过期，始终合法。
func IsValidExpiration(requestedMs *int64) bool {
	if requestedMs == nil {
		return true
	}
	return *requestedMs >= MinExpirationMs && *requestedMs <= MaxExpirationMs
}

// ComputeExpiry 返回 now + requestedMs 的 UTC 时间点。requestedMs 必须为正。
func ComputeExpiry(now time.Time, requestedMs int64) (time.Time, error) {
	if requestedMs <= 0 {
		return time.Time{}, ErrInvalidArgument
	}
	return now.UTC().Add(time.Duration(requestedMs) * time.Millisecond), nil
}

// FormatDuration 把时长渲染成 "1y 2mo 3d 4h 5m 6s" 这样的紧凑字符串。
//
// 为 0 的单位省略；所有单位都为 0 时输出 "0s"。只用于展示。
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	units := []struct {
		size   time.Duration
		suffix string
	}{
		{year, "y"},
		{month, "mo"},
		{day, "d"},
		{time.Hour, "h"},
		{time.Minute, "m"},
	}

	parts := make([]string, 0, 6)
	for _, u := range units {
		if n := d / u.size; n > 0 {
			parts = append(parts, strconv.FormatInt(int64(n), 10)+u.suffix)
			d -= n * u.size
		}
	}
	if secs := d / time.Second; secs > 0 || len(parts) == 0 {
		parts = append(parts, strconv.FormatInt(int64(secs), 10)+"s")
	}
	return strings.Join(parts, " ")
}

// MaxExpiration 以 time.Duration 表示的最长有效期。
func MaxExpiration() time.Duration {
	return time.Duration(MaxExpirationMs) * time.Millisecond
}
