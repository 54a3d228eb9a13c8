package shortlink

import (
	"net/url"
	"strings"
)

// MaxURLLength 原始链接的最大长度。
const MaxURLLength = 2048

// ValidateURL 校验用户输入的原始链接。
//
// 规则：
// - 非空，长度不超过 2048
// - 必须是绝对 URL，scheme 为 http/https
// - host 不能为空
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" || len(raw) > MaxURLLength {
		return ErrInvalidURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if !u.IsAbs() {
		return ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL
	}
	if strings.TrimSpace(u.Host) == "" {
		return ErrInvalidURL
	}
	return nil
}
