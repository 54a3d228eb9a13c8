package shortlink

import (
	"crypto/rand"
	"strings"

	"github.com/google/uuid"
)

// 短码字母表：大小写字母 + 数字，共 62 个符号。
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// CodeLength 是生成短码的固定长度。62^6 ≈ 568 亿。
const CodeLength = 6

// 拒绝采样的上界：256 以内最大的 62 的倍数，避免取模带来的偏差。
const maxUnbiased = 256 - 256%len(alphabet)

// GenerateShortCode 返回 6 位随机短码，每一位独立且均匀地取自 62 字符表。
//
// 不保证唯一，唯一性由 Registry 的重试 + 存储层唯一约束保证。
func GenerateShortCode() string {
	var out [CodeLength]byte
	var buf [CodeLength * 2]byte
	filled := 0
	for filled < CodeLength {
		if _, err := rand.Read(buf[:]); err != nil {
			// crypto/rand 在受支持的平台上不会失败
			panic("shortlink: crypto/rand failed: " + err.Error())
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out[filled] = alphabet[int(b)%len(alphabet)]
			filled++
			if filled == CodeLength {
				break
			}
		}
	}
	return string(out[:])
}

// GenerateDeleteToken 返回 128 位随机 UUID 的紧凑形式（32 位十六进制，无连字符）。
func GenerateDeleteToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsShortCode 判断 s 是否可能是本服务签发的短码。
func IsShortCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(alphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}
