package middleware

import (
	"strings"

	"github.com/google/uuid"

	"shortener.local/gee"
)

const requestIDHeader = "X-Request-ID"

// maxRequestIDLen 超过这个长度的上游请求号会被替换掉。
const maxRequestIDLen = 128

// ReqID 沿用上游的 X-Request-ID，没有就生成一个，并回写到响应头。
func ReqID() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		id := strings.TrimSpace(ctx.GetHeader(requestIDHeader))
		if id == "" || len(id) > maxRequestIDLen {
			id = GenerateReqID()
		}
		ctx.Req.Header.Set(requestIDHeader, id)
		ctx.SetHeader(requestIDHeader, id)

		ctx.Next()
	}
}

// GenerateReqID 返回 32 个十六进制字符。
func GenerateReqID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
