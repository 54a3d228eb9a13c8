package middleware

import (
	"log/slog"
	"time"

	"shortener.local/gee"
)

// AccessLog 每个请求结束后打一条 access 日志。5xx 用 Error 级别。
func AccessLog() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		start := time.Now()

		ctx.Next()

		status := ctx.Writer.Status()
		level := slog.LevelInfo
		if status >= 500 {
			level = slog.LevelError
		}
		slog.Log(ctx.Req.Context(), level, "access",
			"request_id", ctx.RequestID(),
			"method", ctx.Method,
			"path", ctx.Path,
			"route", ctx.RoutePattern,
			"status", status,
			"bytes", ctx.Writer.Size(),
			"client_ip", ctx.ClientIP(),
			"latency_ms", time.Since(start).Milliseconds())
	}
}
