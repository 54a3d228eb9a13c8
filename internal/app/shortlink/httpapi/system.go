package httpapi

import (
	"net/http"
	"time"

	"shortener.local/gee"
	"shortener.local/internal/app/shortlink"
)

func NewStatsHandler(reg *shortlink.Registry) gee.HandlerFunc {
	return func(ctx *gee.Context) {
		st, err := reg.Stats(ctx.Req.Context())
		if err != nil {
			abortWithDomainError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, toStatsView(st))
	}
}

// NewHealthHandler 只表示进程存活，不检查存储；存储检查在管理端口的 /readyz。
func NewHealthHandler() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		ctx.JSON(http.StatusOK, healthView{Status: "healthy", Timestamp: time.Now().UTC()})
	}
}
