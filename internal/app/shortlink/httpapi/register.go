package httpapi

import (
	"shortener.local/gee"
	"shortener.local/internal/app/shortlink"
)

// Options 是 HTTP 层自己的配置。
type Options struct {
	// PublicBaseURL 非空时 shortUrl 用它做前缀，例如 https://s.example.com。
	PublicBaseURL string
}

// ReservedCodes 是和静态路由同名、能通过短码格式校验的名字。
// 静态路由优先于 /:code，这些短码永远跳转不到，Registry 生成时要跳过。
var ReservedCodes = []string{"health"}

// RegisterRoutes 挂载短链的全部公开路由。
func RegisterRoutes(engine *gee.Engine, reg *shortlink.Registry, opts Options) {
	v := newViews(opts.PublicBaseURL)

	engine.POST("/urls", NewCreateHandler(reg, v))
	engine.GET("/urls", NewListHandler(reg, v))
	engine.DELETE("/urls/:code", NewDeleteHandler(reg))
	engine.GET("/urls/:code/info", NewInfoHandler(reg, v))

	engine.GET("/stats", NewStatsHandler(reg))
	engine.GET("/health", NewHealthHandler())

	engine.GET("/:code", NewRedirectHandler(reg))
}
