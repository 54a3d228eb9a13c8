package httpmiddleware

import (
	"strconv"
	"time"

	"shortener.local/gee"
	"shortener.local/internal/platform/metrics"
)

// unmatchedRoute 是 404/405 请求的 route label，避免把任意路径写进 label。
const unmatchedRoute = "UNMATCHED"

func Metrics() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		start := time.Now()
		metrics.HTTPInflightRequests.Inc()
		defer metrics.HTTPInflightRequests.Dec()

		defer func() {
			route := routeLabel(ctx)
			status := strconv.Itoa(ctx.Writer.Status())
			metrics.HTTPRequestsTotal.WithLabelValues(ctx.Method, route, status).Inc()
			metrics.HTTPRequestDurationSeconds.WithLabelValues(ctx.Method, route).Observe(time.Since(start).Seconds())
		}()
		ctx.Next()
	}
}

func routeLabel(ctx *gee.Context) string {
	if ctx.RoutePattern == "" {
		return unmatchedRoute
	}
	return ctx.RoutePattern
}
