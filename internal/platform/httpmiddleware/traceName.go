package httpmiddleware

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"shortener.local/gee"
	apptrace "shortener.local/internal/platform/trace"
)

// TraceName 把 otelhttp 建的 span 改名为 "METHOD 路由模板"，
// 路由里有 :code 时再带上短码属性。
func TraceName() gee.HandlerFunc {
	return func(ctx *gee.Context) {
		span := trace.SpanFromContext(ctx.Req.Context())
		span.SetName(ctx.Method + " " + routeLabel(ctx))
		if code := ctx.Param("code"); code != "" {
			span.SetAttributes(attribute.String(apptrace.ShortCode, code))
		}
		ctx.Next()
	}
}
