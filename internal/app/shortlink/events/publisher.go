package events

import (
	"log/slog"

	"shortener.local/internal/app/shortlink"
)

// LogPublisher 把生命周期事件写进结构化日志，是没有配置 Kafka 时的默认实现。
type LogPublisher struct {
	logger *slog.Logger
}

var _ shortlink.Publisher = (*LogPublisher)(nil)

// NewLogPublisher logger 为 nil 时使用 slog.Default()。
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(e shortlink.Event) {
	attrs := []any{
		"kind", string(e.Kind),
		"code", e.Code,
		"url", e.URL,
		"clicks", e.Clicks,
		"at", e.At,
	}
	if e.ExpiresAt != nil {
		attrs = append(attrs, "expires_at", *e.ExpiresAt)
	}
	p.logger.Info("shortlink event", attrs...)
}

func (p *LogPublisher) Close() {}
