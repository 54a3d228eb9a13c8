// Package sweeper 周期性地删除已过期的短链。
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"shortener.local/internal/platform/metrics"
	"shortener.local/internal/platform/trace"
)

const (
	DefaultInterval = time.Minute

	// 单次清理的超时，同时也是 Run 退出时等待在途清理的上限
	sweepTimeout = 30 * time.Second
)

// Purger 批量删除已过期记录并返回被删除的短码，由 shortlink.Registry 实现。
type Purger interface {
	PurgeExpired(ctx context.Context) ([]string, error)
}

type Config struct {
	// Interval <= 0 时使用 DefaultInterval
	Interval time.Duration
	// TracerProvider 为 nil 时使用全局 provider
	TracerProvider oteltrace.TracerProvider
}

// Report 是一次清理的结果。
type Report struct {
	Removed  []string
	Duration time.Duration
}

type Sweeper struct {
	purger   Purger
	interval time.Duration
	tracer   oteltrace.Tracer
}

func New(p Purger, cfg Config) *Sweeper {
	interval := cfg.Interval
	if interval <= 0 {
		slog.Warn("invalid cleanup interval, falling back to default",
			"interval", cfg.Interval.String(), "default", DefaultInterval.String())
		interval = DefaultInterval
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &Sweeper{
		purger:   p,
		interval: interval,
		tracer:   tp.Tracer("shortener.local/internal/app/shortlink/sweeper"),
	}
}

func (s *Sweeper) Interval() time.Duration { return s.interval }

// SweepOnce 执行一次清理。重复执行是幂等的：没有过期记录时返回空 Report。
func (s *Sweeper) SweepOnce(ctx context.Context) (Report, error) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()
	ctx, span := s.tracer.Start(ctx, "shortlink.sweep")
	defer span.End()

	start := time.Now()
	removed, err := s.purger.PurgeExpired(ctx)
	rep := Report{Removed: removed, Duration: time.Since(start)}
	metrics.SweepDurationSeconds.Observe(rep.Duration.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.Sweeps.WithLabelValues("error").Inc()
		return rep, err
	}

	span.SetAttributes(attribute.Int(trace.SweepRemoved, len(removed)))
	metrics.Sweeps.WithLabelValues("ok").Inc()
	metrics.SweptLinks.Add(float64(len(removed)))
	if len(removed) > 0 {
		slog.Info("expired shortlinks removed", "count", len(removed), "codes", removed, "took", rep.Duration.String())
	} else {
		slog.Debug("no expired shortlinks")
	}
	return rep, nil
}

// Run 立即清理一次，然后按 Interval 周期执行，直到 ctx 取消。
//
// 清理失败只记日志，不会终止循环；上一次还没结束时跳过本次。
func (s *Sweeper) Run(ctx context.Context) {
	slog.Info("cleanup sweeper started", "interval", s.interval.String())
	s.sweep(ctx)

	l := cronLogger{}
	c := cron.New(
		cron.WithLogger(l),
		cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
	)
	c.Schedule(cron.Every(s.interval), cron.FuncJob(func() { s.sweep(ctx) }))
	c.Start()

	<-ctx.Done()
	stopped := c.Stop()
	select {
	case <-stopped.Done():
	case <-time.After(sweepTimeout):
		slog.Warn("cleanup sweeper stop timed out")
	}
	slog.Info("cleanup sweeper stopped")
}

func (s *Sweeper) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("cleanup sweep panicked", "panic", fmt.Sprint(r))
		}
	}()
	if _, err := s.SweepOnce(ctx); err != nil {
		slog.Error("cleanup sweep failed", "err", err)
	}
}

// cronLogger 把 cron 的日志接到 slog。
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
