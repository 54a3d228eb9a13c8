// Package adminhttp 是只对本机/内网开放的管理端口：指标、就绪检查、版本、pprof。
package adminhttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger 是 /readyz 依赖的存活检查，shortlink.Registry 满足它。
type Pinger interface {
	Ping(ctx context.Context) error
}

// BuildInfo 由 main 在链接时注入（-ldflags -X）。
type BuildInfo struct {
	ServiceName string
	Version     string
	Commit      string
	BuildTime   string
}

type Options struct {
	Ready        Pinger
	Build        BuildInfo
	PprofEnabled bool
	// ReadyTimeout 默认 3s
	ReadyTimeout time.Duration
}

// NewHandler 返回管理端口的路由。
func NewHandler(opts Options) http.Handler {
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 3 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/readyz", readyHandler(opts.Ready, opts.ReadyTimeout))
	r.Get("/version", versionHandler(opts.Build))
	if opts.PprofEnabled {
		r.Mount("/debug", middleware.Profiler())
	}
	return r
}

func readyHandler(p Pinger, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p == nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			slog.Warn("readiness check failed", "err", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("store ready"))
	}
}

func versionHandler(b BuildInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"service_name": b.ServiceName,
			"version":      b.Version,
			"commit":       b.Commit,
			"build_time":   b.BuildTime,
			"go_version":   runtime.Version(),
		})
	}
}
