package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"shortener.local/internal/platform/config"
)

// New 用 cfg 里的超时配置构造 *http.Server，监听地址为 addr。
func New(addr string, cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// SignalContext 在收到 SIGINT / SIGTERM 时取消。
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Run 启动 srv，stopCtx 取消后在 shutdownTimeout 内优雅关闭。
func Run(stopCtx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	return RunGroup(stopCtx, shutdownTimeout, srv)
}

// RunGroup 同时启动多个 server。任何一个启动失败或 stopCtx 取消时，全部优雅关闭。
func RunGroup(stopCtx context.Context, shutdownTimeout time.Duration, servers ...*http.Server) error {
	g, ctx := errgroup.WithContext(stopCtx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			slog.Info("http server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
