package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"shortener.local/gee"
	"shortener.local/gee/middleware"
	"shortener.local/internal/app/shortlink"
	slcache "shortener.local/internal/app/shortlink/cache"
	"shortener.local/internal/app/shortlink/events"
	"shortener.local/internal/app/shortlink/httpapi"
	"shortener.local/internal/app/shortlink/repo"
	"shortener.local/internal/app/shortlink/sweeper"
	"shortener.local/internal/platform/adminhttp"
	platformcache "shortener.local/internal/platform/cache"
	"shortener.local/internal/platform/config"
	"shortener.local/internal/platform/httpmiddleware"
	"shortener.local/internal/platform/httpserver"
	"shortener.local/internal/platform/metrics"
	"shortener.local/internal/platform/trace"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		slog.Error("shortener exited", "err", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	var h slog.Handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	if cfg.LogFormat == "text" {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel})
	}
	slog.SetDefault(slog.New(h).With("service", cfg.ServiceName))

	metrics.Init()

	if cfg.TracingEnabled {
		if shutdown := trace.InitTrace(cfg.OtlpGrpcEndpoint, cfg.OtlpServiceName); shutdown != nil {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					slog.Error(err.Error())
				}
			}()
		}
	} else {
		slog.Info("tracing disabled by config", "TRACING_ENABLED", false)
	}

	// 存储
	openCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := repo.Open(openCtx, cfg.DBDSN)
	cancel()
	if err != nil {
		return err
	}
	defer store.Close()

	opts := []shortlink.Option{shortlink.WithReservedCodes(httpapi.ReservedCodes...)}

	// 缓存：L1 ristretto，L2 Redis（可选）
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient, err = platformcache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}
	if cfg.CacheEnabled || redisClient != nil {
		var local *slcache.LocalCache
		if cfg.CacheEnabled {
			local, err = slcache.NewLocalCache(100_000, 1<<24) // 10万条目，16MB
			if err != nil {
				return err
			}
		}
		linkCache := slcache.NewShortlinkCache(redisClient, local)
		defer linkCache.Close()
		opts = append(opts, shortlink.WithCache(linkCache))
	}

	// 布隆过滤器只在单实例部署时可靠，默认关闭
	var bloomFilter *slcache.BloomFilter
	if cfg.BloomEnabled {
		bloomFilter = slcache.NewBloomFilter(1_000_000, 0.01)
		opts = append(opts, shortlink.WithFilter(bloomFilter))
	}

	// 生命周期事件
	var publisher shortlink.Publisher = events.NewLogPublisher(slog.Default())
	if cfg.KafkaEnabled {
		slog.Info("publishing shortlink events to kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	defer publisher.Close()
	opts = append(opts, shortlink.WithPublisher(publisher))

	registry := shortlink.NewRegistry(store, opts...)

	if bloomFilter != nil {
		warmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := registry.WarmFilter(warmCtx)
		cancel()
		if err != nil {
			return err
		}
		slog.Info("bloom filter warmed", "codes", n)
	}

	// 对外业务
	r := gee.New()
	r.Use(middleware.ReqID(), middleware.AccessLog(), gee.Recovery(), httpmiddleware.Metrics())
	if cfg.TracingEnabled {
		r.Use(httpmiddleware.TraceName())
	}
	httpapi.RegisterRoutes(r, registry, httpapi.Options{PublicBaseURL: cfg.PublicBaseURL})

	var publicHandler http.Handler = r
	if cfg.TracingEnabled {
		publicHandler = otelhttp.NewHandler(publicHandler, "http")
	}
	publicHandler = httpmiddleware.CORS(cfg.CORSAllowedOrigins)(publicHandler)
	publicSrv := httpserver.New(cfg.Addr, cfg, publicHandler)

	// 仅本机/内网
	adminSrv := httpserver.New(cfg.AdminAddr, cfg, adminhttp.NewHandler(adminhttp.Options{
		Ready:        registry,
		PprofEnabled: cfg.PprofEnabled,
		Build: adminhttp.BuildInfo{
			ServiceName: cfg.ServiceName,
			Version:     version,
			Commit:      commit,
			BuildTime:   buildTime,
		},
	}))
	if cfg.PprofEnabled {
		// pprof 的 profile 接口会长时间写响应
		adminSrv.WriteTimeout = 0
	}

	stopCtx, stop := httpserver.SignalContext()
	defer stop()

	sw := sweeper.New(registry, sweeper.Config{Interval: cfg.CleanupInterval()})
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		sw.Run(stopCtx)
	}()

	err = httpserver.RunGroup(stopCtx, cfg.ShutdownTimeout, publicSrv, adminSrv)
	stop()
	<-sweeperDone
	if err != nil {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}
