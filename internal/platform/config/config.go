package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr              string
	IdleTimeout       time.Duration // 连接处理完一个请求后等待 IdleTimeout 后依旧没有请求，就会关闭此空闲连接
	ShutdownTimeout   time.Duration // 关闭服务的最长等待时间，超过后强制断开连接
	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration

	// 日志
	LogLevel    slog.Level
	LogFormat   string
	ServiceName string

	// 管理端口：/metrics /readyz /version，开启 pprof 时还有 /debug
	PprofEnabled bool
	AdminAddr    string

	// DBDSN 以 postgres:// 或 postgresql:// 开头时用 PostgreSQL，否则当作 SQLite 文件路径
	DBDSN string

	// CleanupIntervalMinutes 原样保留，<=0 时由 sweeper 回退到默认值
	CleanupIntervalMinutes int

	// PublicBaseURL 非空时 shortUrl 用它做前缀
	PublicBaseURL      string
	CORSAllowedOrigins []string

	// 本地缓存（ristretto）和布隆过滤器
	CacheEnabled bool
	BloomEnabled bool

	// Redis 二级缓存
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Kafka 生命周期事件
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	OtlpGrpcEndpoint string
	OtlpServiceName  string
	TracingEnabled   bool
}

func Load() Config {
	cfg := Config{
		Addr:              ":9999",
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,

		LogLevel:    slog.LevelInfo,
		LogFormat:   "json",
		ServiceName: "shortener-api",

		PprofEnabled: false,
		AdminAddr:    "127.0.0.1:6060",

		DBDSN: "urlshortener.db",

		CleanupIntervalMinutes: 1,

		CORSAllowedOrigins: []string{"*"},

		CacheEnabled: true,
		BloomEnabled: false,

		RedisEnabled:  false,
		RedisAddr:     "localhost:6379",
		RedisPassword: "",
		RedisDB:       0,

		KafkaEnabled: false,
		KafkaBrokers: []string{"localhost:9092"},
		KafkaTopic:   "shortlink-events",

		OtlpGrpcEndpoint: "127.0.0.1:4317",
		OtlpServiceName:  "shortener-api",
		TracingEnabled:   false,
	}

	_ = godotenv.Load(".env")

	if v, ok := os.LookupEnv("ADDR"); ok && v != "" {
		cfg.Addr = v
	}
	lookupDuration("IDLE_TIMEOUT", &cfg.IdleTimeout)
	lookupDuration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	lookupDuration("READ_HEADER_TIMEOUT", &cfg.ReadHeaderTimeout)
	lookupDuration("READ_TIMEOUT", &cfg.ReadTimeout)
	lookupDuration("WRITE_TIMEOUT", &cfg.WriteTimeout)

	if v, ok := os.LookupEnv("LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = parseLevel(v)
	}
	if v, ok := os.LookupEnv("LOG_FORMAT"); ok && v != "" {
		cfg.LogFormat = v
	}
	if v, ok := os.LookupEnv("SERVICE_NAME"); ok && v != "" {
		cfg.ServiceName = v
	}

	lookupBool("PPROF_ENABLED", &cfg.PprofEnabled)
	if v, ok := os.LookupEnv("ADMIN_ADDR"); ok && v != "" {
		cfg.AdminAddr = v
	}

	if v, ok := os.LookupEnv("DB_DSN"); ok && v != "" {
		cfg.DBDSN = v
	}
	if v, ok := os.LookupEnv("CLEANUP_INTERVAL_MINUTES"); ok && v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.CleanupIntervalMinutes = n
		} else {
			slog.Warn("invalid CLEANUP_INTERVAL_MINUTES, using default", "value", v, "default", cfg.CleanupIntervalMinutes)
		}
	}

	if v, ok := os.LookupEnv("PUBLIC_BASE_URL"); ok {
		cfg.PublicBaseURL = strings.TrimSpace(v)
	}
	if v, ok := os.LookupEnv("CORS_ALLOWED_ORIGINS"); ok && v != "" {
		cfg.CORSAllowedOrigins = splitList(v)
	}

	lookupBool("CACHE_ENABLED", &cfg.CacheEnabled)
	lookupBool("BLOOM_ENABLED", &cfg.BloomEnabled)

	// Redis
	lookupBool("REDIS_ENABLED", &cfg.RedisEnabled)
	if v, ok := os.LookupEnv("REDIS_ADDR"); ok && v != "" {
		cfg.RedisAddr = v
	}
	if v, ok := os.LookupEnv("REDIS_PASSWORD"); ok && v != "" {
		cfg.RedisPassword = v
	}
	if v, ok := os.LookupEnv("REDIS_DB"); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.RedisDB = n
		}
	}

	// Kafka
	lookupBool("KAFKA_ENABLED", &cfg.KafkaEnabled)
	if v, ok := os.LookupEnv("KAFKA_BROKERS"); ok && v != "" {
		cfg.KafkaBrokers = splitList(v)
	}
	if v, ok := os.LookupEnv("KAFKA_TOPIC"); ok && v != "" {
		cfg.KafkaTopic = v
	}

	// Tracing
	lookupBool("TRACING_ENABLED", &cfg.TracingEnabled)
	if v, ok := os.LookupEnv("OTLP_GRPC_ENDPOINT"); ok && v != "" {
		cfg.OtlpGrpcEndpoint = v
	}
	if v, ok := os.LookupEnv("OTLP_SERVICE_NAME"); ok && v != "" {
		cfg.OtlpServiceName = v
	}

	return cfg
}

// CleanupInterval 把分钟数换成 time.Duration，不做校验。
func (c Config) CleanupInterval() time.Duration {
	return time.Duration(c.CleanupIntervalMinutes) * time.Minute
}

func parseLevel(v string) slog.Level {
	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func lookupDuration(key string, dst *time.Duration) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func lookupBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = strings.ToLower(strings.TrimSpace(v)) == "true"
	}
}

// splitList 按逗号切分并去掉空白项。
func splitList(v string) []string {
	out := make([]string, 0)
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
