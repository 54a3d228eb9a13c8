package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// 同名指标重复注册会 panic，所以 Init 只执行一次
	once sync.Once

	// HTTPRequestsTotal 按 method / 路由模板 / 状态码累计请求数。
	// route 必须是模板（/:code），不能是真实路径，否则 label 基数无限增长。
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "HTTP请求的总数",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDurationSeconds 请求耗时分布，用来算 P95/P99。
	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPInflightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	ShortlinksCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shortlink_created_total",
			Help: "Short links created.",
		},
	)

	// ShortlinkRedirects 按结果统计跳转：ok / not_found / expired / error
	ShortlinkRedirects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_redirects_total",
			Help: "Redirect attempts by result.",
		},
		[]string{"result"},
	)

	ShortlinksDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shortlink_deleted_total",
			Help: "Short links deleted with a valid token.",
		},
	)

	// CacheOperations level: l1 / l2；result: hit / hit_negative / miss / error
	CacheOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_cache_operations_total",
			Help: "Short code lookup cache operations.",
		},
		[]string{"level", "result"},
	)

	// Sweeps 清理任务执行次数，status: ok / error
	Sweeps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_sweeps_total",
			Help: "Expired link sweeps by outcome.",
		},
		[]string{"status"},
	)

	SweptLinks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shortlink_swept_links_total",
			Help: "Expired links removed by the sweeper.",
		},
	)

	SweepDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shortlink_sweep_duration_seconds",
			Help:    "Duration of one expired link sweep.",
			Buckets: []float64{.005, .01, .05, .1, .5, 1, 5, 10},
		},
	)
)

// Init 注册所有指标，可重复调用。
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			HTTPInflightRequests,
			ShortlinksCreated,
			ShortlinkRedirects,
			ShortlinksDeleted,
			CacheOperations,
			Sweeps,
			SweptLinks,
			SweepDurationSeconds,
		)
	})
}
