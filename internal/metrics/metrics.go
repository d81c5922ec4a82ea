package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_loads_total",
		Help: "Point buffer loads by result (ok, rejected, superseded)",
	}, []string{"result"})
	LoadDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "spatial_load_duration_ms",
		Help:    "Parse + index build duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 2000},
	})
	PointsLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spatial_points",
		Help: "Number of points in the published store",
	})
	MemoryBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spatial_memory_bytes",
		Help: "Bytes held by the published store and its index",
	})
	TileQueriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spatial_tile_queries_total",
		Help: "Total tile queries",
	})
	TileQueryDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "spatial_tile_query_duration_ms",
		Help:    "Tile query duration in milliseconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 50, 100},
	})
	TilePoints = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "spatial_tile_points",
		Help:    "Points returned per tile query",
		Buckets: []float64{0, 1, 10, 100, 1000, 10000, 100000},
	})
	HitTestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_hit_tests_total",
		Help: "Hit tests by result (hit, miss)",
	}, []string{"result"})
	CameraUpdatesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_camera_updates_total",
		Help: "Camera updates by result (ok, ignored)",
	}, []string{"result"})
	TileCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_tile_cache_total",
		Help: "Tile response cache lookups by layer (memory, redis) and outcome (hit, miss)",
	}, []string{"layer", "outcome"})
	HTTPDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spatial_http_duration_ms",
		Help:    "HTTP adapter request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"route"})
)

func init() {
	prometheus.MustRegister(LoadsTotal)
	prometheus.MustRegister(LoadDurationMs)
	prometheus.MustRegister(PointsLoaded)
	prometheus.MustRegister(MemoryBytes)
	prometheus.MustRegister(TileQueriesTotal)
	prometheus.MustRegister(TileQueryDurationMs)
	prometheus.MustRegister(TilePoints)
	prometheus.MustRegister(HitTestsTotal)
	prometheus.MustRegister(CameraUpdatesTotal)
	prometheus.MustRegister(TileCacheTotal)
	prometheus.MustRegister(HTTPDurationMs)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供 Prometheus 抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
