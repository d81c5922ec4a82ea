// 包 logger：http访问日志中间件，统一记录外部访问的关键维度（方法、路径、状态、耗时、字节数、远端地址）
package logger

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"spatial-layer/internal/metrics"
)

// statusWriter：包装 ResponseWriter 以捕获状态码与写出字节数
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// AccessMiddleware：生成访问日志中间件，并按路由首段记录耗时直方图
// 约束：瓦片请求量大，访问日志固定为 Debug 级别；不读取请求体
func AccessMiddleware(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r)
			dur := time.Since(start)
			metrics.HTTPDurationMs.WithLabelValues(routeLabel(r.URL.Path)).Observe(float64(dur.Microseconds()) / 1000)
			l.Debug("http_access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"bytes", sw.bytes,
				"duration_ms", dur.Milliseconds(),
				"ip", r.RemoteAddr,
			)
		})
	}
}

// routeLabel：取路径中第一个已知路由名，避免瓦片坐标造成标签基数爆炸
func routeLabel(p string) string {
	for _, seg := range strings.Split(strings.Trim(p, "/"), "/") {
		switch seg {
		case "load", "memory", "tiles", "hit", "camera", "bounds", "styles", "metrics":
			return seg
		}
	}
	return "other"
}
