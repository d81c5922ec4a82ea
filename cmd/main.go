// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"spatial-layer/internal/api"
	"spatial-layer/internal/engine"
	"spatial-layer/internal/logger"
	"spatial-layer/internal/metrics"
	"spatial-layer/internal/middleware"
	"spatial-layer/internal/tilecache"
	"spatial-layer/internal/utils"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	l := logger.Setup()
	l.Debug("log_init_ok")
	apiBase := os.Getenv("API_BASE")
	if apiBase == "" {
		apiBase = "/api"
	}
	l.Debug("config_api_base", "base", apiBase)

	eng := engine.Shared()
	opts := eng.Options()
	l.Info("engine_ready", "canonical_zoom", opts.CanonicalZoom, "max_zoom", opts.MaxZoom)

	// 启动时预加载点数据；失败只记录日志，服务仍可通过 POST /load 加载
	if p := os.Getenv("POINTS_PATH"); p != "" {
		t0 := time.Now()
		data, err := os.ReadFile(p)
		if err != nil {
			l.Error("points_read_error", "path", p, "err", err)
		} else if err := eng.LoadBytes(data); err != nil {
			l.Error("points_preload_error", "path", p, "err", err)
		} else {
			l.Info("points_preload_ok", "path", p, "points", eng.Len(), "duration_ms", time.Since(t0).Milliseconds())
		}
	}

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		if err := rc.Ping(context.Background()).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
	}
	tc := tilecache.NewFromEnv(rc)

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(eng, tc)
	mux.Handle(apiBase+"/", http.StripPrefix(apiBase, apiMux))
	mux.Handle(apiBase+"/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("cache-control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler)
	s := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	if os.Getenv("TLS_ENABLE") == "true" {
		certPath := os.Getenv("TLS_CERT_PATH")
		keyPath := os.Getenv("TLS_KEY_PATH")
		if certPath == "" {
			certPath = filepath.Join("data", "certs", "server.crt")
		}
		if keyPath == "" {
			keyPath = filepath.Join("data", "certs", "server.key")
		}
		if err := utils.EnsureSelfSignedCert(certPath, keyPath, "spatial-layer.local"); err != nil {
			l.Error("tls_cert_error", "err", err)
			os.Exit(1)
		}
		l.Info("listening_tls", "addr", addr, "cert", certPath)
		if err := s.ListenAndServeTLS(certPath, keyPath); err != nil {
			l.Error("server_error", "err", err)
		}
		return
	}
	l.Info("listening", "addr", addr)
	if err := s.ListenAndServe(); err != nil {
		l.Error("server_error", "err", err)
	}
}
