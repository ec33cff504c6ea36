// Package router собирает HTTP API авторитетного узла
package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iudanet/medsync/internal/metrics"
	"github.com/iudanet/medsync/internal/server/handlers"
	"github.com/iudanet/medsync/internal/server/middleware"
	"github.com/iudanet/medsync/pkg/api"
)

// Config задает зависимости роутера
type Config struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer // nil отключает /metrics
	Health    *handlers.HealthHandler
	Commands  *handlers.CommandsHandler
	Snapshots *handlers.SnapshotsHandler
	Records   *handlers.RecordsHandler // nil отключает локальный API записей

	CommandRate   int // 0 отключает ограничение
	CommandWindow time.Duration
}

// Router - http.Handler со всеми маршрутами
type Router struct {
	handler http.Handler
	limiter *middleware.RateLimiter
}

// New регистрирует маршруты и оборачивает их в middleware
func New(cfg Config) *Router {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewUnregistered()
	}

	r := &Router{}
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+api.PathHealth, cfg.Health.Health)

	submit := http.Handler(http.HandlerFunc(cfg.Commands.Submit))
	if cfg.CommandRate > 0 {
		var limit func(http.Handler) http.Handler
		limit, r.limiter = middleware.RateLimitMiddleware(cfg.CommandRate, cfg.CommandWindow, cfg.Logger)
		submit = limit(submit)
	}
	mux.Handle("POST "+api.PathCommands+"/{action}", submit)
	mux.HandleFunc("GET "+api.PathCommands, cfg.Commands.Recent)

	mux.HandleFunc("GET "+api.PathSnapshots, cfg.Snapshots.Latest)
	mux.HandleFunc("GET "+api.PathSnapshotStream, cfg.Snapshots.Stream)

	if cfg.Records != nil {
		mux.HandleFunc("GET "+api.PathRecords, cfg.Records.List)
		mux.HandleFunc("POST "+api.PathRecords, cfg.Records.Create)
		mux.HandleFunc("POST "+api.PathRecords+"/{id}/status", cfg.Records.UpdateStatus)
	}

	if cfg.Gatherer != nil {
		mux.Handle("GET "+api.PathMetrics, promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	// Порядок: recovery -> metrics -> logging -> mux
	var h http.Handler = mux
	h = middleware.LoggingWithSkip(cfg.Logger, []string{api.PathHealth, api.PathMetrics})(h)
	h = middleware.MetricsMiddleware(cfg.Metrics)(h)
	h = middleware.RecoveryMiddleware(cfg.Logger)(h)

	r.handler = h
	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.handler.ServeHTTP(w, req)
}

// Close останавливает фоновые задачи middleware
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Stop()
	}
}
