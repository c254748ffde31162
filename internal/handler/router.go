// Package handler はHTTPルーティングとハンドラーを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/marketfeed/internal/metrics"
	"github.com/hitoshi/marketfeed/internal/middleware"
	"github.com/hitoshi/marketfeed/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Store   NewsStore
	Status  StatusProvider
	Sources []model.Source

	ResultLimit    int // ページ描画の上限
	APIResultLimit int // /api/news の上限

	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	StatusObserver    middleware.StatusObserver
	Gatherer          prometheus.Gatherer // nilの場合は/metricsを公開しない
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → (APIのみ) RateLimit
//
// /api/news にはさらに60秒のCache-Controlを付与する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusObserver))

	newsHandler := NewNewsHandler(deps.Store, deps.Status, deps.Sources, deps.APIResultLimit)
	pageHandler := NewPageHandler(deps.Store, deps.Status, deps.ResultLimit)

	// トップページ（レート制限の対象外）
	r.Get("/", pageHandler.GetPage)

	// API
	r.Route("/api", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.With(middleware.NewCacheControlMiddleware(60)).Get("/news", newsHandler.GetNews)
		r.Get("/health", newsHandler.GetHealth)
		r.Get("/status", newsHandler.GetStatus)
	})

	// Prometheusスクレイプ
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	return r
}
