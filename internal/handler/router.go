package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/shelflife/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	HTTPMetrics       middleware.HTTPRecorder // nil可

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler // nilの場合 /metrics は公開しない

	// 商品
	ItemService ItemServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → Recovery → Logging → SecurityHeaders → CORS → (書き込み系のみ) RateLimit
//
// /health と /metrics はCORS・レート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.HTTPMetrics))

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	itemHandler := NewItemHandler(deps.ItemService, logger)

	// --- API ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSecurityHeadersMiddleware())
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

		r.Route("/api/items", func(r chi.Router) {
			r.Get("/", itemHandler.ListItems)
			r.Get("/stream", itemHandler.StreamItems)

			// 書き込み系はクライアントごとにレート制限する
			r.Group(func(r chi.Router) {
				if deps.RateLimiter != nil {
					r.Use(deps.RateLimiter.WriteMiddleware())
				}
				r.Post("/", itemHandler.AddItem)
				r.Delete("/{id}", itemHandler.DeleteItem)
			})
		})

		r.Route("/api/summary", func(r chi.Router) {
			r.Get("/", itemHandler.GetSummary)
			r.Get("/stream", itemHandler.StreamSummary)
		})
	})

	return r
}
