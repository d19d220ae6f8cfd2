package handler

import (
	"log/slog"
	"net/http"

	"github.com/dskhairnar/backend-acme/internal/metrics"
	"github.com/dskhairnar/backend-acme/internal/middleware"
	"github.com/dskhairnar/backend-acme/internal/model"
	"github.com/dskhairnar/backend-acme/internal/response"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	CORSOrigins   []string
	Logger        *slog.Logger

	// メトリクス
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// ヘルスチェック
	DB Pinger

	// サービス
	AuthService       AuthServiceInterface
	UserService       UserServiceInterface
	WeightService     WeightServiceInterface
	MedicationService MedicationServiceInterface
	ShipmentService   ShipmentServiceInterface

	// ShipmentsAdminOnly がtrueの場合、配送情報のAPIは管理者のみ利用できる。
	ShipmentsAdminOnly bool
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → Logging → Metrics → SecurityHeaders → CORS → RateLimit(General)
//
// 同じルートをルート直下と/api配下の両方にマウントする。
func NewRouter(deps *RouterDeps) http.Handler {
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSOrigins))
	r.Use(deps.RateLimiter.GeneralMiddleware())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.ErrorWithStatus(w, http.StatusNotFound, &model.APIError{
			Kind:    model.KindNotFound,
			Code:    model.ErrCodeRouteNotFound,
			Message: "Route " + r.Method + " " + r.URL.Path + " not found.",
		})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.ErrorWithStatus(w, http.StatusMethodNotAllowed, &model.APIError{
			Kind:    model.KindValidation,
			Code:    model.ErrCodeMethodNotAllowed,
			Message: "Method " + r.Method + " is not allowed for " + r.URL.Path + ".",
		})
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	mountAPI(r, deps, collector)
	r.Route("/api", func(r chi.Router) {
		mountAPI(r, deps, collector)
	})

	return r
}

// mountAPI はAPIルートを登録する。
func mountAPI(r chi.Router, deps *RouterDeps, collector metrics.MetricsCollector) {
	healthHandler := NewHealthHandler(deps.DB)
	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.UserService)
	weightHandler := NewWeightHandler(deps.WeightService)
	medicationHandler := NewMedicationHandler(deps.MedicationService)
	shipmentHandler := NewShipmentHandler(deps.ShipmentService)

	requireAuth := middleware.NewAuthMiddleware(deps.Authenticator, collector)

	// --- 認証不要のルート ---
	r.Get("/health", healthHandler.Health)

	r.Route("/auth", func(r chi.Router) {
		// 登録とログインは認証専用のレート制限を追加
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/register", authHandler.Register)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)

		r.With(requireAuth).Get("/me", authHandler.Me)
		r.With(requireAuth).Post("/logout", authHandler.Logout)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)

		// ユーザー管理
		r.Route("/users", func(r chi.Router) {
			r.With(middleware.RequireRole(model.RoleAdmin, model.RoleModerator)).Get("/", userHandler.ListUsers)
			r.With(middleware.RequireRole(model.RoleAdmin)).Put("/{id}/role", userHandler.UpdateRole)
		})

		// 体重記録
		r.Route("/weight-entries", func(r chi.Router) {
			r.Get("/", weightHandler.List)
			r.Post("/", weightHandler.Create)
			r.Get("/stats/summary", weightHandler.Stats)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", weightHandler.Get)
				r.Put("/", weightHandler.Update)
				r.Delete("/", weightHandler.Delete)
			})
		})

		// 服薬情報
		r.Route("/medications", func(r chi.Router) {
			r.Get("/", medicationHandler.List)
			r.Post("/", medicationHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", medicationHandler.Get)
				r.Put("/", medicationHandler.Update)
				r.Delete("/", medicationHandler.Delete)
			})
		})

		// 配送情報
		r.Route("/shipments", func(r chi.Router) {
			if deps.ShipmentsAdminOnly {
				r.Use(middleware.RequireRole(model.RoleAdmin))
			}
			r.Get("/", shipmentHandler.List)
			r.Post("/", shipmentHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", shipmentHandler.Get)
				r.Put("/", shipmentHandler.Update)
				r.Delete("/", shipmentHandler.Delete)
			})
		})
	})
}
