package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dskhairnar/backend-acme/internal/model"
	"github.com/dskhairnar/backend-acme/internal/response"
)

// healthCheckTimeout はヘルスチェックでのDB疎通確認のタイムアウト。
const healthCheckTimeout = 3 * time.Second

// Pinger はデータベースの疎通確認インターフェース。*sql.DBが満たす。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler はHealthHandlerを生成する。dbがnilの場合はDB確認を省略する。
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health はサービスとデータベースの状態を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		response.OK(w, http.StatusOK, "Service is healthy.", healthResponse{Status: "ok", Database: "skipped"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		slog.Error("health check failed", slog.String("error", err.Error()))
		response.ErrorWithStatus(w, http.StatusServiceUnavailable, &model.APIError{
			Kind:    model.KindInternal,
			Code:    "SERVICE_UNAVAILABLE",
			Message: "Database is unreachable.",
		})
		return
	}
	response.OK(w, http.StatusOK, "Service is healthy.", healthResponse{Status: "ok", Database: "ok"})
}
