package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/dskhairnar/backend-acme/internal/auth"
	"github.com/dskhairnar/backend-acme/internal/model"
	"github.com/dskhairnar/backend-acme/internal/response"
	"github.com/dskhairnar/backend-acme/internal/weight"
	"github.com/go-chi/chi/v5"
)

// 体重の許容範囲
const (
	maxWeight     = 1000
	maxNoteLength = 500
)

// WeightServiceInterface は体重記録ハンドラーが必要とするサービスインターフェース。
type WeightServiceInterface interface {
	List(ctx context.Context, scope model.OwnerScope, q model.ListQuery) (*model.Page[*model.WeightEntry], error)
	Get(ctx context.Context, scope model.OwnerScope, id string) (*model.WeightEntry, error)
	Create(ctx context.Context, owner model.UserID, in weight.CreateInput) (*model.WeightEntry, error)
	Update(ctx context.Context, scope model.OwnerScope, id string, in weight.UpdateInput) (*model.WeightEntry, error)
	Delete(ctx context.Context, scope model.OwnerScope, id string) error
	Stats(ctx context.Context, owner model.UserID, period string) (*model.WeightStats, error)
}

// WeightHandler は体重記録のHTTPハンドラー。
type WeightHandler struct {
	service WeightServiceInterface
}

// NewWeightHandler はWeightHandlerを生成する。
func NewWeightHandler(service WeightServiceInterface) *WeightHandler {
	return &WeightHandler{service: service}
}

type weightEntryRequest struct {
	Weight     *float64 `json:"weight"`
	RecordedAt *string  `json:"recordedAt"`
	Note       *string  `json:"note"`
}

// List は体重記録の一覧を返す。
// GET /weight-entries
func (h *WeightHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	scope, err := auth.ListScope(p, r.URL.Query().Get("userId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	q, err := parseListQuery(r, weightListOptions)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	page, err := h.service.List(r.Context(), scope, q)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.List(w, "Weight entries retrieved successfully.",
		mapItems(page.Items, toWeightEntryResponse),
		model.NewPagination(q.Page, q.Limit, page.Total))
}

// Get は体重記録を1件返す。
// GET /weight-entries/{id}
func (h *WeightHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	entry, err := h.service.Get(r.Context(), auth.ScopeFor(p), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "Weight entry retrieved successfully.", toWeightEntryResponse(entry))
}

// Create は体重記録を作成する。所有者は常に認証済みユーザーとする。
// POST /weight-entries
func (h *WeightHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	var req weightEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fe := fieldErrors{}
	if req.Weight == nil {
		fe.add("weight", "is required")
	} else {
		validateWeight(fe, *req.Weight)
	}
	var recordedAt string
	if req.RecordedAt != nil {
		recordedAt = *req.RecordedAt
	}
	at := fe.timestamp("recordedAt", recordedAt)
	in := weight.CreateInput{RecordedAt: at}
	if req.Note != nil {
		in.Note = cleanText(*req.Note)
		fe.maxLen("note", in.Note, maxNoteLength)
	}
	if err := fe.err(); err != nil {
		handleServiceError(w, r, err)
		return
	}
	in.Weight = *req.Weight

	entry, err := h.service.Create(r.Context(), p.ID, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusCreated, "Weight entry created successfully.", toWeightEntryResponse(entry))
}

// Update は体重記録を部分更新する。
// PUT /weight-entries/{id}
func (h *WeightHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	var req weightEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fe := fieldErrors{}
	in := weight.UpdateInput{Weight: req.Weight}
	if req.Weight != nil {
		validateWeight(fe, *req.Weight)
	}
	in.RecordedAt = fe.optionalTimestamp("recordedAt", req.RecordedAt)
	if req.Note != nil {
		note := cleanText(*req.Note)
		fe.maxLen("note", note, maxNoteLength)
		in.Note = &note
	}
	if err := fe.err(); err != nil {
		handleServiceError(w, r, err)
		return
	}

	entry, err := h.service.Update(r.Context(), auth.ScopeFor(p), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "Weight entry updated successfully.", toWeightEntryResponse(entry))
}

// Delete は体重記録を削除する。
// DELETE /weight-entries/{id}
func (h *WeightHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), auth.ScopeFor(p), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "Weight entry deleted successfully.", nil)
}

// Stats は期間内の体重推移サマリーを返す。
// GET /weight-entries/stats/summary?period=week|month|quarter|year
func (h *WeightHandler) Stats(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	owner, err := auth.ResolveTarget(p, r.URL.Query().Get("userId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	stats, err := h.service.Stats(r.Context(), owner, strings.ToLower(strings.TrimSpace(r.URL.Query().Get("period"))))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "Weight statistics retrieved successfully.", stats)
}

func validateWeight(fe fieldErrors, v float64) {
	if v <= 0 || v > maxWeight {
		fe.add("weight", "must be greater than 0 and at most 1000")
	}
}
