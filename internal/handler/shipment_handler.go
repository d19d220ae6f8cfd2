package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/dskhairnar/backend-acme/internal/auth"
	"github.com/dskhairnar/backend-acme/internal/model"
	"github.com/dskhairnar/backend-acme/internal/response"
	"github.com/dskhairnar/backend-acme/internal/shipment"
	"github.com/go-chi/chi/v5"
)

const maxTrackingNumberLength = 100

// ShipmentServiceInterface は配送情報ハンドラーが必要とするサービスインターフェース。
type ShipmentServiceInterface interface {
	List(ctx context.Context, scope model.OwnerScope, q model.ListQuery) (*model.Page[*model.Shipment], error)
	Get(ctx context.Context, scope model.OwnerScope, id string) (*model.Shipment, error)
	Create(ctx context.Context, owner model.UserID, in shipment.CreateInput) (*model.Shipment, error)
	Update(ctx context.Context, scope model.OwnerScope, id string, in shipment.UpdateInput) (*model.Shipment, error)
	Delete(ctx context.Context, scope model.OwnerScope, id string) error
}

// ShipmentHandler は配送情報のHTTPハンドラー。
type ShipmentHandler struct {
	service ShipmentServiceInterface
}

// NewShipmentHandler はShipmentHandlerを生成する。
func NewShipmentHandler(service ShipmentServiceInterface) *ShipmentHandler {
	return &ShipmentHandler{service: service}
}

type shipmentRequest struct {
	Items          []model.ShipmentItem `json:"items"`
	Status         *string              `json:"status"`
	TrackingNumber *string              `json:"trackingNumber"`
	ShippedAt      nullableString       `json:"shippedAt"`
	DeliveredAt    nullableString       `json:"deliveredAt"`
}

// fields は明細以外の共通フィールドを検証し、明細名を正規化する。明細と状態の制約はサービス層で検証する。
func (req shipmentRequest) fields(fe fieldErrors) (status *model.ShipmentStatus, tracking *string) {
	if req.Status != nil {
		s := model.ShipmentStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
		status = &s
	}
	if req.TrackingNumber != nil {
		t := cleanText(*req.TrackingNumber)
		fe.maxLen("trackingNumber", t, maxTrackingNumberLength)
		tracking = &t
	}
	for i := range req.Items {
		req.Items[i].Name = cleanText(req.Items[i].Name)
	}
	return status, tracking
}

// List は配送情報の一覧を返す。?status= で絞り込める。
// GET /shipments
func (h *ShipmentHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	scope, err := auth.ListScope(p, r.URL.Query().Get("userId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	q, err := parseListQuery(r, shipmentListOptions)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	page, err := h.service.List(r.Context(), scope, q)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.List(w, "Shipments retrieved successfully.",
		mapItems(page.Items, toShipmentResponse),
		model.NewPagination(q.Page, q.Limit, page.Total))
}

// Get は配送情報を1件返す。
// GET /shipments/{id}
func (h *ShipmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	sh, err := h.service.Get(r.Context(), auth.ScopeFor(p), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "Shipment retrieved successfully.", toShipmentResponse(sh))
}

// Create は配送情報を作成する。状態の指定がない場合はpendingとする。
// POST /shipments
func (h *ShipmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	var req shipmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fe := fieldErrors{}
	status, tracking := req.fields(fe)
	in := shipment.CreateInput{
		Items:       req.Items,
		ShippedAt:   fe.optionalTimestamp("shippedAt", req.ShippedAt.Value),
		DeliveredAt: fe.optionalTimestamp("deliveredAt", req.DeliveredAt.Value),
	}
	if status != nil {
		in.Status = *status
	}
	if tracking != nil {
		in.TrackingNumber = *tracking
	}
	if err := fe.err(); err != nil {
		handleServiceError(w, r, err)
		return
	}

	sh, err := h.service.Create(r.Context(), p.ID, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusCreated, "Shipment created successfully.", toShipmentResponse(sh))
}

// Update は配送情報を部分更新する。shippedAt, deliveredAtにnullを指定すると削除する。
// PUT /shipments/{id}
func (h *ShipmentHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	var req shipmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fe := fieldErrors{}
	status, tracking := req.fields(fe)
	in := shipment.UpdateInput{
		Items:          req.Items,
		Status:         status,
		TrackingNumber: tracking,
	}
	if req.ShippedAt.Set {
		if req.ShippedAt.Value == nil {
			in.ClearShippedAt = true
		} else {
			in.ShippedAt = fe.optionalTimestamp("shippedAt", req.ShippedAt.Value)
		}
	}
	if req.DeliveredAt.Set {
		if req.DeliveredAt.Value == nil {
			in.ClearDeliveredAt = true
		} else {
			in.DeliveredAt = fe.optionalTimestamp("deliveredAt", req.DeliveredAt.Value)
		}
	}
	if err := fe.err(); err != nil {
		handleServiceError(w, r, err)
		return
	}

	sh, err := h.service.Update(r.Context(), auth.ScopeFor(p), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "Shipment updated successfully.", toShipmentResponse(sh))
}

// Delete は配送情報を削除する。
// DELETE /shipments/{id}
func (h *ShipmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), auth.ScopeFor(p), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "Shipment deleted successfully.", nil)
}
