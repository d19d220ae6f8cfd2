package handler

import (
	"context"
	"net/http"

	"github.com/dskhairnar/backend-acme/internal/auth"
	"github.com/dskhairnar/backend-acme/internal/medication"
	"github.com/dskhairnar/backend-acme/internal/model"
	"github.com/dskhairnar/backend-acme/internal/response"
	"github.com/go-chi/chi/v5"
)

const (
	maxMedicationFieldLength = 200
	maxNotesLength           = 1000
)

// MedicationServiceInterface は服薬情報ハンドラーが必要とするサービスインターフェース。
type MedicationServiceInterface interface {
	List(ctx context.Context, scope model.OwnerScope, q model.ListQuery) (*model.Page[*model.Medication], error)
	Get(ctx context.Context, scope model.OwnerScope, id string) (*model.Medication, error)
	Create(ctx context.Context, owner model.UserID, in medication.CreateInput) (*model.Medication, error)
	Update(ctx context.Context, scope model.OwnerScope, id string, in medication.UpdateInput) (*model.Medication, error)
	Delete(ctx context.Context, scope model.OwnerScope, id string) error
}

// MedicationHandler は服薬情報のHTTPハンドラー。
type MedicationHandler struct {
	service MedicationServiceInterface
}

// NewMedicationHandler はMedicationHandlerを生成する。
func NewMedicationHandler(service MedicationServiceInterface) *MedicationHandler {
	return &MedicationHandler{service: service}
}

// medicationRequest は作成・更新共通のリクエストボディ。
// endDateにnullを指定した更新は終了日を削除する。
type medicationRequest struct {
	Name      *string        `json:"name"`
	Dosage    *string        `json:"dosage"`
	Frequency *string        `json:"frequency"`
	StartDate *string        `json:"startDate"`
	EndDate   nullableString `json:"endDate"`
	Notes     *string        `json:"notes"`
}

// List は服薬情報の一覧を返す。?active=true|false で絞り込める。
// GET /medications
func (h *MedicationHandler) List(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	scope, err := auth.ListScope(p, r.URL.Query().Get("userId"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	q, err := parseListQuery(r, medicationListOptions)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	page, err := h.service.List(r.Context(), scope, q)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.List(w, "Medications retrieved successfully.",
		mapItems(page.Items, toMedicationResponse),
		model.NewPagination(q.Page, q.Limit, page.Total))
}

// Get は服薬情報を1件返す。
// GET /medications/{id}
func (h *MedicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	med, err := h.service.Get(r.Context(), auth.ScopeFor(p), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "Medication retrieved successfully.", toMedicationResponse(med))
}

// Create は服薬情報を作成する。
// POST /medications
func (h *MedicationHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	var req medicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fe := fieldErrors{}
	in := medication.CreateInput{
		Name:      requiredText(fe, "name", req.Name, maxMedicationFieldLength),
		Dosage:    requiredText(fe, "dosage", req.Dosage, maxMedicationFieldLength),
		Frequency: requiredText(fe, "frequency", req.Frequency, maxMedicationFieldLength),
		StartDate: fe.timestamp("startDate", deref(req.StartDate)),
		EndDate:   fe.optionalTimestamp("endDate", req.EndDate.Value),
	}
	if req.Notes != nil {
		in.Notes = cleanText(*req.Notes)
		fe.maxLen("notes", in.Notes, maxNotesLength)
	}
	if err := fe.err(); err != nil {
		handleServiceError(w, r, err)
		return
	}

	med, err := h.service.Create(r.Context(), p.ID, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusCreated, "Medication created successfully.", toMedicationResponse(med))
}

// Update は服薬情報を部分更新する。
// PUT /medications/{id}
func (h *MedicationHandler) Update(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	var req medicationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fe := fieldErrors{}
	in := medication.UpdateInput{
		Name:      optionalText(fe, "name", req.Name, maxMedicationFieldLength),
		Dosage:    optionalText(fe, "dosage", req.Dosage, maxMedicationFieldLength),
		Frequency: optionalText(fe, "frequency", req.Frequency, maxMedicationFieldLength),
		StartDate: fe.optionalTimestamp("startDate", req.StartDate),
	}
	if req.EndDate.Set {
		if req.EndDate.Value == nil {
			in.ClearEndDate = true
		} else {
			in.EndDate = fe.optionalTimestamp("endDate", req.EndDate.Value)
		}
	}
	if req.Notes != nil {
		notes := cleanText(*req.Notes)
		fe.maxLen("notes", notes, maxNotesLength)
		in.Notes = &notes
	}
	if err := fe.err(); err != nil {
		handleServiceError(w, r, err)
		return
	}

	med, err := h.service.Update(r.Context(), auth.ScopeFor(p), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "Medication updated successfully.", toMedicationResponse(med))
}

// Delete は服薬情報を削除する。
// DELETE /medications/{id}
func (h *MedicationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), auth.ScopeFor(p), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "Medication deleted successfully.", nil)
}

// requiredText は必須の文字列フィールドを検証し、マークアップと前後の空白を除去した値を返す。
func requiredText(fe fieldErrors, field string, value *string, n int) string {
	v := cleanText(deref(value))
	if v == "" {
		fe.add(field, "is required")
		return ""
	}
	fe.maxLen(field, v, n)
	return v
}

// optionalText は部分更新の文字列フィールドを検証する。指定された場合は空にできない。
func optionalText(fe fieldErrors, field string, value *string, n int) *string {
	if value == nil {
		return nil
	}
	v := requiredText(fe, field, value, n)
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
