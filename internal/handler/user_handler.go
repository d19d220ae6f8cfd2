package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/dskhairnar/backend-acme/internal/model"
	"github.com/dskhairnar/backend-acme/internal/response"
	"github.com/go-chi/chi/v5"
)

// UserServiceInterface はユーザー管理ハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	ListUsers(ctx context.Context, caller *model.Principal, q model.ListQuery) (*model.Page[*model.Principal], error)
	UpdateRole(ctx context.Context, caller *model.Principal, id string, role model.Role) (*model.Principal, error)
}

// UserHandler は管理者向けユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

// ListUsers はユーザー一覧を返す。
// GET /users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	q, err := parseListQuery(r, userListOptions)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	page, err := h.service.ListUsers(r.Context(), p, q)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.List(w, "Users retrieved successfully.",
		mapItems(page.Items, toUserResponse),
		model.NewPagination(q.Page, q.Limit, page.Total))
}

// UpdateRole はユーザーのロールを変更する。
// PUT /users/{id}/role
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}
	var req updateRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	role := model.Role(strings.TrimSpace(req.Role))
	if role == "" {
		handleServiceError(w, r, model.NewValidationError(map[string]string{"role": "is required"}))
		return
	}

	user, err := h.service.UpdateRole(r.Context(), p, chi.URLParam(r, "id"), role)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "User role updated successfully.", map[string]any{"user": toUserResponse(user)})
}
