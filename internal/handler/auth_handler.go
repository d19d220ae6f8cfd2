package handler

import (
	"context"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/dskhairnar/backend-acme/internal/auth"
	"github.com/dskhairnar/backend-acme/internal/middleware"
	"github.com/dskhairnar/backend-acme/internal/model"
	"github.com/dskhairnar/backend-acme/internal/response"
)

// パスワードの長さ制限。上限はbcryptが扱えるバイト数。
const (
	minPasswordLength = 8
	maxPasswordBytes  = 72
	maxNameLength     = 100
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error)
	Login(ctx context.Context, email, password string) (*auth.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.AuthResult, error)
	Logout(ctx context.Context, access *auth.Claims, refreshToken string) error
	Me(ctx context.Context, id model.UserID) (*model.Principal, error)
}

// AuthHandler は登録・ログイン・トークン更新・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	now     func() time.Time
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service, now: time.Now}
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Name        string `json:"name"`
	DOB         string `json:"dob"`
	DateOfBirth string `json:"dateOfBirth"`
	Role        string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Register はユーザー登録を処理する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in, err := h.validateRegister(req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	res, err := h.service.Register(r.Context(), in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusCreated, "User registered successfully.", toAuthResponse(res))
}

func (h *AuthHandler) validateRegister(req registerRequest) (auth.RegisterInput, error) {
	fe := fieldErrors{}

	email := strings.TrimSpace(req.Email)
	if email == "" {
		fe.add("email", "is required")
	} else if !validEmail(email) {
		fe.add("email", "must be a valid email address")
	}

	switch {
	case req.Password == "":
		fe.add("password", "is required")
	case len([]rune(req.Password)) < minPasswordLength:
		fe.add("password", "must be at least 8 characters")
	case len(req.Password) > maxPasswordBytes:
		fe.add("password", "must be at most 72 bytes")
	}

	name := cleanText(req.Name)
	if name == "" {
		fe.add("name", "is required")
	}
	fe.maxLen("name", name, maxNameLength)

	dobField, dobValue := "dob", req.DOB
	if dobValue == "" && req.DateOfBirth != "" {
		dobField, dobValue = "dateOfBirth", req.DateOfBirth
	}
	dob := fe.timestamp(dobField, dobValue)
	if !dob.IsZero() && dob.After(h.now()) {
		fe.add(dobField, "must be in the past")
	}

	role := model.Role(strings.TrimSpace(req.Role))
	if role != "" && !role.Valid() {
		fe.add("role", "must be one of admin, user, moderator")
	}

	if err := fe.err(); err != nil {
		return auth.RegisterInput{}, err
	}
	return auth.RegisterInput{
		Email:       email,
		Password:    req.Password,
		Name:        name,
		DateOfBirth: dob,
		Role:        role,
	}, nil
}

// Login はメールアドレスとパスワードによるログインを処理する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	fe := fieldErrors{}
	if strings.TrimSpace(req.Email) == "" {
		fe.add("email", "is required")
	}
	if req.Password == "" {
		fe.add("password", "is required")
	}
	if err := fe.err(); err != nil {
		handleServiceError(w, r, err)
		return
	}

	res, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "Login successful.", toAuthResponse(res))
}

// Refresh はリフレッシュトークンから新しいトークンの組を発行する。
// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		handleServiceError(w, r, model.NewValidationError(map[string]string{"refreshToken": "is required"}))
		return
	}

	res, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "Token refreshed successfully.", toAuthResponse(res))
}

// Me は現在のユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	user, err := h.service.Me(r.Context(), p.ID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "User retrieved successfully.", map[string]any{"user": toUserResponse(user)})
}

// Logout は提示されたアクセストークンと、ボディで指定されたリフレッシュトークンを失効させる。
// ボディは省略できる。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		response.Error(w, model.NewNoTokenError())
		return
	}

	var req refreshRequest
	if r.ContentLength != 0 && r.Body != nil && r.Body != http.NoBody {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	if err := h.service.Logout(r.Context(), claims, strings.TrimSpace(req.RefreshToken)); err != nil {
		handleServiceError(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "Logged out successfully.", nil)
}

// validEmail はメールアドレスの形式を検証する。表示名付きの形式は受け付けない。
func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s[strings.LastIndex(s, "@")+1:], ".")
}
