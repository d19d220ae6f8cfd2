package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dskhairnar/backend-acme/internal/auth"
	"github.com/dskhairnar/backend-acme/internal/metrics"
	"github.com/dskhairnar/backend-acme/internal/model"
	"github.com/dskhairnar/backend-acme/internal/response"
)

// Authenticator はアクセストークンからプリンシパルを解決するインターフェース。
// auth.Serviceが実装する。
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*model.Principal, *auth.Claims, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// プリンシパルとクレームをリクエストコンテキストに注入するミドルウェアを返す。
// collectorがnilの場合は認証失敗を記録しない。
func NewAuthMiddleware(authenticator Authenticator, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, apiErr := bearerToken(r)
			if apiErr != nil {
				collector.RecordAuthFailure(apiErr.Code)
				response.Error(w, apiErr)
				return
			}

			principal, claims, err := authenticator.Authenticate(r.Context(), token)
			if err != nil {
				var apiErr *model.APIError
				if errors.As(err, &apiErr) {
					collector.RecordAuthFailure(apiErr.Code)
					response.Error(w, apiErr)
					return
				}
				slog.Error("failed to authenticate request",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				response.Internal(w)
				return
			}

			noteUserID(r.Context(), principal.ID.String())
			ctx := ContextWithPrincipal(r.Context(), principal)
			ctx = ContextWithClaims(ctx, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole はプリンシパルのロールが許可セットに含まれない場合に403を返すミドルウェアを返す。
// NewAuthMiddlewareの後に配置する。
func RequireRole(roles ...model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := PrincipalFromContext(r.Context())
			if err := auth.RequireRole(p, roles...); err != nil {
				var apiErr *model.APIError
				errors.As(err, &apiErr)
				response.Error(w, apiErr)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken はAuthorizationヘッダーからトークンを取り出す。
// ヘッダーがない場合はNO_TOKEN、Bearer以外の形式はTOKEN_INVALIDとする。
func bearerToken(r *http.Request) (string, *model.APIError) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", model.NewNoTokenError()
	}

	scheme, token, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, "Bearer") {
		return "", model.NewTokenInvalidError()
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", model.NewNoTokenError()
	}
	return token, nil
}
