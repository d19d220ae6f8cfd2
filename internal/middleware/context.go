// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"

	"github.com/dskhairnar/backend-acme/internal/auth"
	"github.com/dskhairnar/backend-acme/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	principalContextKey = contextKey("principal")
	claimsContextKey    = contextKey("claims")
)

// ContextWithPrincipal は認証済みプリンシパルをコンテキストに格納する。
func ContextWithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// ContextWithClaims は検証済みアクセストークンのクレームをコンテキストに格納する。
func ContextWithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, c)
}

// PrincipalFromContext はコンテキストから認証済みプリンシパルを取得する。
// 認証ミドルウェアを通過していない場合はfalseを返す。
func PrincipalFromContext(ctx context.Context) (*model.Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(*model.Principal)
	return p, ok && p != nil
}

// ClaimsFromContext はコンテキストからアクセストークンのクレームを取得する。
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsContextKey).(*auth.Claims)
	return c, ok && c != nil
}

// UserIDFromContext はコンテキストから認証済みユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (model.UserID, error) {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("principal not found in context")
	}
	return p.ID, nil
}
