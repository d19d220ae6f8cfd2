// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UserID はユーザーを識別する正規化済みのID。
// 認証境界でParseUserIDにより1回だけ生成し、以降の所有者比較はすべてこの型で行う。
type UserID string

// ParseUserID は文字列をUUIDとして検証し、正規形（小文字ハイフン区切り）のUserIDを返す。
func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid user id %q: %w", s, err)
	}
	return UserID(id.String()), nil
}

// NewUserID は新しいUserIDを生成する。
func NewUserID() UserID {
	return UserID(uuid.New().String())
}

// String はIDの文字列表現を返す。
func (id UserID) String() string {
	return string(id)
}

// Role はユーザーのロールを表す。
type Role string

const (
	// RoleAdmin は所有者チェックをバイパスできる管理者ロール。
	RoleAdmin Role = "admin"
	// RoleUser は一般ユーザー（患者）ロール。デフォルト。
	RoleUser Role = "user"
	// RoleModerator はユーザー一覧の閲覧などが可能なロール。
	RoleModerator Role = "moderator"
)

// Valid はロールが定義済みの値かどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleModerator:
		return true
	}
	return false
}

// User は登録済みのユーザーアカウントを表す。
// PasswordHashはrepositoryとauth以外に渡してはならない。
type User struct {
	ID           UserID
	Email        string
	Name         string
	DateOfBirth  time.Time
	Role         Role
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal はリクエストコンテキストに格納する認証済みユーザーの最小ビュー。
// パスワードハッシュは含めない。
type Principal struct {
	ID          UserID
	Email       string
	Name        string
	DateOfBirth time.Time
	Role        Role
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Principal はUserからPrincipalを生成する。
func (u *User) Principal() *Principal {
	return &Principal{
		ID:          u.ID,
		Email:       u.Email,
		Name:        u.Name,
		DateOfBirth: u.DateOfBirth,
		Role:        u.Role,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// IsAdmin は管理者ロールかどうかを返す。
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// NormalizeEmail はメールアドレスの前後空白を除去し小文字化する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
