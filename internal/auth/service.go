// Package auth はパスワード認証、トークンの発行と検証、認可ポリシーを提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dskhairnar/backend-acme/internal/model"
	"github.com/dskhairnar/backend-acme/internal/repository"
)

// RegisterInput はユーザー登録の入力。形式の検証はhandler層で済んでいる前提。
type RegisterInput struct {
	Email       string
	Password    string
	Name        string
	DateOfBirth time.Time
	Role        model.Role
}

// AuthResult は登録・ログイン・リフレッシュの結果。
type AuthResult struct {
	User   *model.Principal
	Tokens *TokenPair
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users   repository.UserRepository
	hasher  PasswordHasher
	tokens  *TokenService
	revoked RevocationStore

	dummyOnce sync.Once
	dummyHash string
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	hasher PasswordHasher,
	tokens *TokenService,
	revoked RevocationStore,
) *Service {
	return &Service{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		revoked: revoked,
	}
}

// Register はユーザーを登録し、トークンを発行する。
// 自己登録で付与できるロールはuserのみ。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	if in.Role != "" && in.Role != model.RoleUser {
		return nil, model.NewForbiddenError("Privileged roles cannot be self-assigned.")
	}

	email := model.NormalizeEmail(in.Email)
	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailInUseError()
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return nil, model.NewValidationError(map[string]string{"password": "must be at most 72 bytes"})
		}
		return nil, err
	}

	user := &model.User{
		Email:        email,
		Name:         in.Name,
		DateOfBirth:  in.DateOfBirth,
		Role:         model.RoleUser,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewEmailInUseError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", slog.String("user_id", user.ID.String()))
	return s.issue(user)
}

// Login はメールアドレスとパスワードで認証する。
// メールアドレスが未登録の場合もダミーハッシュで照合し、応答時間の差を出さない。
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, model.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		s.hasher.Verify(password, s.dummy())
		return nil, model.NewInvalidCredentialsError()
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		slog.Warn("login failed", slog.String("user_id", user.ID.String()))
		return nil, model.NewInvalidCredentialsError()
	}

	return s.issue(user)
}

// Refresh はリフレッシュトークンを検証し、新しいトークンの組を発行する。
// 使用済みのリフレッシュトークンは失効させ、再利用を拒否する。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, tokenError(err)
	}

	// 失効はユーザー解決の後に行う。DB障害でリフレッシュトークンを消費しない。
	user, err := s.users.FindByID(ctx, claims.Identity())
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserGoneError()
	}

	newly, err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
	if err != nil {
		return nil, fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if !newly {
		slog.Warn("refresh token reuse detected", slog.String("user_id", claims.UserID))
		return nil, model.NewTokenRevokedError()
	}

	return s.issue(user)
}

// Logout は提示されたアクセストークンと、指定があればリフレッシュトークンを失効させる。
func (s *Service) Logout(ctx context.Context, access *Claims, refreshToken string) error {
	if _, err := s.revoked.Revoke(ctx, access.ID, access.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to revoke access token: %w", err)
	}
	if refreshToken == "" {
		return nil
	}

	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if errors.Is(err, ErrTokenExpired) {
		return nil
	}
	if err != nil {
		return model.NewTokenInvalidError()
	}
	if claims.Identity() != access.Identity() {
		return model.NewForbiddenError("Refresh token belongs to another user.")
	}
	if _, err := s.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

// Authenticate はアクセストークンを検証し、現在のユーザーを解決する。
// 失効済みのトークン、または削除済みのユーザーは拒否する。
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*model.Principal, *Claims, error) {
	claims, err := s.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, nil, tokenError(err)
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check revocation: %w", err)
	}
	if revoked {
		return nil, nil, model.NewTokenRevokedError()
	}

	user, err := s.users.FindByID(ctx, claims.Identity())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil, model.NewUserGoneError()
	}
	return user.Principal(), claims, nil
}

// Me は現在のユーザー情報を返す。
func (s *Service) Me(ctx context.Context, id model.UserID) (*model.Principal, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserGoneError()
	}
	return user.Principal(), nil
}

// ListUsers はユーザー一覧を返す。adminまたはmoderatorのみ。
func (s *Service) ListUsers(ctx context.Context, caller *model.Principal, q model.ListQuery) (*model.Page[*model.Principal], error) {
	if err := RequireRole(caller, model.RoleAdmin, model.RoleModerator); err != nil {
		return nil, err
	}

	page, err := s.users.List(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	out := &model.Page[*model.Principal]{
		Items: make([]*model.Principal, 0, len(page.Items)),
		Total: page.Total,
	}
	for _, u := range page.Items {
		out.Items = append(out.Items, u.Principal())
	}
	return out, nil
}

// UpdateRole はユーザーのロールを変更する。adminのみ。自分自身のロールは変更できない。
func (s *Service) UpdateRole(ctx context.Context, caller *model.Principal, id string, role model.Role) (*model.Principal, error) {
	if err := RequireRole(caller, model.RoleAdmin); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, model.NewValidationError(map[string]string{"role": "must be one of admin, user, moderator"})
	}
	target, err := model.ParseUserID(id)
	if err != nil {
		return nil, model.NewNotFoundError("User")
	}
	if target == caller.ID {
		return nil, model.NewForbiddenError("You cannot change your own role.")
	}

	user, err := s.users.UpdateRole(ctx, target, role)
	if err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("User")
	}

	slog.Info("user role updated",
		slog.String("user_id", user.ID.String()),
		slog.String("role", string(role)),
		slog.String("by", caller.ID.String()),
	)
	return user.Principal(), nil
}

func (s *Service) issue(user *model.User) (*AuthResult, error) {
	p := user.Principal()
	pair, err := s.tokens.IssuePair(p)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: p, Tokens: pair}, nil
}

// dummy は未登録メールアドレスの照合に使うハッシュを初回のみ生成して返す。
func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("dummy-password-for-timing")
		if err != nil {
			slog.Error("failed to build dummy hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

// tokenError はトークン検証エラーをAPIエラーに変換する。
func tokenError(err error) error {
	if errors.Is(err, ErrTokenExpired) {
		return model.NewTokenExpiredError()
	}
	return model.NewTokenInvalidError()
}
