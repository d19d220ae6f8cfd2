package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dskhairnar/backend-acme/internal/model"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType はトークンの種別を表す。
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	// ErrTokenExpired は署名は正しいが有効期限を過ぎたトークンを表す。リフレッシュで回復できる。
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid は署名・構造・種別が不正なトークンを表す。再ログインが必要。
	ErrTokenInvalid = errors.New("token invalid")
)

// minSecretLength は推奨される署名鍵の最小バイト数。
const minSecretLength = 32

// Claims はトークンに含めるセッションクレーム。
// jti・iat・expはRegisteredClaimsで表す。
type Claims struct {
	UserID string     `json:"id"`
	Email  string     `json:"email"`
	Role   model.Role `json:"role"`
	Type   TokenType  `json:"typ"`
	jwt.RegisteredClaims
}

// Identity はクレームの正規化済みUserIDを返す。
func (c *Claims) Identity() model.UserID {
	return model.UserID(c.UserID)
}

// TokenConfig はトークンサービスの設定。
type TokenConfig struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
}

// TokenPair はアクセストークンとリフレッシュトークンの組。ExpiresInは秒数。
type TokenPair struct {
	AccessToken      string `json:"accessToken"`
	RefreshToken     string `json:"refreshToken"`
	TokenType        string `json:"tokenType"`
	ExpiresIn        int64  `json:"expiresIn"`
	RefreshExpiresIn int64  `json:"refreshExpiresIn"`
}

// TokenService はHS256で署名したアクセス・リフレッシュトークンを発行・検証する。
// 検証は純粋な計算であり、外部I/Oを伴わない。
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	now        func() time.Time
}

// NewTokenService はTokenServiceを生成する。署名鍵が空、または有効期間が0以下の場合はエラーを返す。
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("token lifetimes must be positive (access=%v, refresh=%v)", cfg.AccessTTL, cfg.RefreshTTL)
	}
	return &TokenService{
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		issuer:     cfg.Issuer,
		now:        time.Now,
	}, nil
}

// WeakSecret は署名鍵が推奨長より短いかを返す。
func (s *TokenService) WeakSecret() bool {
	return len(s.secret) < minSecretLength
}

// IssueAccessToken はアクセストークンを発行する。
func (s *TokenService) IssueAccessToken(p *model.Principal) (string, error) {
	return s.issue(p, TokenTypeAccess, s.accessTTL)
}

// IssueRefreshToken はリフレッシュトークンを発行する。
func (s *TokenService) IssueRefreshToken(p *model.Principal) (string, error) {
	return s.issue(p, TokenTypeRefresh, s.refreshTTL)
}

// IssuePair はアクセストークンとリフレッシュトークンを同時に発行する。
func (s *TokenService) IssuePair(p *model.Principal) (*TokenPair, error) {
	access, err := s.IssueAccessToken(p)
	if err != nil {
		return nil, err
	}
	refresh, err := s.IssueRefreshToken(p)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		ExpiresIn:        int64(s.accessTTL / time.Second),
		RefreshExpiresIn: int64(s.refreshTTL / time.Second),
	}, nil
}

// VerifyAccessToken はアクセストークンを検証する。
// 期限切れはErrTokenExpired、それ以外の不正（リフレッシュトークンの流用を含む）はErrTokenInvalidを返す。
func (s *TokenService) VerifyAccessToken(token string) (*Claims, error) {
	return s.verify(token, TokenTypeAccess)
}

// VerifyRefreshToken はリフレッシュトークンを検証する。
func (s *TokenService) VerifyRefreshToken(token string) (*Claims, error) {
	return s.verify(token, TokenTypeRefresh)
}

func (s *TokenService) issue(p *model.Principal, typ TokenType, ttl time.Duration) (string, error) {
	if p == nil || p.ID == "" {
		return "", errors.New("cannot issue token without identity")
	}
	now := s.now()
	claims := Claims{
		UserID: string(p.ID),
		Email:  p.Email,
		Role:   p.Role,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", typ, err)
	}
	return signed, nil
}

func (s *TokenService) verify(token string, want TokenType) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Type != want {
		return nil, fmt.Errorf("%w: unexpected token type %q", ErrTokenInvalid, claims.Type)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("%w: missing token id", ErrTokenInvalid)
	}
	id, err := model.ParseUserID(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	claims.UserID = string(id)

	return claims, nil
}
