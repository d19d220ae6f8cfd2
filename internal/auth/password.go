package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// 作業係数の許容範囲
const (
	MinCost     = 10
	MaxCost     = 15
	DefaultCost = 12
)

// ErrPasswordTooLong は平文がbcryptの上限（72バイト）を超えていることを表す。
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// PasswordHasher はパスワードのハッシュ化と照合のインターフェース。
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// BcryptHasher はbcryptによるPasswordHasher実装。
// ハッシュにはソルトと作業係数が埋め込まれるため、照合に追加のパラメータは不要。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher はBcryptHasherを生成する。costは10〜15でなければならない。
func NewBcryptHasher(cost int) (*BcryptHasher, error) {
	if cost < MinCost || cost > MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d, got %d", MinCost, MaxCost, cost)
	}
	return &BcryptHasher{cost: cost}, nil
}

// Hash は平文パスワードをハッシュ化する。
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify は平文とハッシュが一致するかを返す。比較はbcrypt内部の定数時間比較に任せる。
// 不一致や不正な形式のハッシュはfalseを返し、エラーにはしない。
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// compile-time interface check
var _ PasswordHasher = (*BcryptHasher)(nil)
