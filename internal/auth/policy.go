package auth

import (
	"github.com/dskhairnar/backend-acme/internal/model"
)

// RequireRole はプリンシパルのロールが許可セットに含まれるかを検査する。
func RequireRole(p *model.Principal, roles ...model.Role) error {
	if p == nil {
		return model.NewNoTokenError()
	}
	for _, r := range roles {
		if p.Role == r {
			return nil
		}
	}
	return model.NewForbiddenError("")
}

// CheckOwnership はリソースの所有者が本人であるかを検査する。管理者は常に許可される。
func CheckOwnership(p *model.Principal, ownerID model.UserID) error {
	if p == nil {
		return model.NewNoTokenError()
	}
	if p.IsAdmin() || p.ID == ownerID {
		return nil
	}
	return model.NewForbiddenError("")
}

// ScopeFor はプリンシパルに対応するリポジトリのスコープを返す。
// 管理者は全ユーザーのリソースを参照できる。
func ScopeFor(p *model.Principal) model.OwnerScope {
	return model.OwnerScope{UserID: p.ID, All: p.IsAdmin()}
}

// ResolveTarget は一覧取得などの対象ユーザーを決定する。
// requestedが空の場合は本人。他ユーザーの指定は管理者のみ許可する。
func ResolveTarget(p *model.Principal, requested string) (model.UserID, error) {
	if requested == "" {
		return p.ID, nil
	}
	id, err := model.ParseUserID(requested)
	if err != nil {
		return "", model.NewValidationError(map[string]string{"userId": "must be a valid UUID"})
	}
	if err := CheckOwnership(p, id); err != nil {
		return "", err
	}
	return id, nil
}

// ListScope はrequested（?userId=）を考慮した一覧取得のスコープを返す。
// 管理者が対象を指定しない場合は全ユーザーを対象とする。
func ListScope(p *model.Principal, requested string) (model.OwnerScope, error) {
	if requested == "" {
		return ScopeFor(p), nil
	}
	id, err := ResolveTarget(p, requested)
	if err != nil {
		return model.OwnerScope{}, err
	}
	return model.ScopeOf(id), nil
}
