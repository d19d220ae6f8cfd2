// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/dskhairnar/backend-acme/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id model.UserID) (*model.User, error)

	// FindByEmail は正規化済みメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, user *model.User) error

	// List はユーザー一覧をページング付きで返す。roleフィルタに対応する。
	List(ctx context.Context, q model.ListQuery) (*model.Page[*model.User], error)

	// UpdateRole はユーザーのロールを更新する。見つからない場合はnilを返す。
	UpdateRole(ctx context.Context, id model.UserID, role model.Role) (*model.User, error)
}

// WeightEntryRepository は体重記録の永続化インターフェース。
// scopeがAllでない場合、すべての操作はscope.UserIDの記録に限定される。
type WeightEntryRepository interface {
	// List は体重記録をフィルタ・ソート・ページング付きで返す。
	List(ctx context.Context, scope model.OwnerScope, q model.ListQuery) (*model.Page[*model.WeightEntry], error)

	// FindByID は指定IDの体重記録を取得する。見つからない、またはスコープ外の場合はnilを返す。
	FindByID(ctx context.Context, scope model.OwnerScope, id string) (*model.WeightEntry, error)

	// ExistsAt は同一ユーザー・同一測定日時の記録があるかを返す。excludeIDの記録は除外する。
	ExistsAt(ctx context.Context, userID model.UserID, recordedAt time.Time, excludeID string) (bool, error)

	// Create は体重記録を作成する。同一測定日時の記録がある場合はErrDuplicateを返す。
	Create(ctx context.Context, entry *model.WeightEntry) error

	// Update は体重記録を更新する。対象がない場合はErrNotFoundを返す。
	Update(ctx context.Context, scope model.OwnerScope, entry *model.WeightEntry) error

	// Delete は体重記録を削除する。対象がない場合はErrNotFoundを返す。
	Delete(ctx context.Context, scope model.OwnerScope, id string) error

	// ListSince は指定ユーザーのfrom以降の記録を測定日時の昇順で返す。
	ListSince(ctx context.Context, userID model.UserID, from time.Time) ([]*model.WeightEntry, error)
}

// MedicationRepository は服薬情報の永続化インターフェース。
type MedicationRepository interface {
	// List は服薬情報をフィルタ・ソート・ページング付きで返す。activeフィルタに対応する。
	List(ctx context.Context, scope model.OwnerScope, q model.ListQuery) (*model.Page[*model.Medication], error)

	// FindByID は指定IDの服薬情報を取得する。見つからない、またはスコープ外の場合はnilを返す。
	FindByID(ctx context.Context, scope model.OwnerScope, id string) (*model.Medication, error)

	// Create は服薬情報を作成する。
	Create(ctx context.Context, med *model.Medication) error

	// Update は服薬情報を更新する。対象がない場合はErrNotFoundを返す。
	Update(ctx context.Context, scope model.OwnerScope, med *model.Medication) error

	// Delete は服薬情報を削除する。対象がない場合はErrNotFoundを返す。
	Delete(ctx context.Context, scope model.OwnerScope, id string) error
}

// ShipmentRepository は配送情報の永続化インターフェース。
type ShipmentRepository interface {
	// List は配送情報をフィルタ・ソート・ページング付きで返す。statusフィルタに対応する。
	List(ctx context.Context, scope model.OwnerScope, q model.ListQuery) (*model.Page[*model.Shipment], error)

	// FindByID は指定IDの配送情報を取得する。見つからない、またはスコープ外の場合はnilを返す。
	FindByID(ctx context.Context, scope model.OwnerScope, id string) (*model.Shipment, error)

	// Create は配送情報を作成する。
	Create(ctx context.Context, shipment *model.Shipment) error

	// Update は配送情報を更新する。対象がない場合はErrNotFoundを返す。
	Update(ctx context.Context, scope model.OwnerScope, shipment *model.Shipment) error

	// Delete は配送情報を削除する。対象がない場合はErrNotFoundを返す。
	Delete(ctx context.Context, scope model.OwnerScope, id string) error
}
