// Package shipment は薬の配送情報の管理を提供する。
// 配送状態は任意の定義済みの値に更新でき、状態遷移の制約は持たない。
package shipment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dskhairnar/backend-acme/internal/model"
	"github.com/dskhairnar/backend-acme/internal/repository"
)

const resourceName = "Shipment"

// CreateInput は配送情報の作成入力。Statusが空の場合はpendingとする。
type CreateInput struct {
	Items          []model.ShipmentItem
	Status         model.ShipmentStatus
	TrackingNumber string
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
}

// UpdateInput は配送情報の部分更新入力。nilのフィールドは変更しない。
// ClearShippedAt, ClearDeliveredAtがtrueの場合は該当する日時を削除する。
type UpdateInput struct {
	Items            []model.ShipmentItem
	Status           *model.ShipmentStatus
	TrackingNumber   *string
	ShippedAt        *time.Time
	ClearShippedAt   bool
	DeliveredAt      *time.Time
	ClearDeliveredAt bool
}

// Service は配送情報のサービス層。
type Service struct {
	repo repository.ShipmentRepository
}

// NewService はServiceを生成する。
func NewService(repo repository.ShipmentRepository) *Service {
	return &Service{repo: repo}
}

// List は配送情報の一覧を返す。
func (s *Service) List(ctx context.Context, scope model.OwnerScope, q model.ListQuery) (*model.Page[*model.Shipment], error) {
	page, err := s.repo.List(ctx, scope, q)
	if err != nil {
		return nil, fmt.Errorf("配送情報一覧の取得に失敗しました: %w", err)
	}
	return page, nil
}

// Get は配送情報を1件返す。
func (s *Service) Get(ctx context.Context, scope model.OwnerScope, id string) (*model.Shipment, error) {
	sh, err := s.repo.FindByID(ctx, scope, id)
	if err != nil {
		return nil, fmt.Errorf("配送情報の取得に失敗しました: %w", err)
	}
	if sh == nil {
		return nil, model.NewNotFoundError(resourceName)
	}
	return sh, nil
}

// Create は配送情報を作成する。
func (s *Service) Create(ctx context.Context, owner model.UserID, in CreateInput) (*model.Shipment, error) {
	status := in.Status
	if status == "" {
		status = model.ShipmentPending
	}
	sh := &model.Shipment{
		UserID:         owner,
		Items:          in.Items,
		Status:         status,
		TrackingNumber: in.TrackingNumber,
		ShippedAt:      in.ShippedAt,
		DeliveredAt:    in.DeliveredAt,
	}
	if err := Validate(sh); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, sh); err != nil {
		return nil, fmt.Errorf("配送情報の作成に失敗しました: %w", err)
	}
	return sh, nil
}

// Update は配送情報を部分更新する。制約はマージ後の値で検証する。
func (s *Service) Update(ctx context.Context, scope model.OwnerScope, id string, in UpdateInput) (*model.Shipment, error) {
	sh, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	if in.Items != nil {
		sh.Items = in.Items
	}
	if in.Status != nil {
		sh.Status = *in.Status
	}
	if in.TrackingNumber != nil {
		sh.TrackingNumber = *in.TrackingNumber
	}
	switch {
	case in.ClearShippedAt:
		sh.ShippedAt = nil
	case in.ShippedAt != nil:
		sh.ShippedAt = in.ShippedAt
	}
	switch {
	case in.ClearDeliveredAt:
		sh.DeliveredAt = nil
	case in.DeliveredAt != nil:
		sh.DeliveredAt = in.DeliveredAt
	}

	if err := Validate(sh); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, scope, sh); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewNotFoundError(resourceName)
		}
		return nil, fmt.Errorf("配送情報の更新に失敗しました: %w", err)
	}
	return sh, nil
}

// Delete は配送情報を削除する。
func (s *Service) Delete(ctx context.Context, scope model.OwnerScope, id string) error {
	if err := s.repo.Delete(ctx, scope, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewNotFoundError(resourceName)
		}
		return fmt.Errorf("配送情報の削除に失敗しました: %w", err)
	}
	return nil
}

// Validate は配送情報の明細・状態・日時の制約を検証する。
func Validate(sh *model.Shipment) error {
	details := map[string]string{}

	if len(sh.Items) == 0 {
		details["items"] = "must contain at least one item"
	}
	for i, item := range sh.Items {
		key := "items[" + strconv.Itoa(i) + "]"
		if strings.TrimSpace(item.Name) == "" {
			details[key+".name"] = "is required"
		}
		if item.Quantity < 1 {
			details[key+".quantity"] = "must be at least 1"
		}
		if item.Price != nil && *item.Price < 0 {
			details[key+".price"] = "must not be negative"
		}
	}
	if !sh.Status.Valid() {
		details["status"] = "must be one of pending, shipped, delivered, delayed, cancelled"
	}
	if sh.ShippedAt != nil && sh.DeliveredAt != nil && sh.DeliveredAt.Before(*sh.ShippedAt) {
		details["deliveredAt"] = "must not be before shippedAt"
	}

	if len(details) > 0 {
		return model.NewValidationError(details)
	}
	return nil
}
