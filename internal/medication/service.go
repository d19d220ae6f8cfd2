// Package medication は服薬情報の管理を提供する。
package medication

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dskhairnar/backend-acme/internal/model"
	"github.com/dskhairnar/backend-acme/internal/repository"
)

const resourceName = "Medication"

// CreateInput は服薬情報の作成入力。
type CreateInput struct {
	Name      string
	Dosage    string
	Frequency string
	StartDate time.Time
	EndDate   *time.Time
	Notes     string
}

// UpdateInput は服薬情報の部分更新入力。nilのフィールドは変更しない。
// ClearEndDateがtrueの場合は終了日を削除する。
type UpdateInput struct {
	Name         *string
	Dosage       *string
	Frequency    *string
	StartDate    *time.Time
	EndDate      *time.Time
	ClearEndDate bool
	Notes        *string
}

// Service は服薬情報のサービス層。
type Service struct {
	repo repository.MedicationRepository
}

// NewService はServiceを生成する。
func NewService(repo repository.MedicationRepository) *Service {
	return &Service{repo: repo}
}

// List は服薬情報の一覧を返す。
func (s *Service) List(ctx context.Context, scope model.OwnerScope, q model.ListQuery) (*model.Page[*model.Medication], error) {
	page, err := s.repo.List(ctx, scope, q)
	if err != nil {
		return nil, fmt.Errorf("服薬情報一覧の取得に失敗しました: %w", err)
	}
	return page, nil
}

// Get は服薬情報を1件返す。
func (s *Service) Get(ctx context.Context, scope model.OwnerScope, id string) (*model.Medication, error) {
	med, err := s.repo.FindByID(ctx, scope, id)
	if err != nil {
		return nil, fmt.Errorf("服薬情報の取得に失敗しました: %w", err)
	}
	if med == nil {
		return nil, model.NewNotFoundError(resourceName)
	}
	return med, nil
}

// Create は服薬情報を作成する。
func (s *Service) Create(ctx context.Context, owner model.UserID, in CreateInput) (*model.Medication, error) {
	med := &model.Medication{
		UserID:    owner,
		Name:      in.Name,
		Dosage:    in.Dosage,
		Frequency: in.Frequency,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Notes:     in.Notes,
	}
	if err := validateDates(med); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, med); err != nil {
		return nil, fmt.Errorf("服薬情報の作成に失敗しました: %w", err)
	}
	return med, nil
}

// Update は服薬情報を部分更新する。日付の前後関係はマージ後の値で検証する。
func (s *Service) Update(ctx context.Context, scope model.OwnerScope, id string, in UpdateInput) (*model.Medication, error) {
	med, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		med.Name = *in.Name
	}
	if in.Dosage != nil {
		med.Dosage = *in.Dosage
	}
	if in.Frequency != nil {
		med.Frequency = *in.Frequency
	}
	if in.StartDate != nil {
		med.StartDate = *in.StartDate
	}
	switch {
	case in.ClearEndDate:
		med.EndDate = nil
	case in.EndDate != nil:
		med.EndDate = in.EndDate
	}
	if in.Notes != nil {
		med.Notes = *in.Notes
	}

	if err := validateDates(med); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, scope, med); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewNotFoundError(resourceName)
		}
		return nil, fmt.Errorf("服薬情報の更新に失敗しました: %w", err)
	}
	return med, nil
}

// Delete は服薬情報を削除する。
func (s *Service) Delete(ctx context.Context, scope model.OwnerScope, id string) error {
	if err := s.repo.Delete(ctx, scope, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewNotFoundError(resourceName)
		}
		return fmt.Errorf("服薬情報の削除に失敗しました: %w", err)
	}
	return nil
}

func validateDates(med *model.Medication) error {
	if med.EndDate != nil && !med.EndDate.After(med.StartDate) {
		return model.NewValidationError(map[string]string{"endDate": "must be after startDate"})
	}
	return nil
}
