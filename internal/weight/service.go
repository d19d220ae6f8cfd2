// Package weight は体重記録の管理と推移サマリーを提供する。
package weight

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dskhairnar/backend-acme/internal/model"
	"github.com/dskhairnar/backend-acme/internal/repository"
)

const resourceName = "Weight entry"

// 集計期間
const (
	PeriodWeek    = "week"
	PeriodMonth   = "month"
	PeriodQuarter = "quarter"
	PeriodYear    = "year"
)

var periodWindows = map[string]time.Duration{
	PeriodWeek:    7 * 24 * time.Hour,
	PeriodMonth:   30 * 24 * time.Hour,
	PeriodQuarter: 90 * 24 * time.Hour,
	PeriodYear:    365 * 24 * time.Hour,
}

// ValidPeriod は集計期間が定義済みかどうかを返す。
func ValidPeriod(period string) bool {
	_, ok := periodWindows[period]
	return ok
}

// CreateInput は体重記録の作成入力。
type CreateInput struct {
	Weight     float64
	RecordedAt time.Time
	Note       string
}

// UpdateInput は体重記録の部分更新入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Weight     *float64
	RecordedAt *time.Time
	Note       *string
}

// Service は体重記録のサービス層。
type Service struct {
	repo repository.WeightEntryRepository
	now  func() time.Time
}

// NewService はServiceを生成する。
func NewService(repo repository.WeightEntryRepository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// List は体重記録の一覧を返す。
func (s *Service) List(ctx context.Context, scope model.OwnerScope, q model.ListQuery) (*model.Page[*model.WeightEntry], error) {
	page, err := s.repo.List(ctx, scope, q)
	if err != nil {
		return nil, fmt.Errorf("体重記録一覧の取得に失敗しました: %w", err)
	}
	return page, nil
}

// Get は体重記録を1件返す。スコープ外の記録は存在しないものとして扱う。
func (s *Service) Get(ctx context.Context, scope model.OwnerScope, id string) (*model.WeightEntry, error) {
	entry, err := s.repo.FindByID(ctx, scope, id)
	if err != nil {
		return nil, fmt.Errorf("体重記録の取得に失敗しました: %w", err)
	}
	if entry == nil {
		return nil, model.NewNotFoundError(resourceName)
	}
	return entry, nil
}

// Create は体重記録を作成する。同一測定日時の記録がある場合はConflictを返す。
func (s *Service) Create(ctx context.Context, owner model.UserID, in CreateInput) (*model.WeightEntry, error) {
	exists, err := s.repo.ExistsAt(ctx, owner, in.RecordedAt, "")
	if err != nil {
		return nil, fmt.Errorf("重複チェックに失敗しました: %w", err)
	}
	if exists {
		return nil, duplicateError()
	}

	entry := &model.WeightEntry{
		UserID:     owner,
		Weight:     in.Weight,
		RecordedAt: in.RecordedAt,
		Note:       in.Note,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, duplicateError()
		}
		return nil, fmt.Errorf("体重記録の作成に失敗しました: %w", err)
	}
	return entry, nil
}

// Update は体重記録を部分更新する。
func (s *Service) Update(ctx context.Context, scope model.OwnerScope, id string, in UpdateInput) (*model.WeightEntry, error) {
	entry, err := s.Get(ctx, scope, id)
	if err != nil {
		return nil, err
	}

	if in.RecordedAt != nil && !in.RecordedAt.Equal(entry.RecordedAt) {
		exists, err := s.repo.ExistsAt(ctx, entry.UserID, *in.RecordedAt, entry.ID)
		if err != nil {
			return nil, fmt.Errorf("重複チェックに失敗しました: %w", err)
		}
		if exists {
			return nil, duplicateError()
		}
		entry.RecordedAt = *in.RecordedAt
	}
	if in.Weight != nil {
		entry.Weight = *in.Weight
	}
	if in.Note != nil {
		entry.Note = *in.Note
	}

	if err := s.repo.Update(ctx, scope, entry); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, duplicateError()
		case errors.Is(err, repository.ErrNotFound):
			return nil, model.NewNotFoundError(resourceName)
		}
		return nil, fmt.Errorf("体重記録の更新に失敗しました: %w", err)
	}
	return entry, nil
}

// Delete は体重記録を削除する。
func (s *Service) Delete(ctx context.Context, scope model.OwnerScope, id string) error {
	if err := s.repo.Delete(ctx, scope, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewNotFoundError(resourceName)
		}
		return fmt.Errorf("体重記録の削除に失敗しました: %w", err)
	}
	return nil
}

// Stats は指定期間の体重推移サマリーを返す。記録がない場合は各値を0とする。
func (s *Service) Stats(ctx context.Context, owner model.UserID, period string) (*model.WeightStats, error) {
	if period == "" {
		period = PeriodMonth
	}
	window, ok := periodWindows[period]
	if !ok {
		return nil, model.NewValidationError(map[string]string{"period": "must be one of week, month, quarter, year"})
	}

	from := s.now().UTC().Add(-window)
	entries, err := s.repo.ListSince(ctx, owner, from)
	if err != nil {
		return nil, fmt.Errorf("体重記録の取得に失敗しました: %w", err)
	}

	stats := Summarize(entries)
	stats.Period = period
	stats.From = from
	return stats, nil
}

// Summarize は測定日時の昇順に並んだ記録からサマリーを算出する。
func Summarize(entries []*model.WeightEntry) *model.WeightStats {
	stats := &model.WeightStats{}
	if len(entries) == 0 {
		return stats
	}

	first, last := entries[0].Weight, entries[len(entries)-1].Weight
	lo, hi, sum := first, first, 0.0
	for _, e := range entries {
		sum += e.Weight
		lo = math.Min(lo, e.Weight)
		hi = math.Max(hi, e.Weight)
	}

	stats.Count = len(entries)
	stats.Average = round2(sum / float64(len(entries)))
	stats.Min = lo
	stats.Max = hi
	stats.First = first
	stats.Last = last
	stats.Change = round2(last - first)
	if first != 0 {
		stats.PercentChange = round2((last - first) / first * 100)
	}
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func duplicateError() *model.APIError {
	return model.NewDuplicateEntryError("A weight entry already exists for this date.")
}
