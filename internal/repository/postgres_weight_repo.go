package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dskhairnar/backend-acme/internal/model"
	"github.com/google/uuid"
)

const weightColumns = `id, user_id, weight, recorded_at, note, created_at, updated_at`

var weightListSpec = listSpec{
	table:      "weight_entries",
	columns:    weightColumns,
	dateColumn: "recorded_at",
	sortColumns: map[string]string{
		"recordedAt": "recorded_at",
		"weight":     "weight",
		"createdAt":  "created_at",
	},
	defaultSort: "recordedAt",
	ownerColumn: "user_id",
}

// PostgresWeightRepo はPostgreSQLを使用した体重記録リポジトリ。
type PostgresWeightRepo struct {
	pgBase
}

// NewPostgresWeightRepo はPostgresWeightRepoを生成する。
func NewPostgresWeightRepo(db *sql.DB, queryTimeout time.Duration) *PostgresWeightRepo {
	return &PostgresWeightRepo{pgBase{db: db, timeout: queryTimeout}}
}

func scanWeightEntry(row rowScanner) (*model.WeightEntry, error) {
	e := &model.WeightEntry{}
	var userID string
	var note sql.NullString
	if err := row.Scan(&e.ID, &userID, &e.Weight, &e.RecordedAt, &note, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.UserID = model.UserID(userID)
	e.Note = note.String
	return e, nil
}

// List は体重記録をフィルタ・ソート・ページング付きで返す。
func (r *PostgresWeightRepo) List(ctx context.Context, scope model.OwnerScope, q model.ListQuery) (*model.Page[*model.WeightEntry], error) {
	ctx, cancel := r.op(ctx)
	defer cancel()

	selectSQL, countSQL, args := buildList(weightListSpec, scope, q)

	total, err := r.count(ctx, countSQL, args[:len(args)-2]...)
	if err != nil {
		return nil, err
	}

	entries, err := r.query(ctx, selectSQL, args...)
	if err != nil {
		return nil, err
	}
	return &model.Page[*model.WeightEntry]{Items: entries, Total: total}, nil
}

// FindByID は指定IDの体重記録を取得する。見つからない、またはスコープ外の場合はnilを返す。
func (r *PostgresWeightRepo) FindByID(ctx context.Context, scope model.OwnerScope, id string) (*model.WeightEntry, error) {
	if !validID(id) {
		return nil, nil
	}
	ctx, cancel := r.op(ctx)
	defer cancel()

	w := &whereBuilder{}
	w.add("id = ?", id)
	w.scoped("user_id", scope)

	e, err := scanWeightEntry(r.db.QueryRowContext(ctx,
		`SELECT `+weightColumns+` FROM weight_entries`+w.sql(), w.args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find weight entry: %w", err)
	}
	return e, nil
}

// ExistsAt は同一ユーザー・同一測定日時の記録があるかを返す。
func (r *PostgresWeightRepo) ExistsAt(ctx context.Context, userID model.UserID, recordedAt time.Time, excludeID string) (bool, error) {
	ctx, cancel := r.op(ctx)
	defer cancel()

	w := &whereBuilder{}
	w.add("user_id = ?", string(userID))
	w.add("recorded_at = ?", recordedAt.UTC())
	if validID(excludeID) {
		w.add("id <> ?", excludeID)
	}

	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM weight_entries`+w.sql()+`)`, w.args...).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check weight entry existence: %w", err)
	}
	return exists, nil
}

// Create は体重記録を作成する。同一測定日時の記録がある場合はErrDuplicateを返す。
func (r *PostgresWeightRepo) Create(ctx context.Context, e *model.WeightEntry) error {
	ctx, cancel := r.op(ctx)
	defer cancel()

	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	e.RecordedAt = e.RecordedAt.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO weight_entries (id, user_id, weight, recorded_at, note, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		e.ID, string(e.UserID), e.Weight, e.RecordedAt, nullString(e.Note), e.CreatedAt, e.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert weight entry: %w", err)
	}
	return nil
}

// Update は体重記録の値を書き換える。対象がない場合はErrNotFoundを返す。
func (r *PostgresWeightRepo) Update(ctx context.Context, scope model.OwnerScope, e *model.WeightEntry) error {
	if !validID(e.ID) {
		return ErrNotFound
	}
	ctx, cancel := r.op(ctx)
	defer cancel()

	e.UpdatedAt = time.Now().UTC()
	e.RecordedAt = e.RecordedAt.UTC()

	w := &whereBuilder{}
	w.add("weight = ?", e.Weight)
	w.add("recorded_at = ?", e.RecordedAt)
	w.add("note = ?", nullString(e.Note))
	w.add("updated_at = ?", e.UpdatedAt)
	set := w.split()
	w.add("id = ?", e.ID)
	w.scoped("user_id", scope)

	err := r.exec(ctx, `UPDATE weight_entries SET `+joinSet(set)+w.sql(), w.args...)
	switch {
	case err == nil, errors.Is(err, ErrNotFound), errors.Is(err, ErrDuplicate):
		return err
	default:
		return fmt.Errorf("failed to update weight entry: %w", err)
	}
}

// Delete は体重記録を削除する。対象がない場合はErrNotFoundを返す。
func (r *PostgresWeightRepo) Delete(ctx context.Context, scope model.OwnerScope, id string) error {
	return r.scopedDelete(ctx, "weight_entries", scope, id)
}

// ListSince は指定ユーザーのfrom以降の記録を測定日時の昇順で返す。
func (r *PostgresWeightRepo) ListSince(ctx context.Context, userID model.UserID, from time.Time) ([]*model.WeightEntry, error) {
	ctx, cancel := r.op(ctx)
	defer cancel()

	return r.query(ctx,
		`SELECT `+weightColumns+` FROM weight_entries
		 WHERE user_id = $1 AND recorded_at >= $2
		 ORDER BY recorded_at ASC, id ASC`,
		string(userID), from.UTC())
}

func (r *PostgresWeightRepo) query(ctx context.Context, query string, args ...interface{}) ([]*model.WeightEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query weight entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*model.WeightEntry, 0)
	for rows.Next() {
		e, err := scanWeightEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan weight entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate weight entries: %w", err)
	}
	return entries, nil
}

// compile-time interface check
var _ WeightEntryRepository = (*PostgresWeightRepo)(nil)
