package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dskhairnar/backend-acme/internal/model"
	"github.com/google/uuid"
)

const medicationColumns = `id, user_id, name, dosage, frequency, start_date, end_date, notes, created_at, updated_at`

var medicationListSpec = listSpec{
	table:      "medications",
	columns:    medicationColumns,
	dateColumn: "start_date",
	sortColumns: map[string]string{
		"startDate": "start_date",
		"endDate":   "end_date",
		"name":      "name",
		"createdAt": "created_at",
	},
	defaultSort:  "startDate",
	nullableSort: map[string]bool{"endDate": true},
	ownerColumn:  "user_id",
	filters: map[string]filterFunc{
		// 服用中: 開始済みで終了日がないか未来のもの
		model.FilterActive: func(w *whereBuilder, v string) bool {
			active, err := strconv.ParseBool(v)
			if err != nil {
				return false
			}
			if active {
				w.add("start_date <= now() AND (end_date IS NULL OR end_date > now())")
			} else {
				w.add("(start_date > now() OR (end_date IS NOT NULL AND end_date <= now()))")
			}
			return true
		},
	},
}

// PostgresMedicationRepo はPostgreSQLを使用した服薬情報リポジトリ。
type PostgresMedicationRepo struct {
	pgBase
}

// NewPostgresMedicationRepo はPostgresMedicationRepoを生成する。
func NewPostgresMedicationRepo(db *sql.DB, queryTimeout time.Duration) *PostgresMedicationRepo {
	return &PostgresMedicationRepo{pgBase{db: db, timeout: queryTimeout}}
}

func scanMedication(row rowScanner) (*model.Medication, error) {
	m := &model.Medication{}
	var userID string
	var endDate sql.NullTime
	var notes sql.NullString
	if err := row.Scan(&m.ID, &userID, &m.Name, &m.Dosage, &m.Frequency, &m.StartDate, &endDate, &notes, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.UserID = model.UserID(userID)
	m.EndDate = timePtr(endDate)
	m.Notes = notes.String
	return m, nil
}

// List は服薬情報をフィルタ・ソート・ページング付きで返す。
func (r *PostgresMedicationRepo) List(ctx context.Context, scope model.OwnerScope, q model.ListQuery) (*model.Page[*model.Medication], error) {
	ctx, cancel := r.op(ctx)
	defer cancel()

	selectSQL, countSQL, args := buildList(medicationListSpec, scope, q)

	total, err := r.count(ctx, countSQL, args[:len(args)-2]...)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	defer rows.Close()

	meds := make([]*model.Medication, 0)
	for rows.Next() {
		m, err := scanMedication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan medication: %w", err)
		}
		meds = append(meds, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate medications: %w", err)
	}
	return &model.Page[*model.Medication]{Items: meds, Total: total}, nil
}

// FindByID は指定IDの服薬情報を取得する。見つからない、またはスコープ外の場合はnilを返す。
func (r *PostgresMedicationRepo) FindByID(ctx context.Context, scope model.OwnerScope, id string) (*model.Medication, error) {
	if !validID(id) {
		return nil, nil
	}
	ctx, cancel := r.op(ctx)
	defer cancel()

	w := &whereBuilder{}
	w.add("id = ?", id)
	w.scoped("user_id", scope)

	m, err := scanMedication(r.db.QueryRowContext(ctx,
		`SELECT `+medicationColumns+` FROM medications`+w.sql(), w.args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find medication: %w", err)
	}
	return m, nil
}

// Create は服薬情報を作成する。
func (r *PostgresMedicationRepo) Create(ctx context.Context, m *model.Medication) error {
	ctx, cancel := r.op(ctx)
	defer cancel()

	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO medications (id, user_id, name, dosage, frequency, start_date, end_date, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		m.ID, string(m.UserID), m.Name, m.Dosage, m.Frequency, m.StartDate.UTC(), nullTimeOf(m.EndDate), nullString(m.Notes), m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert medication: %w", err)
	}
	return nil
}

// Update は服薬情報の値を書き換える。対象がない場合はErrNotFoundを返す。
func (r *PostgresMedicationRepo) Update(ctx context.Context, scope model.OwnerScope, m *model.Medication) error {
	if !validID(m.ID) {
		return ErrNotFound
	}
	ctx, cancel := r.op(ctx)
	defer cancel()

	m.UpdatedAt = time.Now().UTC()

	w := &whereBuilder{}
	w.add("name = ?", m.Name)
	w.add("dosage = ?", m.Dosage)
	w.add("frequency = ?", m.Frequency)
	w.add("start_date = ?", m.StartDate.UTC())
	w.add("end_date = ?", nullTimeOf(m.EndDate))
	w.add("notes = ?", nullString(m.Notes))
	w.add("updated_at = ?", m.UpdatedAt)
	set := w.split()
	w.add("id = ?", m.ID)
	w.scoped("user_id", scope)

	err := r.exec(ctx, `UPDATE medications SET `+joinSet(set)+w.sql(), w.args...)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to update medication: %w", err)
	}
	return err
}

// Delete は服薬情報を削除する。対象がない場合はErrNotFoundを返す。
func (r *PostgresMedicationRepo) Delete(ctx context.Context, scope model.OwnerScope, id string) error {
	return r.scopedDelete(ctx, "medications", scope, id)
}

// compile-time interface check
var _ MedicationRepository = (*PostgresMedicationRepo)(nil)
