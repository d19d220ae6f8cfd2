package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dskhairnar/backend-acme/internal/model"
	"github.com/google/uuid"
)

const shipmentColumns = `id, user_id, items, status, tracking_number, shipped_at, delivered_at, created_at, updated_at`

var shipmentListSpec = listSpec{
	table:      "shipments",
	columns:    shipmentColumns,
	dateColumn: "created_at",
	sortColumns: map[string]string{
		"createdAt":   "created_at",
		"shippedAt":   "shipped_at",
		"deliveredAt": "delivered_at",
		"status":      "status",
	},
	defaultSort:  "createdAt",
	nullableSort: map[string]bool{"shippedAt": true, "deliveredAt": true},
	ownerColumn:  "user_id",
	filters: map[string]filterFunc{
		model.FilterStatus: func(w *whereBuilder, v string) bool {
			status := model.ShipmentStatus(strings.ToLower(v))
			if !status.Valid() {
				return false
			}
			w.add("status = ?", string(status))
			return true
		},
	},
}

// PostgresShipmentRepo はPostgreSQLを使用した配送情報リポジトリ。
// 明細行はJSONB列に格納する。
type PostgresShipmentRepo struct {
	pgBase
}

// NewPostgresShipmentRepo はPostgresShipmentRepoを生成する。
func NewPostgresShipmentRepo(db *sql.DB, queryTimeout time.Duration) *PostgresShipmentRepo {
	return &PostgresShipmentRepo{pgBase{db: db, timeout: queryTimeout}}
}

func scanShipment(row rowScanner) (*model.Shipment, error) {
	s := &model.Shipment{}
	var userID, status string
	var items []byte
	var tracking sql.NullString
	var shippedAt, deliveredAt sql.NullTime
	if err := row.Scan(&s.ID, &userID, &items, &status, &tracking, &shippedAt, &deliveredAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &s.Items); err != nil {
		return nil, fmt.Errorf("failed to decode shipment items: %w", err)
	}
	s.UserID = model.UserID(userID)
	s.Status = model.ShipmentStatus(status)
	s.TrackingNumber = tracking.String
	s.ShippedAt = timePtr(shippedAt)
	s.DeliveredAt = timePtr(deliveredAt)
	return s, nil
}

// List は配送情報をフィルタ・ソート・ページング付きで返す。
func (r *PostgresShipmentRepo) List(ctx context.Context, scope model.OwnerScope, q model.ListQuery) (*model.Page[*model.Shipment], error) {
	ctx, cancel := r.op(ctx)
	defer cancel()

	selectSQL, countSQL, args := buildList(shipmentListSpec, scope, q)

	total, err := r.count(ctx, countSQL, args[:len(args)-2]...)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list shipments: %w", err)
	}
	defer rows.Close()

	shipments := make([]*model.Shipment, 0)
	for rows.Next() {
		s, err := scanShipment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shipment: %w", err)
		}
		shipments = append(shipments, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate shipments: %w", err)
	}
	return &model.Page[*model.Shipment]{Items: shipments, Total: total}, nil
}

// FindByID は指定IDの配送情報を取得する。見つからない、またはスコープ外の場合はnilを返す。
func (r *PostgresShipmentRepo) FindByID(ctx context.Context, scope model.OwnerScope, id string) (*model.Shipment, error) {
	if !validID(id) {
		return nil, nil
	}
	ctx, cancel := r.op(ctx)
	defer cancel()

	w := &whereBuilder{}
	w.add("id = ?", id)
	w.scoped("user_id", scope)

	s, err := scanShipment(r.db.QueryRowContext(ctx,
		`SELECT `+shipmentColumns+` FROM shipments`+w.sql(), w.args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find shipment: %w", err)
	}
	return s, nil
}

// Create は配送情報を作成する。
func (r *PostgresShipmentRepo) Create(ctx context.Context, s *model.Shipment) error {
	ctx, cancel := r.op(ctx)
	defer cancel()

	items, err := s.ItemsJSON()
	if err != nil {
		return fmt.Errorf("failed to encode shipment items: %w", err)
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.Status == "" {
		s.Status = model.ShipmentPending
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO shipments (id, user_id, items, status, tracking_number, shipped_at, delivered_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, string(s.UserID), items, string(s.Status), nullString(s.TrackingNumber),
		nullTimeOf(s.ShippedAt), nullTimeOf(s.DeliveredAt), s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert shipment: %w", err)
	}
	return nil
}

// Update は配送情報の値を書き換える。対象がない場合はErrNotFoundを返す。
func (r *PostgresShipmentRepo) Update(ctx context.Context, scope model.OwnerScope, s *model.Shipment) error {
	if !validID(s.ID) {
		return ErrNotFound
	}
	ctx, cancel := r.op(ctx)
	defer cancel()

	items, err := s.ItemsJSON()
	if err != nil {
		return fmt.Errorf("failed to encode shipment items: %w", err)
	}
	s.UpdatedAt = time.Now().UTC()

	w := &whereBuilder{}
	w.add("items = ?", items)
	w.add("status = ?", string(s.Status))
	w.add("tracking_number = ?", nullString(s.TrackingNumber))
	w.add("shipped_at = ?", nullTimeOf(s.ShippedAt))
	w.add("delivered_at = ?", nullTimeOf(s.DeliveredAt))
	w.add("updated_at = ?", s.UpdatedAt)
	set := w.split()
	w.add("id = ?", s.ID)
	w.scoped("user_id", scope)

	err = r.exec(ctx, `UPDATE shipments SET `+joinSet(set)+w.sql(), w.args...)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to update shipment: %w", err)
	}
	return err
}

// Delete は配送情報を削除する。対象がない場合はErrNotFoundを返す。
func (r *PostgresShipmentRepo) Delete(ctx context.Context, scope model.OwnerScope, id string) error {
	return r.scopedDelete(ctx, "shipments", scope, id)
}

// compile-time interface check
var _ ShipmentRepository = (*PostgresShipmentRepo)(nil)
