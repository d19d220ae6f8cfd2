package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dskhairnar/backend-acme/internal/model"
)

const testShipmentID = "9d8c7b6a-5f4e-4d3c-9b2a-1f0e9d8c7b6a"

func shipmentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "items", "status", "tracking_number", "shipped_at", "delivered_at", "created_at", "updated_at"})
}

func TestPostgresShipmentRepo_ImplementsInterface(t *testing.T) {
	var _ ShipmentRepository = (*PostgresShipmentRepo)(nil)
}

func TestPostgresShipmentRepo_FindByID_DecodesItems(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresShipmentRepo(db, time.Second)

	now := time.Now()
	shipped := now.Add(-48 * time.Hour)
	mock.ExpectQuery(`FROM shipments WHERE id = \$1 AND user_id = \$2`).
		WithArgs(testShipmentID, string(testUserID)).
		WillReturnRows(shipmentRows().AddRow(testShipmentID, string(testUserID),
			[]byte(`[{"name":"Semaglutide pen","quantity":2,"price":120.5}]`),
			"shipped", "1Z999", shipped, nil, now, now))

	s, err := repo.FindByID(context.Background(), model.ScopeOf(testUserID), testShipmentID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(s.Items) != 1 || s.Items[0].Quantity != 2 || s.Items[0].Price == nil || *s.Items[0].Price != 120.5 {
		t.Errorf("items = %+v", s.Items)
	}
	if s.Status != model.ShipmentShipped || s.TrackingNumber != "1Z999" {
		t.Errorf("shipment = %+v", s)
	}
	if s.ShippedAt == nil || s.DeliveredAt != nil {
		t.Errorf("shippedAt=%v deliveredAt=%v", s.ShippedAt, s.DeliveredAt)
	}
	expectationsMet(t, mock)
}

func TestPostgresShipmentRepo_Create_DefaultsStatusAndEncodesItems(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresShipmentRepo(db, time.Second)

	mock.ExpectExec(`INSERT INTO shipments`).
		WithArgs(sqlmock.AnyArg(), string(testUserID), []byte(`[{"name":"Pen","quantity":1}]`), "pending", nil, nil, nil, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s := &model.Shipment{UserID: testUserID, Items: []model.ShipmentItem{{Name: "Pen", Quantity: 1}}}
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if s.Status != model.ShipmentPending {
		t.Errorf("Status = %q, want pending", s.Status)
	}
	expectationsMet(t, mock)
}

func TestPostgresShipmentRepo_Update_ForeignRecord_ReturnsErrNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresShipmentRepo(db, time.Second)

	mock.ExpectExec(`UPDATE shipments SET .+ WHERE id = \$7 AND user_id = \$8`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	s := &model.Shipment{ID: testShipmentID, Status: model.ShipmentDelivered, Items: []model.ShipmentItem{{Name: "Pen", Quantity: 1}}}
	err := repo.Update(context.Background(), model.ScopeOf(testUserID), s)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	expectationsMet(t, mock)
}

func TestPostgresShipmentRepo_List_StatusFilter(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresShipmentRepo(db, time.Second)

	mock.ExpectQuery(`SELECT count\(\*\) FROM shipments WHERE status = \$1`).
		WithArgs("delayed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`FROM shipments WHERE status = \$1 ORDER BY created_at DESC, id DESC`).
		WithArgs("delayed", 10, 10).
		WillReturnRows(shipmentRows())

	page, err := repo.List(context.Background(), model.OwnerScope{All: true}, model.ListQuery{
		Page: 2, Limit: 10, SortDesc: true,
		Filters: map[string]string{model.FilterStatus: "delayed"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if page.Total != 0 {
		t.Errorf("Total = %d, want 0", page.Total)
	}
	expectationsMet(t, mock)
}
