package handler

import (
	"time"

	"github.com/dskhairnar/backend-acme/internal/auth"
	"github.com/dskhairnar/backend-acme/internal/model"
)

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	DateOfBirth string    `json:"dateOfBirth,omitempty"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toUserResponse(p *model.Principal) userResponse {
	return userResponse{
		ID:          p.ID.String(),
		Email:       p.Email,
		Name:        p.Name,
		DateOfBirth: formatDate(p.DateOfBirth),
		Role:        string(p.Role),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// authResponse は登録・ログイン・リフレッシュのレスポンス。
type authResponse struct {
	User   userResponse    `json:"user"`
	Tokens *auth.TokenPair `json:"tokens"`
}

func toAuthResponse(res *auth.AuthResult) authResponse {
	return authResponse{User: toUserResponse(res.User), Tokens: res.Tokens}
}

type weightEntryResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Weight     float64   `json:"weight"`
	RecordedAt time.Time `json:"recordedAt"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func toWeightEntryResponse(e *model.WeightEntry) weightEntryResponse {
	return weightEntryResponse{
		ID:         e.ID,
		UserID:     e.UserID.String(),
		Weight:     e.Weight,
		RecordedAt: e.RecordedAt,
		Note:       e.Note,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

type medicationResponse struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Name      string     `json:"name"`
	Dosage    string     `json:"dosage"`
	Frequency string     `json:"frequency"`
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func toMedicationResponse(m *model.Medication) medicationResponse {
	return medicationResponse{
		ID:        m.ID,
		UserID:    m.UserID.String(),
		Name:      m.Name,
		Dosage:    m.Dosage,
		Frequency: m.Frequency,
		StartDate: m.StartDate,
		EndDate:   m.EndDate,
		Notes:     m.Notes,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type shipmentResponse struct {
	ID             string               `json:"id"`
	UserID         string               `json:"userId"`
	Items          []model.ShipmentItem `json:"items"`
	Status         string               `json:"status"`
	TrackingNumber string               `json:"trackingNumber,omitempty"`
	ShippedAt      *time.Time           `json:"shippedAt"`
	DeliveredAt    *time.Time           `json:"deliveredAt"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

func toShipmentResponse(s *model.Shipment) shipmentResponse {
	items := s.Items
	if items == nil {
		items = []model.ShipmentItem{}
	}
	return shipmentResponse{
		ID:             s.ID,
		UserID:         s.UserID.String(),
		Items:          items,
		Status:         string(s.Status),
		TrackingNumber: s.TrackingNumber,
		ShippedAt:      s.ShippedAt,
		DeliveredAt:    s.DeliveredAt,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
}

// mapItems はページのアイテムをレスポンス型に変換する。空の場合も空配列を返す。
func mapItems[T any, R any](items []T, fn func(T) R) []R {
	out := make([]R, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
