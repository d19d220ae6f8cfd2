package model

import (
	"encoding/json"
	"time"
)

// WeightEntry は体重の記録を表す。
// RecordedAtは測定日（業務日付）であり、作成日時とは別に扱う。
type WeightEntry struct {
	ID         string
	UserID     UserID
	Weight     float64
	RecordedAt time.Time
	Note       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// WeightStats は期間内の体重推移のサマリー。
type WeightStats struct {
	Period        string    `json:"period"`
	From          time.Time `json:"from"`
	Count         int       `json:"count"`
	Average       float64   `json:"average"`
	Min           float64   `json:"min"`
	Max           float64   `json:"max"`
	First         float64   `json:"first"`
	Last          float64   `json:"last"`
	Change        float64   `json:"change"`
	PercentChange float64   `json:"percentChange"`
}

// Medication は服薬情報を表す。EndDateは任意で、指定時はStartDateより後でなければならない。
type Medication struct {
	ID        string
	UserID    UserID
	Name      string
	Dosage    string
	Frequency string
	StartDate time.Time
	EndDate   *time.Time
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ShipmentStatus は配送状態を表す。
type ShipmentStatus string

const (
	ShipmentPending   ShipmentStatus = "pending"
	ShipmentShipped   ShipmentStatus = "shipped"
	ShipmentDelivered ShipmentStatus = "delivered"
	ShipmentDelayed   ShipmentStatus = "delayed"
	ShipmentCancelled ShipmentStatus = "cancelled"
)

// Valid は配送状態が定義済みの値かどうかを返す。
func (s ShipmentStatus) Valid() bool {
	switch s {
	case ShipmentPending, ShipmentShipped, ShipmentDelivered, ShipmentDelayed, ShipmentCancelled:
		return true
	}
	return false
}

// ShipmentItem は配送の明細行。
type ShipmentItem struct {
	Name     string   `json:"name"`
	Quantity int      `json:"quantity"`
	Price    *float64 `json:"price,omitempty"`
}

// Shipment は薬の配送を表す。DeliveredAtはShippedAtより前であってはならない。
type Shipment struct {
	ID             string
	UserID         UserID
	Items          []ShipmentItem
	Status         ShipmentStatus
	TrackingNumber string
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ItemsJSON は明細行をJSONB列に格納するためにエンコードする。
func (s *Shipment) ItemsJSON() ([]byte, error) {
	items := s.Items
	if items == nil {
		items = []ShipmentItem{}
	}
	return json.Marshal(items)
}
