package model

import "time"

const (
	// DefaultPage は一覧取得のデフォルトページ番号。
	DefaultPage = 1
	// DefaultLimit は一覧取得のデフォルト件数。
	DefaultLimit = 50
	// MaxLimit は1ページあたりの最大件数。
	MaxLimit = 100
)

// OwnerScope はリポジトリ操作の所有者スコープを表す。
// Allがtrueの場合（管理者）はuser_idで絞り込まない。
type OwnerScope struct {
	UserID UserID
	All    bool
}

// ScopeOf は指定ユーザーに限定したスコープを返す。
func ScopeOf(id UserID) OwnerScope {
	return OwnerScope{UserID: id}
}

// ListQuery はリソース一覧取得の共通条件。
// From は含む、Until は含まない境界として扱う。
type ListQuery struct {
	Page      int
	Limit     int
	From      *time.Time
	Until     *time.Time
	SortField string
	SortDesc  bool
	// Filters はリソース固有の等価フィルタ（例: shipmentのstatus）。
	Filters map[string]string
}

// Offset はSQLのOFFSET値を返す。
func (q ListQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// Pagination は一覧レスポンスのページング情報。
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// NewPagination はページ番号、件数、総件数からPaginationを算出する。
func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}

// Page は一覧取得結果と総件数を保持する。
type Page[T any] struct {
	Items []T
	Total int
}

// 一覧のソート可能フィールド。先頭がデフォルトのソートキー。
var (
	WeightSortFields     = []string{"recordedAt", "weight", "createdAt"}
	MedicationSortFields = []string{"startDate", "endDate", "name", "createdAt"}
	ShipmentSortFields   = []string{"createdAt", "shippedAt", "deliveredAt", "status"}
	UserSortFields       = []string{"createdAt", "email", "name"}
)

// 一覧のリソース固有フィルタキー
const (
	FilterActive = "active"
	FilterStatus = "status"
	FilterRole   = "role"
)
