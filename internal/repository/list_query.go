package repository

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dskhairnar/backend-acme/internal/model"
)

// filterFunc はリソース固有フィルタの値からWHERE句を組み立てる。
// 解釈できない値の場合はfalseを返し、フィルタを適用しない。
type filterFunc func(w *whereBuilder, value string) bool

// listSpec はリソースごとの一覧クエリ定義。
type listSpec struct {
	table   string
	columns string
	// dateColumn は日付範囲フィルタを適用する列。
	dateColumn string
	// sortColumns はAPIのソートフィールド名から列名への対応。許可リストを兼ねる。
	sortColumns map[string]string
	defaultSort string
	// nullableSort はNULLを含みうるソート列。NULLは常に末尾に並べる。
	nullableSort map[string]bool
	filters      map[string]filterFunc
	// ownerColumn は所有者スコープを適用する列。空の場合はスコープを適用しない。
	ownerColumn string
}

// whereBuilder は "?" プレースホルダを$nに置き換えながらWHERE句を組み立てる。
type whereBuilder struct {
	clauses []string
	args    []interface{}
}

func (w *whereBuilder) add(clause string, args ...interface{}) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		clause = strings.Replace(clause, "?", "$"+strconv.Itoa(len(w.args)), 1)
	}
	w.clauses = append(w.clauses, clause)
}

// split はここまでの句を取り出してリセットする。引数の番号は引き継ぐため、
// UPDATEのSET句とWHERE句を同じbuilderで組み立てられる。
func (w *whereBuilder) split() []string {
	clauses := w.clauses
	w.clauses = nil
	return clauses
}

func (w *whereBuilder) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// scoped はスコープに応じて所有者条件を追加する。
func (w *whereBuilder) scoped(column string, scope model.OwnerScope) {
	if column != "" && !scope.All {
		w.add(column+" = ?", string(scope.UserID))
	}
}

// buildList は一覧取得用のSELECT文とCOUNT文、引数を組み立てる。
// SELECT文の引数はCOUNT文の引数に LIMIT, OFFSET を加えたもの。
func buildList(spec listSpec, scope model.OwnerScope, q model.ListQuery) (selectSQL, countSQL string, args []interface{}) {
	w := &whereBuilder{}
	w.scoped(spec.ownerColumn, scope)

	if q.From != nil && spec.dateColumn != "" {
		w.add(spec.dateColumn+" >= ?", q.From.UTC())
	}
	if q.Until != nil && spec.dateColumn != "" {
		w.add(spec.dateColumn+" < ?", q.Until.UTC())
	}

	// プレースホルダ番号を安定させるためキー順に適用する
	for _, key := range sortedKeys(q.Filters) {
		if f, ok := spec.filters[key]; ok {
			f(w, q.Filters[key])
		}
	}

	where := w.sql()
	countSQL = "SELECT count(*) FROM " + spec.table + where

	field := q.SortField
	column, ok := spec.sortColumns[field]
	if !ok {
		field = spec.defaultSort
		column = spec.sortColumns[field]
	}
	dir := "ASC"
	if q.SortDesc {
		dir = "DESC"
	}
	order := column + " " + dir
	if spec.nullableSort[field] {
		order += " NULLS LAST"
	}
	// 同値の行がページ間で重複・欠落しないようにidで順序を確定させる
	order += ", id " + dir

	limit := q.Limit
	if limit <= 0 {
		limit = model.DefaultLimit
	}

	args = append([]interface{}{}, w.args...)
	selectSQL = fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s LIMIT $%d OFFSET $%d",
		spec.columns, spec.table, where, order, len(args)+1, len(args)+2)
	args = append(args, limit, q.Offset())

	return selectSQL, countSQL, args
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// joinSet はSET句の代入式をカンマで連結する。
func joinSet(assignments []string) string {
	return strings.Join(assignments, ", ")
}
