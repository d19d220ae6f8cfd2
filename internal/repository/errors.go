package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	// ErrDuplicate はユニーク制約違反を表す。
	ErrDuplicate = errors.New("duplicate key")
	// ErrNotFound は更新・削除の対象行が存在しないことを表す。
	ErrNotFound = errors.New("record not found")
)

// uniqueViolation はPostgreSQLのunique_violationのSQLSTATE。
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// validID はIDがUUIDとして解釈できるかを返す。
// UUIDでないIDは存在しないIDと同じ扱いにし、DBへ問い合わせない。
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTimeOf(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
