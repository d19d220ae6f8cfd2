package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dskhairnar/backend-acme/internal/database"
	"github.com/dskhairnar/backend-acme/internal/model"
)

// pgBase はPostgreSQLリポジトリ共通のDBハンドルとクエリタイムアウト。
type pgBase struct {
	db      *sql.DB
	timeout time.Duration
}

// op は呼び出し元のキャンセルから切り離し、クエリタイムアウトを付けたコンテキストを返す。
func (b pgBase) op(ctx context.Context) (context.Context, context.CancelFunc) {
	return database.OpContext(ctx, b.timeout)
}

// count はCOUNT文を実行する。
func (b pgBase) count(ctx context.Context, query string, args ...interface{}) (int, error) {
	var total int
	if err := b.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return total, nil
}

// exec は対象行が1件以上あることを期待するUPDATE/DELETEを実行する。0件の場合はErrNotFoundを返す。
func (b pgBase) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := b.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// scopedDelete はスコープ内の指定IDの行を削除する。
func (b pgBase) scopedDelete(ctx context.Context, table string, scope model.OwnerScope, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	ctx, cancel := b.op(ctx)
	defer cancel()

	w := &whereBuilder{}
	w.add("id = ?", id)
	w.scoped("user_id", scope)
	if err := b.exec(ctx, "DELETE FROM "+table+w.sql(), w.args...); err != nil {
		if err == ErrNotFound {
			return err
		}
		return fmt.Errorf("failed to delete from %s: %w", table, err)
	}
	return nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}
