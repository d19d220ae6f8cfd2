package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dskhairnar/backend-acme/internal/model"
)

const userColumns = `id, email, name, date_of_birth, role, password_hash, created_at, updated_at`

var userListSpec = listSpec{
	table:       "users",
	columns:     userColumns,
	sortColumns: map[string]string{"createdAt": "created_at", "email": "email", "name": "name"},
	defaultSort: "createdAt",
	filters: map[string]filterFunc{
		model.FilterRole: func(w *whereBuilder, v string) bool {
			role := model.Role(strings.ToLower(v))
			if !role.Valid() {
				return false
			}
			w.add("role = ?", string(role))
			return true
		},
	},
}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	pgBase
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
// queryTimeoutは各クエリの上限時間（0以下で無制限）。
func NewPostgresUserRepo(db *sql.DB, queryTimeout time.Duration) *PostgresUserRepo {
	return &PostgresUserRepo{pgBase{db: db, timeout: queryTimeout}}
}

func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var id, role string
	var dob sql.NullTime
	if err := row.Scan(&id, &user.Email, &user.Name, &dob, &role, &user.PasswordHash, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	user.ID = model.UserID(id)
	user.Role = model.Role(role)
	if dob.Valid {
		user.DateOfBirth = dob.Time
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id model.UserID) (*model.User, error) {
	if !validID(string(id)) {
		return nil, nil
	}
	ctx, cancel := r.op(ctx)
	defer cancel()

	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindByEmail は正規化済みメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	ctx, cancel := r.op(ctx)
	defer cancel()

	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, model.NormalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// Create はユーザーを作成する。IDとタイムスタンプが未設定の場合はここで採番する。
// メールアドレスが重複する場合はErrDuplicateを返す。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	ctx, cancel := r.op(ctx)
	defer cancel()

	if user.ID == "" {
		user.ID = model.NewUserID()
	}
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now
	user.Email = model.NormalizeEmail(user.Email)

	var dob sql.NullTime
	if !user.DateOfBirth.IsZero() {
		dob = sql.NullTime{Time: user.DateOfBirth, Valid: true}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, date_of_birth, role, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(user.ID), user.Email, user.Name, dob, string(user.Role), user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// List はユーザー一覧をページング付きで返す。
func (r *PostgresUserRepo) List(ctx context.Context, q model.ListQuery) (*model.Page[*model.User], error) {
	ctx, cancel := r.op(ctx)
	defer cancel()

	selectSQL, countSQL, args := buildList(userListSpec, model.OwnerScope{All: true}, q)

	total, err := r.count(ctx, countSQL, args[:len(args)-2]...)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*model.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return &model.Page[*model.User]{Items: users, Total: total}, nil
}

// UpdateRole はユーザーのロールを更新し、更新後のユーザーを返す。見つからない場合はnilを返す。
func (r *PostgresUserRepo) UpdateRole(ctx context.Context, id model.UserID, role model.Role) (*model.User, error) {
	if !validID(string(id)) {
		return nil, nil
	}
	ctx, cancel := r.op(ctx)
	defer cancel()

	user, err := scanUser(r.db.QueryRowContext(ctx,
		`UPDATE users SET role = $2, updated_at = $3 WHERE id = $1 RETURNING `+userColumns,
		string(id), string(role), time.Now().UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user role: %w", err)
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
