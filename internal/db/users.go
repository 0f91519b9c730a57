package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/storefront/backend/internal/model"
)

const userColumns = `id, email, mat_khau, ho_ten, dien_thoai, dia_chi, vai_tro, bi_khoa, ngay_tao, ngay_cap_nhat`

var errEmptyUpdate = errors.New("db: empty user update")

func (db *Postgres) EnsureUserSchema(ctx context.Context) error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS nguoi_dung (
			id BIGSERIAL PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			mat_khau TEXT NOT NULL,
			ho_ten TEXT NOT NULL,
			dien_thoai TEXT NOT NULL DEFAULT '',
			dia_chi TEXT NOT NULL DEFAULT '',
			vai_tro SMALLINT NOT NULL DEFAULT 0 CHECK (vai_tro IN (0, 1)),
			bi_khoa BOOLEAN NOT NULL DEFAULT FALSE,
			ngay_tao TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			ngay_cap_nhat TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
		`,
		`CREATE INDEX IF NOT EXISTS nguoi_dung_vai_tro_idx ON nguoi_dung(vai_tro)`,
	}

	for _, query := range queries {
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to ensure user schema: %w", err)
		}
	}
	return nil
}

func (db *Postgres) CreateUser(ctx context.Context, in model.NewUser) (*model.User, error) {
	query := `
		INSERT INTO nguoi_dung (email, mat_khau, ho_ten, dien_thoai, dia_chi, vai_tro)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns

	return scanUser(db.Pool.QueryRow(ctx, query,
		model.NormalizeEmail(in.Email),
		in.PasswordHash,
		in.FullName,
		in.Phone,
		in.Address,
		int16(in.Role),
	))
}

func (db *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM nguoi_dung WHERE email = $1`
	return scanUser(db.Pool.QueryRow(ctx, query, model.NormalizeEmail(email)))
}

func (db *Postgres) GetUserByID(ctx context.Context, userID int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM nguoi_dung WHERE id = $1`
	return scanUser(db.Pool.QueryRow(ctx, query, userID))
}

func (db *Postgres) ListUsers(ctx context.Context, limit, offset int) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM nguoi_dung ORDER BY id ASC LIMIT $1 OFFSET $2`
	rows, err := db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []*model.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateUser writes only the non-nil fields of upd and returns the number of
// affected rows; zero means the id does not exist.
func (db *Postgres) UpdateUser(ctx context.Context, userID int64, upd model.UserUpdate) (int64, error) {
	if upd.Empty() {
		return 0, errEmptyUpdate
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if upd.FullName != nil {
		set("ho_ten", *upd.FullName)
	}
	if upd.Phone != nil {
		set("dien_thoai", *upd.Phone)
	}
	if upd.Address != nil {
		set("dia_chi", *upd.Address)
	}
	if upd.PasswordHash != nil {
		set("mat_khau", *upd.PasswordHash)
	}
	if upd.Role != nil {
		set("vai_tro", int16(*upd.Role))
	}
	if upd.Locked != nil {
		set("bi_khoa", *upd.Locked)
	}
	sets = append(sets, "ngay_cap_nhat = NOW()")
	args = append(args, userID)

	query := fmt.Sprintf("UPDATE nguoi_dung SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	result, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func (db *Postgres) DeleteUser(ctx context.Context, userID int64) (int64, error) {
	result, err := db.Pool.Exec(ctx, `DELETE FROM nguoi_dung WHERE id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		user model.User
		role int16
	)
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.Phone,
		&user.Address,
		&role,
		&user.Locked,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Role = model.Role(role)
	return &user, nil
}
