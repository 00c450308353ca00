package admin

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type Repository interface {
	createAdmin(ctx context.Context, a *Admin) error
	getByID(ctx context.Context, id string) (*Admin, error)
	getByLoginOrEmail(ctx context.Context, loginOrEmail string) (*Admin, error)
	existsByLoginOrEmail(ctx context.Context, login, email string) (*Admin, error)
	saveTOTPSecret(ctx context.Context, id, secret string) error
	setTwoFactorEnabled(ctx context.Context, id string, enabled bool) error
}

type adminRepository struct {
	db *sql.DB
}

func NewAdminRepository(db *sql.DB) Repository {
	return &adminRepository{
		db: db,
	}
}

const adminColumns = `id, email, login, password_hash, two_factor_enabled, totp_secret, created_at, updated_at`

func scanAdmin(row *sql.Row) (*Admin, error) {
	var a Admin
	err := row.Scan(&a.ID, &a.Email, &a.Login, &a.PasswordHash, &a.TwoFactorEnabled, &a.TOTPSecret, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("could not scan admin: %w", err)
	}
	return &a, nil
}

func (r *adminRepository) createAdmin(ctx context.Context, a *Admin) error {
	query := `
		INSERT INTO admins (email, login, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, a.Email, a.Login, a.PasswordHash).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("could not create admin: %w", err)
	}
	return nil
}

func (r *adminRepository) getByID(ctx context.Context, id string) (*Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE id = $1::uuid`
	return scanAdmin(r.db.QueryRowContext(ctx, query, id))
}

func (r *adminRepository) getByLoginOrEmail(ctx context.Context, loginOrEmail string) (*Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE email = $1::text OR login = $1::text`
	return scanAdmin(r.db.QueryRowContext(ctx, query, loginOrEmail))
}

func (r *adminRepository) existsByLoginOrEmail(ctx context.Context, login, email string) (*Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE login = $1::text OR email = $2::text LIMIT 1`
	a, err := scanAdmin(r.db.QueryRowContext(ctx, query, login, email))
	if errors.Is(err, ErrAdminNotFound) {
		return nil, nil
	}
	return a, err
}

func (r *adminRepository) saveTOTPSecret(ctx context.Context, id, secret string) error {
	query := `UPDATE admins SET totp_secret = $1, updated_at = NOW() WHERE id = $2::uuid`
	return r.expectUpdate(ctx, query, secret, id)
}

func (r *adminRepository) setTwoFactorEnabled(ctx context.Context, id string, enabled bool) error {
	query := `UPDATE admins SET two_factor_enabled = $1, updated_at = NOW() WHERE id = $2::uuid`
	return r.expectUpdate(ctx, query, enabled, id)
}

func (r *adminRepository) expectUpdate(ctx context.Context, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("could not update admin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not update admin: %w", err)
	}
	if n == 0 {
		return ErrAdminNotFound
	}
	return nil
}
