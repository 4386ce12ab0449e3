package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lumenshop/storefront/internal/domain/entity"
	"github.com/lumenshop/storefront/internal/domain/repository"
)

// pgUniqueViolation is the SQLSTATE for unique constraint violations.
const pgUniqueViolation = "23505"

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(u *entity.User) error {
	ctx := context.Background()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (phone, password_hash, first_name, last_name, role, mobile_verified)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`, u.Phone, u.Password, u.FirstName, u.LastName, u.Role.String(), u.MobileVerified)

	if err := row.Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return repository.ErrDuplicatePhone
		}
		return err
	}
	return nil
}

func (r *UserRepository) GetByID(id string) (*entity.User, error) {
	return r.getBy(`
		SELECT id, phone, password_hash, first_name, last_name, role, mobile_verified, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
}

func (r *UserRepository) GetByPhone(phone string) (*entity.User, error) {
	return r.getBy(`
		SELECT id, phone, password_hash, first_name, last_name, role, mobile_verified, created_at, updated_at
		FROM users
		WHERE phone = $1
	`, phone)
}

func (r *UserRepository) getBy(query string, arg any) (*entity.User, error) {
	ctx := context.Background()
	u := &entity.User{}
	var role string

	row := r.pool.QueryRow(ctx, query, arg)
	if err := row.Scan(&u.ID, &u.Phone, &u.Password, &u.FirstName, &u.LastName, &role,
		&u.MobileVerified, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	u.Role = entity.ParseRole(role)
	return u, nil
}

func (r *UserRepository) Update(u *entity.User) error {
	ctx := context.Background()
	u.UpdatedAt = time.Now()

	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET first_name = $1, last_name = $2, updated_at = $3
		WHERE id = $4
	`, u.FirstName, u.LastName, u.UpdatedAt, u.ID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetMobileVerified(id string) error {
	ctx := context.Background()
	res, err := r.pool.Exec(ctx, `
		UPDATE users
		SET mobile_verified = TRUE, updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

var _ repository.UserRepository = (*UserRepository)(nil)
