package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"devboard/internal/logger"
	"devboard/internal/models/user"
	repo "devboard/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const userColumns = `id, email, password_hash, first_name, last_name, role, is_active, created_at, updated_at`

type UserRepo struct {
	pool *pgxpool.Pool
}

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *UserRepo) Create(ctx context.Context, u *user.User) error {
	start := time.Now()
	defer warnIfSlow("user.create", start, slowQuery)

	query := `INSERT INTO users (id, email, password_hash, first_name, last_name, role, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING created_at`

	err := r.pool.QueryRow(ctx, query, u.ID, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.IsActive).
		Scan(&u.CreatedAt)
	if err != nil {
		err = mapWriteError(err)
		if !errors.Is(err, repo.ErrConflict) {
			logger.Error("Repository: failed to create user", err)
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepo) get(ctx context.Context, where string, arg any) (*user.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to get user", err)
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	defer warnIfSlow("user.get", time.Now(), slowQuery)
	return r.get(ctx, "id = $1", id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	defer warnIfSlow("user.get_by_email", time.Now(), slowQuery)
	return r.get(ctx, "LOWER(email) = LOWER($1)", email)
}

func (r *UserRepo) List(ctx context.Context) ([]*user.User, error) {
	start := time.Now()
	defer warnIfSlow("user.list", start, slowQuery)

	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		logger.Error("Repository: failed to list users", err)
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	res := []*user.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r *UserRepo) Update(ctx context.Context, u *user.User) error {
	start := time.Now()
	defer warnIfSlow("user.update", start, slowQuery)

	query := `UPDATE users
			SET email = $1,
				password_hash = $2,
				first_name = $3,
				last_name = $4,
				role = $5,
				is_active = $6,
				updated_at = NOW()
			WHERE id = $7
			RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Role, u.IsActive, u.ID).
		Scan(&u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.ErrNotFound
		}
		err = mapWriteError(err)
		if !errors.Is(err, repo.ErrConflict) {
			logger.Error("Repository: failed to update user", err)
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// Delete removes the user; rows still referencing it as creator yield repo.ErrConflict.
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	defer warnIfSlow("user.delete", start, slowQuery)

	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		logger.Error("Repository: failed to delete user", err, zap.String("user_id", id.String()))
		return fmt.Errorf("delete user: %w", mapWriteError(err))
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}
