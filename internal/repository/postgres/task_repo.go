package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"devboard/internal/logger"
	"devboard/internal/models/task"
	repo "devboard/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const taskColumns = `id, title, description, priority, status, due_date, assignee_id, creator_id,
	dev_start_date, dev_end_date, testing_start_date, created_at, updated_at, version`

type TaskRepo struct {
	pool *pgxpool.Pool
}

func scanTask(row pgx.Row) (*task.Task, error) {
	t := &task.Task{}
	err := row.Scan(
		&t.UUID, &t.Title, &t.Description, &t.Priority, &t.Status, &t.DueDate, &t.AssigneeID, &t.CreatorID,
		&t.DevStartDate, &t.DevEndDate, &t.TestingStartDate, &t.CreatedAt, &t.UpdatedAt, &t.Version,
	)
	return t, err
}

func (r *TaskRepo) Create(ctx context.Context, t *task.Task) error {
	start := time.Now()
	defer warnIfSlow("task.create", start, slowQuery)

	query := `INSERT INTO tasks (id, title, description, priority, status, due_date, assignee_id, creator_id,
				dev_start_date, dev_end_date, testing_start_date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING created_at, version`

	err := r.pool.QueryRow(ctx, query,
		t.UUID, t.Title, t.Description, t.Priority, t.Status, t.DueDate, t.AssigneeID, t.CreatorID,
		t.DevStartDate, t.DevEndDate, t.TestingStartDate,
	).Scan(&t.CreatedAt, &t.Version)
	if err != nil {
		logger.Error("Repository: failed to create task", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("create task: %w", mapWriteError(err))
	}
	return nil
}

func (r *TaskRepo) GetByID(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	start := time.Now()
	defer warnIfSlow("task.get", start, slowQuery)

	t, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to get task", err, zap.String("task_id", id.String()))
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// Update writes t only if the stored version still equals t.Version.
func (r *TaskRepo) Update(ctx context.Context, t *task.Task) error {
	start := time.Now()
	defer warnIfSlow("task.update", start, slowQuery)

	query := `UPDATE tasks
			SET title = $1,
				description = $2,
				priority = $3,
				status = $4,
				due_date = $5,
				assignee_id = $6,
				dev_start_date = $7,
				dev_end_date = $8,
				testing_start_date = $9,
				version = version + 1,
				updated_at = NOW()
			WHERE id = $10 AND version = $11
			RETURNING updated_at, version`

	err := r.pool.QueryRow(ctx, query,
		t.Title, t.Description, t.Priority, t.Status, t.DueDate, t.AssigneeID,
		t.DevStartDate, t.DevEndDate, t.TestingStartDate,
		t.UUID, t.Version,
	).Scan(&t.UpdatedAt, &t.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return missOrConflict(ctx, r.pool, "tasks", t.UUID, t.Version)
		}
		logger.Error("Repository: failed to update task", err)
		return fmt.Errorf("update task: %w", mapWriteError(err))
	}
	return nil
}

func (r *TaskRepo) Delete(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	defer warnIfSlow("task.delete", start, slowQuery)

	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		logger.Error("Repository: failed to delete task", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *TaskRepo) List(ctx context.Context, filter task.Filter) ([]*task.Task, error) {
	start := time.Now()
	defer warnIfSlow("task.list", start, slowQuery)

	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.AssigneeID != nil {
		add("assignee_id = $%d", *filter.AssigneeID)
	}
	if filter.DueFrom != nil {
		add("due_date >= $%d", *filter.DueFrom)
	}
	if filter.DueTo != nil {
		add("due_date <= $%d", *filter.DueTo)
	}
	if filter.NotStatus != "" {
		add("status <> $%d", filter.NotStatus)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	if filter.SortByDue {
		query += ` ORDER BY due_date ASC NULLS LAST, created_at DESC`
	} else {
		query += ` ORDER BY CASE priority WHEN 'HIGH' THEN 0 WHEN 'MEDIUM' THEN 1 ELSE 2 END,
			due_date ASC NULLS LAST, created_at DESC`
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: failed to list tasks", err)
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	res := []*task.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		res = append(res, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return res, nil
}

// missOrConflict resolves an UPDATE that matched no rows: either the row is gone or its version moved on.
func missOrConflict(ctx context.Context, pool *pgxpool.Pool, table string, id uuid.UUID, version int) error {
	var exists bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check %s: %w", table, err)
	}
	if !exists {
		return repo.ErrNotFound
	}
	logger.Warn("Repository: version conflict",
		zap.String("table", table),
		zap.String("id", id.String()),
		zap.Int("expected_version", version))
	return repo.ErrVersionConflict
}
