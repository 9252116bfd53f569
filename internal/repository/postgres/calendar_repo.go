package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"devboard/internal/logger"
	"devboard/internal/models/calendar"
	repo "devboard/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const eventColumns = `id, title, description, start_date, end_date, event_type, is_blocked, created_by_id,
	created_at, updated_at, version`

type CalendarRepo struct {
	pool *pgxpool.Pool
}

func scanEvent(row pgx.Row) (*calendar.Event, error) {
	e := &calendar.Event{}
	err := row.Scan(&e.ID, &e.Title, &e.Description, &e.StartDate, &e.EndDate, &e.EventType, &e.IsBlocked,
		&e.CreatedByID, &e.CreatedAt, &e.UpdatedAt, &e.Version)
	return e, err
}

func (r *CalendarRepo) Create(ctx context.Context, e *calendar.Event) error {
	start := time.Now()
	defer warnIfSlow("calendar.create", start, slowQuery)

	query := `INSERT INTO calendar_events (id, title, description, start_date, end_date, event_type, is_blocked, created_by_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at, version`

	err := r.pool.QueryRow(ctx, query, e.ID, e.Title, e.Description, e.StartDate, e.EndDate, e.EventType, e.IsBlocked, e.CreatedByID).
		Scan(&e.CreatedAt, &e.Version)
	if err != nil {
		logger.Error("Repository: failed to create calendar event", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("create calendar event: %w", mapWriteError(err))
	}
	return nil
}

func (r *CalendarRepo) GetByID(ctx context.Context, id uuid.UUID) (*calendar.Event, error) {
	start := time.Now()
	defer warnIfSlow("calendar.get", start, slowQuery)

	e, err := scanEvent(r.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM calendar_events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: failed to get calendar event", err, zap.String("event_id", id.String()))
		return nil, fmt.Errorf("get calendar event: %w", err)
	}
	return e, nil
}

// List applies the overlap rule of calendar.Range in SQL, treating a NULL end_date as start_date.
func (r *CalendarRepo) List(ctx context.Context, filter calendar.Filter) ([]*calendar.Event, error) {
	start := time.Now()
	defer warnIfSlow("calendar.list", start, slowQuery)

	var (
		conds []string
		args  []any
	)
	if filter.EventType != "" {
		args = append(args, filter.EventType)
		conds = append(conds, fmt.Sprintf("event_type = $%d", len(args)))
	}
	if filter.Range != nil {
		args = append(args, filter.Range.From, filter.Range.To)
		from, to := len(args)-1, len(args)
		conds = append(conds, fmt.Sprintf(`(
			(start_date BETWEEN $%[1]d AND $%[2]d)
			OR (COALESCE(end_date, start_date) BETWEEN $%[1]d AND $%[2]d)
			OR (start_date <= $%[1]d AND COALESCE(end_date, start_date) >= $%[2]d)
		)`, from, to))
	}

	query := `SELECT ` + eventColumns + ` FROM calendar_events`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY start_date ASC, created_at ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: failed to list calendar events", err)
		return nil, fmt.Errorf("list calendar events: %w", err)
	}
	defer rows.Close()

	res := []*calendar.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan calendar event: %w", err)
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r *CalendarRepo) Update(ctx context.Context, e *calendar.Event) error {
	start := time.Now()
	defer warnIfSlow("calendar.update", start, slowQuery)

	query := `UPDATE calendar_events
			SET title = $1,
				description = $2,
				start_date = $3,
				end_date = $4,
				event_type = $5,
				is_blocked = $6,
				version = version + 1,
				updated_at = NOW()
			WHERE id = $7 AND version = $8
			RETURNING updated_at, version`

	err := r.pool.QueryRow(ctx, query, e.Title, e.Description, e.StartDate, e.EndDate, e.EventType, e.IsBlocked, e.ID, e.Version).
		Scan(&e.UpdatedAt, &e.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return missOrConflict(ctx, r.pool, "calendar_events", e.ID, e.Version)
		}
		logger.Error("Repository: failed to update calendar event", err)
		return fmt.Errorf("update calendar event: %w", err)
	}
	return nil
}

func (r *CalendarRepo) Delete(ctx context.Context, id uuid.UUID) error {
	start := time.Now()
	defer warnIfSlow("calendar.delete", start, slowQuery)

	tag, err := r.pool.Exec(ctx, `DELETE FROM calendar_events WHERE id = $1`, id)
	if err != nil {
		logger.Error("Repository: failed to delete calendar event", err)
		return fmt.Errorf("delete calendar event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}
