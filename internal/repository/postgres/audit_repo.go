package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"devboard/internal/logger"
	"devboard/internal/models/audit"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditRepo only ever inserts and selects; audit_logs rows are never updated or deleted.
type AuditRepo struct {
	pool *pgxpool.Pool
}

func (r *AuditRepo) Append(ctx context.Context, e *audit.Entry) error {
	start := time.Now()
	defer warnIfSlow("audit.append", start, slowQuery)

	details, err := e.Details.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode audit details: %w", err)
	}

	query := `INSERT INTO audit_logs (id, user_id, action, entity_type, entity_id, details, ip_address, user_agent)
			VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6::jsonb, NULLIF($7, ''), NULLIF($8, ''))
			RETURNING created_at`

	err = r.pool.QueryRow(ctx, query,
		e.ID, e.UserID, e.Action, e.EntityType, e.EntityID, string(details), e.IPAddress, e.UserAgent,
	).Scan(&e.CreatedAt)
	if err != nil {
		logger.Error("Repository: failed to append audit entry", err)
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (r *AuditRepo) List(ctx context.Context, filter audit.Filter) ([]*audit.Entry, error) {
	start := time.Now()
	defer warnIfSlow("audit.list", start, slowQuery)

	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != nil {
		add("user_id = $%d", *filter.UserID)
	}
	if filter.Action != "" {
		add("action = $%d", filter.Action)
	}
	if filter.EntityType != "" {
		add("entity_type = $%d", filter.EntityType)
	}
	if filter.EntityID != "" {
		add("entity_id = $%d", filter.EntityID)
	}

	query := `SELECT id, user_id, action, COALESCE(entity_type, ''), COALESCE(entity_id, ''),
				COALESCE(details::text, 'null'), COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at
			FROM audit_logs`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Take > 0 {
		args = append(args, filter.Take)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Skip > 0 {
		args = append(args, filter.Skip)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: failed to list audit entries", err)
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	res := []*audit.Entry{}
	for rows.Next() {
		var (
			e       audit.Entry
			details string
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Action, &e.EntityType, &e.EntityID, &details,
			&e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if err := e.Details.UnmarshalJSON([]byte(details)); err != nil {
			return nil, fmt.Errorf("decode audit details: %w", err)
		}
		res = append(res, &e)
	}
	return res, rows.Err()
}
