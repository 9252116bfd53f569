package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"devboard/internal/logger"
	"devboard/internal/models/audit"
	"devboard/internal/models/user"
	"devboard/internal/policy"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultTake = 100
	MaxTake     = 1000
)

type ExportFormat string

const (
	ExportJSON   ExportFormat = "json"
	ExportNDJSON ExportFormat = "ndjson"
	ExportCSV    ExportFormat = "csv"
)

func (f ExportFormat) ContentType() string {
	switch f {
	case ExportNDJSON:
		return "application/x-ndjson"
	case ExportCSV:
		return "text/csv"
	}
	return "application/json"
}

type AuditService struct {
	repo AuditRepository
	now  func() time.Time
}

func NewAuditService(repo AuditRepository) *AuditService {
	return &AuditService{repo: repo, now: time.Now}
}

// Log appends one entry. Client IP and user agent are taken from ctx.
func (s *AuditService) Log(ctx context.Context, actorID uuid.UUID, action, entityType, entityID string, details audit.Value) error {
	info := ClientInfoFrom(ctx)
	entry := &audit.Entry{
		ID:         uuid.New(),
		UserID:     actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		IPAddress:  info.IPAddress,
		UserAgent:  info.UserAgent,
		CreatedAt:  s.now(),
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	logger.Debug("Service: audit entry written",
		zap.String("action", action),
		zap.String("entity_type", entityType),
		zap.String("entity_id", entityID))
	return nil
}

// record logs an audit entry after a committed mutation and wraps a failure in *AuditFailure.
func record(ctx context.Context, l AuditLogger, actorID uuid.UUID, action, entityType, entityID string, details audit.Value) error {
	if err := l.Log(ctx, actorID, action, entityType, entityID, details); err != nil {
		return &AuditFailure{Action: action, EntityID: entityID, Err: err}
	}
	return nil
}

// Page normalises skip/take: take defaults to DefaultTake and is capped at MaxTake.
func Page(skip, take int) (int, int, error) {
	if skip < 0 {
		return 0, 0, NewValidationError("skip", "must not be negative")
	}
	if take < 0 {
		return 0, 0, NewValidationError("take", "must not be negative")
	}
	if take == 0 {
		take = DefaultTake
	}
	if take > MaxTake {
		take = MaxTake
	}
	return skip, take, nil
}

func (s *AuditService) find(ctx context.Context, actor user.Actor, filter audit.Filter) ([]*audit.Entry, error) {
	if d := policy.RequireAdmin(actor); !d.Allowed {
		return nil, NewForbidden(d)
	}
	entries, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

func (s *AuditService) FindAll(ctx context.Context, actor user.Actor, skip, take int) ([]*audit.Entry, error) {
	skip, take, err := Page(skip, take)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, actor, audit.Filter{Skip: skip, Take: take})
}

func (s *AuditService) FindByEntity(ctx context.Context, actor user.Actor, entityType, entityID string) ([]*audit.Entry, error) {
	return s.find(ctx, actor, audit.Filter{EntityType: entityType, EntityID: entityID})
}

func (s *AuditService) FindByUser(ctx context.Context, actor user.Actor, userID uuid.UUID, skip, take int) ([]*audit.Entry, error) {
	skip, take, err := Page(skip, take)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, actor, audit.Filter{UserID: &userID, Skip: skip, Take: take})
}

func (s *AuditService) FindByAction(ctx context.Context, actor user.Actor, action string, skip, take int) ([]*audit.Entry, error) {
	skip, take, err := Page(skip, take)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, actor, audit.Filter{Action: action, Skip: skip, Take: take})
}

func ParseExportFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(s)); f {
	case "":
		return ExportJSON, nil
	case ExportJSON, ExportNDJSON, ExportCSV:
		return f, nil
	}
	return "", NewValidationError("format", "must be one of json, ndjson, csv")
}

var csvHeader = []string{"id", "createdAt", "userId", "action", "entityType", "entityId", "ipAddress", "userAgent", "details"}

// Export writes every entry matching filter to w, newest first.
func (s *AuditService) Export(ctx context.Context, actor user.Actor, w io.Writer, format ExportFormat, filter audit.Filter) error {
	entries, err := s.find(ctx, actor, filter)
	if err != nil {
		return err
	}

	switch format {
	case ExportNDJSON:
		enc := json.NewEncoder(w)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return fmt.Errorf("encode audit entry: %w", err)
			}
		}
		return nil
	case ExportCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(csvHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
		for _, e := range entries {
			row := []string{
				e.ID.String(),
				e.CreatedAt.UTC().Format(time.RFC3339Nano),
				e.UserID.String(),
				e.Action,
				e.EntityType,
				e.EntityID,
				e.IPAddress,
				e.UserAgent,
				e.Details.String(),
			}
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv record: %w", err)
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		if err := json.NewEncoder(w).Encode(entries); err != nil {
			return fmt.Errorf("encode audit entries: %w", err)
		}
		return nil
	}
}
