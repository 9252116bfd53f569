package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"devboard/internal/logger"
	"devboard/internal/models/audit"
	"devboard/internal/models/calendar"
	"devboard/internal/models/user"
	"devboard/internal/policy"
	repo "devboard/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreateEventInput struct {
	Title       string
	Description *string
	StartDate   time.Time
	EndDate     *time.Time
	EventType   calendar.EventType
	IsBlocked   bool
}

// CalendarService gates every mutation on ADMIN; reads are open to any authenticated caller.
type CalendarService struct {
	repo  CalendarRepository
	audit AuditLogger
	now   func() time.Time
}

func NewCalendarService(repo CalendarRepository, audit AuditLogger) *CalendarService {
	return &CalendarService{repo: repo, audit: audit, now: time.Now}
}

func checkEventDates(start time.Time, end *time.Time) error {
	if end != nil && end.Before(start) {
		return NewValidationError(calendar.FieldEndDate, "must not be before startDate")
	}
	return nil
}

// queryRange builds the overlap filter. It only applies when both bounds are given.
func queryRange(from, to *time.Time) (*calendar.Range, error) {
	if from == nil || to == nil {
		return nil, nil
	}
	if to.Before(*from) {
		return nil, NewValidationError("endDate", "must not be before startDate")
	}
	return &calendar.Range{From: *from, To: *to}, nil
}

func (s *CalendarService) Create(ctx context.Context, actor user.Actor, in CreateEventInput) (*calendar.Event, error) {
	if d := policy.RequireAdmin(actor); !d.Allowed {
		return nil, NewForbidden(d)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, NewValidationError(calendar.FieldTitle, "must be a non-empty string")
	}
	if in.StartDate.IsZero() {
		return nil, NewValidationError(calendar.FieldStartDate, "is required")
	}
	if !in.EventType.Valid() {
		return nil, NewValidationError(calendar.FieldEventType, "must be one of DEVELOPMENT, DELIVERY, MILESTONE, BLOCKER")
	}
	if err := checkEventDates(in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	e := &calendar.Event{
		ID:          uuid.New(),
		Title:       in.Title,
		Description: in.Description,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		EventType:   in.EventType,
		IsBlocked:   in.IsBlocked,
		CreatedByID: actor.ID,
		CreatedAt:   s.now(),
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create calendar event: %w", err)
	}
	logger.Info("Service: calendar event created", zap.String("event_id", e.ID.String()))

	details := audit.Map(map[string]audit.Value{
		calendar.FieldTitle:     audit.String(e.Title),
		calendar.FieldEventType: audit.String(string(e.EventType)),
	})
	return e, record(ctx, s.audit, actor.ID, audit.ActionCreateCalendarEvent, audit.EntityCalendarEvent, e.ID.String(), details)
}

func (s *CalendarService) FindAll(ctx context.Context, from, to *time.Time) ([]*calendar.Event, error) {
	r, err := queryRange(from, to)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.List(ctx, calendar.Filter{Range: r})
	if err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}
	return events, nil
}

func (s *CalendarService) FindByType(ctx context.Context, eventType calendar.EventType, from, to *time.Time) ([]*calendar.Event, error) {
	if !eventType.Valid() {
		return nil, NewValidationError(calendar.FieldEventType, "must be one of DEVELOPMENT, DELIVERY, MILESTONE, BLOCKER")
	}
	r, err := queryRange(from, to)
	if err != nil {
		return nil, err
	}
	events, err := s.repo.List(ctx, calendar.Filter{Range: r, EventType: eventType})
	if err != nil {
		return nil, fmt.Errorf("list calendar events: %w", err)
	}
	return events, nil
}

func (s *CalendarService) FindOne(ctx context.Context, id uuid.UUID) (*calendar.Event, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NewNotFound(ResourceCalendarEvent, id.String())
		}
		return nil, fmt.Errorf("get calendar event: %w", err)
	}
	return e, nil
}

func (s *CalendarService) Update(ctx context.Context, actor user.Actor, id uuid.UUID, p calendar.Patch) (*calendar.Event, error) {
	if d := policy.RequireAdmin(actor); !d.Allowed {
		return nil, NewForbidden(d)
	}
	if field, err := p.Validate(); err != nil {
		return nil, NewValidationError(field, err.Error())
	}
	e, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}

	before := e.Clone()
	p.Apply(e)
	if err := checkEventDates(e.StartDate, e.EndDate); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, e); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, NewNotFound(ResourceCalendarEvent, id.String())
		case errors.Is(err, repo.ErrVersionConflict):
			return nil, NewVersionConflict(ResourceCalendarEvent, id.String(), before.Version)
		}
		return nil, fmt.Errorf("update calendar event: %w", err)
	}

	diff := calendar.Diff(before, e, p.Fields())
	return e, record(ctx, s.audit, actor.ID, audit.ActionUpdateCalendarEvent, audit.EntityCalendarEvent, id.String(), diff)
}

func (s *CalendarService) Remove(ctx context.Context, actor user.Actor, id uuid.UUID) error {
	if d := policy.RequireAdmin(actor); !d.Allowed {
		return NewForbidden(d)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFound(ResourceCalendarEvent, id.String())
		}
		return fmt.Errorf("delete calendar event: %w", err)
	}
	logger.Info("Service: calendar event deleted", zap.String("event_id", id.String()))
	return record(ctx, s.audit, actor.ID, audit.ActionDeleteCalendarEvent, audit.EntityCalendarEvent, id.String(), audit.Null())
}
