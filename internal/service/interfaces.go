package service

import (
	"context"

	"devboard/internal/models/audit"
	"devboard/internal/models/calendar"
	"devboard/internal/models/task"
	"devboard/internal/models/user"

	"github.com/google/uuid"
)

type TaskRepository interface {
	Create(context.Context, *task.Task) error
	GetByID(context.Context, uuid.UUID) (*task.Task, error)
	Update(context.Context, *task.Task) error
	Delete(context.Context, uuid.UUID) error
	List(context.Context, task.Filter) ([]*task.Task, error)
}

type CalendarRepository interface {
	Create(context.Context, *calendar.Event) error
	GetByID(context.Context, uuid.UUID) (*calendar.Event, error)
	Update(context.Context, *calendar.Event) error
	Delete(context.Context, uuid.UUID) error
	List(context.Context, calendar.Filter) ([]*calendar.Event, error)
}

type UserRepository interface {
	Create(context.Context, *user.User) error
	GetByID(context.Context, uuid.UUID) (*user.User, error)
	GetByEmail(context.Context, string) (*user.User, error)
	Update(context.Context, *user.User) error
	Delete(context.Context, uuid.UUID) error
	List(context.Context) ([]*user.User, error)
}

type AuditRepository interface {
	Append(context.Context, *audit.Entry) error
	List(context.Context, audit.Filter) ([]*audit.Entry, error)
}

// AuditLogger records one entry per successful mutation.
type AuditLogger interface {
	Log(ctx context.Context, actorID uuid.UUID, action, entityType, entityID string, details audit.Value) error
}

// UserLookup is the read side of the user directory used for assignee checks.
type UserLookup interface {
	GetByID(context.Context, uuid.UUID) (*user.User, error)
}
