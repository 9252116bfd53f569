package audit

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionLogin               = "LOGIN"
	ActionCreateTask          = "CREATE_TASK"
	ActionUpdateTask          = "UPDATE_TASK"
	ActionDeleteTask          = "DELETE_TASK"
	ActionCreateCalendarEvent = "CREATE_CALENDAR_EVENT"
	ActionUpdateCalendarEvent = "UPDATE_CALENDAR_EVENT"
	ActionDeleteCalendarEvent = "DELETE_CALENDAR_EVENT"
	ActionCreateUser          = "CREATE_USER"
	ActionUpdateUser          = "UPDATE_USER"
	ActionDeleteUser          = "DELETE_USER"
)

const (
	EntityTask          = "Task"
	EntityCalendarEvent = "CalendarEvent"
	EntityUser          = "User"
)

// Entry is one immutable audit record.
type Entry struct {
	ID         uuid.UUID `json:"id" db:"id"`
	UserID     uuid.UUID `json:"userId" db:"user_id"`
	Action     string    `json:"action" db:"action"`
	EntityType string    `json:"entityType,omitempty" db:"entity_type"`
	EntityID   string    `json:"entityId,omitempty" db:"entity_id"`
	Details    Value     `json:"details" db:"details"`
	IPAddress  string    `json:"ipAddress,omitempty" db:"ip_address"`
	UserAgent  string    `json:"userAgent,omitempty" db:"user_agent"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// Filter selects entries. Zero fields do not restrict.
// Results are always newest first.
type Filter struct {
	UserID     *uuid.UUID
	Action     string
	EntityType string
	EntityID   string
	Skip       int
	Take       int
}

// Matches reports whether e satisfies every set field of f (pagination excluded).
func (f Filter) Matches(e *Entry) bool {
	if f.UserID != nil && e.UserID != *f.UserID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	return true
}
