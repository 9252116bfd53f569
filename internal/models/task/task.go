package task

import (
	"time"

	"github.com/google/uuid"
)

type Task struct {
	UUID             uuid.UUID  `json:"id" db:"id"`
	Title            string     `json:"title" db:"title"`
	Description      *string    `json:"description,omitempty" db:"description"`
	Priority         Priority   `json:"priority" db:"priority"`
	Status           Status     `json:"status" db:"status"`
	DueDate          *time.Time `json:"dueDate,omitempty" db:"due_date"`
	AssigneeID       *uuid.UUID `json:"assigneeId,omitempty" db:"assignee_id"`
	CreatorID        uuid.UUID  `json:"creatorId" db:"creator_id"`
	DevStartDate     *time.Time `json:"devStartDate,omitempty" db:"dev_start_date"`
	DevEndDate       *time.Time `json:"devEndDate,omitempty" db:"dev_end_date"`
	TestingStartDate *time.Time `json:"testingStartDate,omitempty" db:"testing_start_date"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty" db:"updated_at,omitempty"`
	Version          int        `json:"version" db:"version"`
}

type Status string
type Priority string

const StatusPending Status = "PENDING"
const StatusInProgress Status = "IN_PROGRESS"
const StatusCompleted Status = "COMPLETED"

const PriorityHigh Priority = "HIGH"
const PriorityMedium Priority = "MEDIUM"
const PriorityLow Priority = "LOW"

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusInProgress || s == StatusCompleted
}

func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Rank orders priorities HIGH first, as lists are sorted.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	}
	return 3
}

// IsAssignedTo reports whether id is the current assignee.
func (t *Task) IsAssignedTo(id uuid.UUID) bool {
	return t.AssigneeID != nil && *t.AssigneeID == id
}

// Clone returns a deep copy so callers can compare pre- and post-update state.
func (t *Task) Clone() *Task {
	c := *t
	c.Description = clonePtr(t.Description)
	c.DueDate = clonePtr(t.DueDate)
	c.AssigneeID = clonePtr(t.AssigneeID)
	c.DevStartDate = clonePtr(t.DevStartDate)
	c.DevEndDate = clonePtr(t.DevEndDate)
	c.TestingStartDate = clonePtr(t.TestingStartDate)
	c.UpdatedAt = clonePtr(t.UpdatedAt)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Stats is the per-status breakdown of a visible task set.
type Stats struct {
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
	Total      int `json:"total"`
}

// Filter restricts a task listing. Nil fields do not restrict.
type Filter struct {
	AssigneeID *uuid.UUID
	DueFrom    *time.Time
	DueTo      *time.Time
	NotStatus  Status
	SortByDue  bool
}

func (f Filter) Matches(t *Task) bool {
	if f.AssigneeID != nil && !t.IsAssignedTo(*f.AssigneeID) {
		return false
	}
	if f.DueFrom != nil || f.DueTo != nil {
		if t.DueDate == nil {
			return false
		}
		if f.DueFrom != nil && t.DueDate.Before(*f.DueFrom) {
			return false
		}
		if f.DueTo != nil && t.DueDate.After(*f.DueTo) {
			return false
		}
	}
	if f.NotStatus != "" && t.Status == f.NotStatus {
		return false
	}
	return true
}

// Less is the listing order: by due date when SortByDue, otherwise
// priority, then due date (nulls last), then newest first.
func (f Filter) Less(a, b *Task) bool {
	if !f.SortByDue {
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() < b.Priority.Rank()
		}
	}
	switch {
	case a.DueDate != nil && b.DueDate == nil:
		return true
	case a.DueDate == nil && b.DueDate != nil:
		return false
	case a.DueDate != nil && b.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
		return a.DueDate.Before(*b.DueDate)
	}
	return a.CreatedAt.After(b.CreatedAt)
}
