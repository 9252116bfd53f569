package calendar

import (
	"fmt"
	"strings"
	"time"

	"devboard/internal/models/audit"
	"devboard/internal/models/patch"

	"github.com/google/uuid"
)

type EventType string

const (
	TypeDevelopment EventType = "DEVELOPMENT"
	TypeDelivery    EventType = "DELIVERY"
	TypeMilestone   EventType = "MILESTONE"
	TypeBlocker     EventType = "BLOCKER"
)

func (t EventType) Valid() bool {
	switch t {
	case TypeDevelopment, TypeDelivery, TypeMilestone, TypeBlocker:
		return true
	}
	return false
}

type Event struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description *string    `json:"description,omitempty" db:"description"`
	StartDate   time.Time  `json:"startDate" db:"start_date"`
	EndDate     *time.Time `json:"endDate,omitempty" db:"end_date"`
	EventType   EventType  `json:"eventType" db:"event_type"`
	IsBlocked   bool       `json:"isBlocked" db:"is_blocked"`
	CreatedByID uuid.UUID  `json:"createdById" db:"created_by_id"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty" db:"updated_at"`
	Version     int        `json:"version" db:"version"`
}

// End is the effective end of the event; a missing end date means a single instant.
func (e *Event) End() time.Time {
	if e.EndDate == nil {
		return e.StartDate
	}
	return *e.EndDate
}

func (e *Event) Clone() *Event {
	c := *e
	if e.Description != nil {
		d := *e.Description
		c.Description = &d
	}
	if e.EndDate != nil {
		d := *e.EndDate
		c.EndDate = &d
	}
	return &c
}

// Range is a closed query interval.
type Range struct {
	From time.Time
	To   time.Time
}

// Overlaps matches when the event starts inside r, ends inside r, or spans r entirely.
func (r Range) Overlaps(e *Event) bool {
	start, end := e.StartDate, e.End()
	if !start.Before(r.From) && !start.After(r.To) {
		return true
	}
	if !end.Before(r.From) && !end.After(r.To) {
		return true
	}
	return !start.After(r.From) && !end.Before(r.To)
}

type Filter struct {
	Range     *Range
	EventType EventType
}

func (f Filter) Matches(e *Event) bool {
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	if f.Range != nil && !f.Range.Overlaps(e) {
		return false
	}
	return true
}

const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStartDate   = "startDate"
	FieldEndDate     = "endDate"
	FieldEventType   = "eventType"
	FieldIsBlocked   = "isBlocked"
)

type Patch struct {
	Title       patch.Field[string]    `json:"title"`
	Description patch.Field[string]    `json:"description"`
	StartDate   patch.Field[time.Time] `json:"startDate"`
	EndDate     patch.Field[time.Time] `json:"endDate"`
	EventType   patch.Field[EventType] `json:"eventType"`
	IsBlocked   patch.Field[bool]      `json:"isBlocked"`
}

func (p Patch) Fields() []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(p.Title.Set, FieldTitle)
	add(p.Description.Set, FieldDescription)
	add(p.StartDate.Set, FieldStartDate)
	add(p.EndDate.Set, FieldEndDate)
	add(p.EventType.Set, FieldEventType)
	add(p.IsBlocked.Set, FieldIsBlocked)
	return fields
}

func (p Patch) Validate() (string, error) {
	if p.Title.Set && (!p.Title.Valid || strings.TrimSpace(p.Title.Value) == "") {
		return FieldTitle, fmt.Errorf("must be a non-empty string")
	}
	if p.StartDate.Set && !p.StartDate.Valid {
		return FieldStartDate, fmt.Errorf("cannot be null")
	}
	if p.EventType.Set && (!p.EventType.Valid || !p.EventType.Value.Valid()) {
		return FieldEventType, fmt.Errorf("must be one of DEVELOPMENT, DELIVERY, MILESTONE, BLOCKER")
	}
	if p.IsBlocked.Set && !p.IsBlocked.Valid {
		return FieldIsBlocked, fmt.Errorf("cannot be null")
	}
	return "", nil
}

func (p Patch) Apply(e *Event) {
	if p.Title.Set {
		e.Title = p.Title.Value
	}
	if p.Description.Set {
		e.Description = p.Description.Ptr()
	}
	if p.StartDate.Set {
		e.StartDate = p.StartDate.Value
	}
	if p.EndDate.Set {
		e.EndDate = p.EndDate.Ptr()
	}
	if p.EventType.Set {
		e.EventType = p.EventType.Value
	}
	if p.IsBlocked.Set {
		e.IsBlocked = p.IsBlocked.Value
	}
}

func FieldValue(e *Event, field string) audit.Value {
	switch field {
	case FieldTitle:
		return audit.String(e.Title)
	case FieldDescription:
		if e.Description == nil {
			return audit.Null()
		}
		return audit.String(*e.Description)
	case FieldStartDate:
		return audit.Time(&e.StartDate)
	case FieldEndDate:
		return audit.Time(e.EndDate)
	case FieldEventType:
		return audit.String(string(e.EventType))
	case FieldIsBlocked:
		return audit.Bool(e.IsBlocked)
	}
	return audit.Null()
}

func Diff(before, after *Event, fields []string) audit.Value {
	changes := map[string]audit.Value{}
	for _, f := range fields {
		from, to := FieldValue(before, f), FieldValue(after, f)
		if !from.Equal(to) {
			changes[f] = audit.Change(from, to)
		}
	}
	return audit.Map(changes)
}
