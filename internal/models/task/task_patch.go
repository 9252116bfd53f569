package task

import (
	"fmt"
	"strings"
	"time"

	"devboard/internal/models/audit"
	"devboard/internal/models/patch"

	"github.com/google/uuid"
)

// Field names as they appear on the wire and in audit diffs.
const (
	FieldTitle            = "title"
	FieldDescription      = "description"
	FieldPriority         = "priority"
	FieldStatus           = "status"
	FieldDueDate          = "dueDate"
	FieldAssigneeID       = "assigneeId"
	FieldDevStartDate     = "devStartDate"
	FieldDevEndDate       = "devEndDate"
	FieldTestingStartDate = "testingStartDate"
)

// Patch is a partial update. Only keys present in the request are Set.
type Patch struct {
	Title            patch.Field[string]    `json:"title"`
	Description      patch.Field[string]    `json:"description"`
	Priority         patch.Field[Priority]  `json:"priority"`
	Status           patch.Field[Status]    `json:"status"`
	DueDate          patch.Field[time.Time] `json:"dueDate"`
	AssigneeID       patch.Field[uuid.UUID] `json:"assigneeId"`
	DevStartDate     patch.Field[time.Time] `json:"devStartDate"`
	DevEndDate       patch.Field[time.Time] `json:"devEndDate"`
	TestingStartDate patch.Field[time.Time] `json:"testingStartDate"`
}

// Fields lists the keys present in the patch, in a stable order.
func (p Patch) Fields() []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(p.Title.Set, FieldTitle)
	add(p.Description.Set, FieldDescription)
	add(p.Priority.Set, FieldPriority)
	add(p.Status.Set, FieldStatus)
	add(p.DueDate.Set, FieldDueDate)
	add(p.AssigneeID.Set, FieldAssigneeID)
	add(p.DevStartDate.Set, FieldDevStartDate)
	add(p.DevEndDate.Set, FieldDevEndDate)
	add(p.TestingStartDate.Set, FieldTestingStartDate)
	return fields
}

// Validate rejects nulls for required fields and unknown enum values.
// It returns the offending field and a reason.
func (p Patch) Validate() (string, error) {
	if p.Title.Set && (!p.Title.Valid || strings.TrimSpace(p.Title.Value) == "") {
		return FieldTitle, fmt.Errorf("must be a non-empty string")
	}
	if p.Priority.Set && (!p.Priority.Valid || !p.Priority.Value.Valid()) {
		return FieldPriority, fmt.Errorf("must be one of HIGH, MEDIUM, LOW")
	}
	if p.Status.Set && (!p.Status.Valid || !p.Status.Value.Valid()) {
		return FieldStatus, fmt.Errorf("must be one of PENDING, IN_PROGRESS, COMPLETED")
	}
	return "", nil
}

// Apply writes every present field onto t.
func (p Patch) Apply(t *Task) {
	if p.Title.Set {
		t.Title = p.Title.Value
	}
	if p.Description.Set {
		t.Description = p.Description.Ptr()
	}
	if p.Priority.Set {
		t.Priority = p.Priority.Value
	}
	if p.Status.Set {
		t.Status = p.Status.Value
	}
	if p.DueDate.Set {
		t.DueDate = p.DueDate.Ptr()
	}
	if p.AssigneeID.Set {
		t.AssigneeID = p.AssigneeID.Ptr()
	}
	if p.DevStartDate.Set {
		t.DevStartDate = p.DevStartDate.Ptr()
	}
	if p.DevEndDate.Set {
		t.DevEndDate = p.DevEndDate.Ptr()
	}
	if p.TestingStartDate.Set {
		t.TestingStartDate = p.TestingStartDate.Ptr()
	}
}

// FieldValue returns the audit representation of one field of t.
func FieldValue(t *Task, field string) audit.Value {
	switch field {
	case FieldTitle:
		return audit.String(t.Title)
	case FieldDescription:
		if t.Description == nil {
			return audit.Null()
		}
		return audit.String(*t.Description)
	case FieldPriority:
		return audit.String(string(t.Priority))
	case FieldStatus:
		return audit.String(string(t.Status))
	case FieldDueDate:
		return audit.Time(t.DueDate)
	case FieldAssigneeID:
		if t.AssigneeID == nil {
			return audit.Null()
		}
		return audit.String(t.AssigneeID.String())
	case FieldDevStartDate:
		return audit.Time(t.DevStartDate)
	case FieldDevEndDate:
		return audit.Time(t.DevEndDate)
	case FieldTestingStartDate:
		return audit.Time(t.TestingStartDate)
	}
	return audit.Null()
}

// Diff maps every requested field whose value changed to {from, to}.
func Diff(before, after *Task, fields []string) audit.Value {
	changes := map[string]audit.Value{}
	for _, f := range fields {
		from, to := FieldValue(before, f), FieldValue(after, f)
		if !from.Equal(to) {
			changes[f] = audit.Change(from, to)
		}
	}
	return audit.Map(changes)
}
