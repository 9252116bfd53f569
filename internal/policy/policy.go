// Package policy decides what an actor may do to a resource.
// Every function here is pure: it reads its arguments and nothing else.
package policy

import (
	"devboard/internal/models/task"
	"devboard/internal/models/user"
)

type Reason string

const (
	ReasonNone              Reason = ""
	ReasonNotOwner          Reason = "NotOwner"
	ReasonFieldNotPermitted Reason = "FieldNotPermitted"
	ReasonInsufficientRole  Reason = "InsufficientRole"
)

// developerFields is what a DEVELOPER may change on a task assigned to them.
var developerFields = map[string]bool{task.FieldStatus: true}

// Decision is the outcome of a check. On Allow, Fields holds the permitted subset
// of the requested fields; on Deny, Reason says why and Fields holds the offending ones, if any.
type Decision struct {
	Allowed bool
	Fields  []string
	Reason  Reason
}

func allow(fields []string) Decision {
	return Decision{Allowed: true, Fields: fields}
}

func deny(reason Reason, fields ...string) Decision {
	return Decision{Reason: reason, Fields: fields}
}

// DecideTaskUpdate checks a partial update touching requested on t.
func DecideTaskUpdate(actor user.Actor, t *task.Task, requested []string) Decision {
	if actor.IsAdmin() {
		return allow(requested)
	}
	if !t.IsAssignedTo(actor.ID) {
		return deny(ReasonNotOwner)
	}
	var rejected []string
	for _, f := range requested {
		if !developerFields[f] {
			rejected = append(rejected, f)
		}
	}
	if len(rejected) > 0 {
		return deny(ReasonFieldNotPermitted, rejected...)
	}
	return allow(requested)
}

func DecideTaskDelete(actor user.Actor) Decision {
	return RequireAdmin(actor)
}

func DecideTaskCreate(actor user.Actor) Decision {
	return RequireAdmin(actor)
}

func DecideTaskRead(actor user.Actor, t *task.Task) Decision {
	if actor.IsAdmin() || t.IsAssignedTo(actor.ID) {
		return allow(nil)
	}
	return deny(ReasonNotOwner)
}

// TaskVisibility narrows a listing to what actor may see.
func TaskVisibility(actor user.Actor, f task.Filter) task.Filter {
	if !actor.IsAdmin() {
		id := actor.ID
		f.AssigneeID = &id
	}
	return f
}

// RequireAdmin is the flat role check used for calendar and user mutations and audit reads.
func RequireAdmin(actor user.Actor) Decision {
	if actor.IsAdmin() {
		return allow(nil)
	}
	return deny(ReasonInsufficientRole)
}
