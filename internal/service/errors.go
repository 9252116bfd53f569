package service

import (
	"fmt"

	"devboard/internal/policy"
)

const (
	CodeNotFound        = "NOT_FOUND"
	CodeForbidden       = "FORBIDDEN"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeValidation      = "VALIDATION_ERROR"
	CodeVersionConflict = "VERSION_CONFLICT"
	CodeConflict        = "CONFLICT"
)

type Resource string

const (
	ResourceTask          Resource = "task"
	ResourceCalendarEvent Resource = "calendar event"
	ResourceUser          Resource = "user"
)

type BusinessError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

type Detail struct {
	Key     string
	Payload any
}

func (b *BusinessError) Error() string {
	if b.Err != nil {
		return fmt.Sprintf("[%s] %s: %s", b.Code, b.Message, b.Err.Error())
	}
	return fmt.Sprintf("[%s] %s", b.Code, b.Message)
}

func (b *BusinessError) Unwrap() error {
	return b.Err
}

func ToDetail(key string, payload any) Detail {
	return Detail{Key: key, Payload: payload}
}

func NewBusinessError(code string, message string, details ...Detail) *BusinessError {
	busErr := &BusinessError{
		Code:    code,
		Message: message,
		Details: make(map[string]any),
	}
	for _, detail := range details {
		busErr.Details[detail.Key] = detail.Payload
	}
	return busErr
}

func NewNotFound(resource Resource, id string) *BusinessError {
	return NewBusinessError(CodeNotFound, fmt.Sprintf("%s %s not found", resource, id),
		ToDetail("resource", resource),
		ToDetail("id", id),
	)
}

func NewValidationError(field, reason string) *BusinessError {
	return NewBusinessError(CodeValidation, fmt.Sprintf("invalid value for '%s': %s", field, reason),
		ToDetail("field", field),
		ToDetail("reason", reason),
	)
}

// NewForbidden turns a denied policy decision into a business error.
func NewForbidden(d policy.Decision) *BusinessError {
	details := []Detail{ToDetail("reason", d.Reason)}
	if len(d.Fields) > 0 {
		details = append(details, ToDetail("fields", d.Fields))
	}
	return NewBusinessError(CodeForbidden, forbiddenMessage(d.Reason), details...)
}

func forbiddenMessage(reason policy.Reason) string {
	switch reason {
	case policy.ReasonNotOwner:
		return "you are not assigned to this task"
	case policy.ReasonFieldNotPermitted:
		return "you may only change the status of this task"
	case policy.ReasonInsufficientRole:
		return "this action requires the ADMIN role"
	}
	return "forbidden"
}

func NewUnauthorized(message string) *BusinessError {
	return NewBusinessError(CodeUnauthorized, message)
}

func NewConflict(resource Resource, message string) *BusinessError {
	return NewBusinessError(CodeConflict, message, ToDetail("resource", resource))
}

func NewVersionConflict(resource Resource, id string, version int) *BusinessError {
	return NewBusinessError(CodeVersionConflict,
		fmt.Sprintf("%s %s was modified concurrently, reload and retry", resource, id),
		ToDetail("resource", resource),
		ToDetail("id", id),
		ToDetail("expected_version", version),
	)
}

// AuditFailure is returned alongside a committed result when the audit write failed.
// The mutation it describes has already happened and is not rolled back.
type AuditFailure struct {
	Action   string
	EntityID string
	Err      error
}

func (a *AuditFailure) Error() string {
	return fmt.Sprintf("audit %s %s: %v", a.Action, a.EntityID, a.Err)
}

func (a *AuditFailure) Unwrap() error {
	return a.Err
}
