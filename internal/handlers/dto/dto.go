package dto

import (
	"time"

	"devboard/internal/models/calendar"
	"devboard/internal/models/task"
	"devboard/internal/models/user"
	"devboard/internal/service"

	"github.com/google/uuid"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type CreateTaskRequest struct {
	Title            string        `json:"title"`
	Description      *string       `json:"description"`
	Priority         task.Priority `json:"priority"`
	Status           task.Status   `json:"status"`
	DueDate          *time.Time    `json:"dueDate"`
	AssigneeID       *uuid.UUID    `json:"assigneeId"`
	DevStartDate     *time.Time    `json:"devStartDate"`
	DevEndDate       *time.Time    `json:"devEndDate"`
	TestingStartDate *time.Time    `json:"testingStartDate"`
}

func (r CreateTaskRequest) ToInput() service.CreateTaskInput {
	return service.CreateTaskInput{
		Title:            r.Title,
		Description:      r.Description,
		Priority:         r.Priority,
		Status:           r.Status,
		DueDate:          r.DueDate,
		AssigneeID:       r.AssigneeID,
		DevStartDate:     r.DevStartDate,
		DevEndDate:       r.DevEndDate,
		TestingStartDate: r.TestingStartDate,
	}
}

type CreateEventRequest struct {
	Title       string             `json:"title"`
	Description *string            `json:"description"`
	StartDate   time.Time          `json:"startDate"`
	EndDate     *time.Time         `json:"endDate"`
	EventType   calendar.EventType `json:"eventType"`
	IsBlocked   bool               `json:"isBlocked"`
}

func (r CreateEventRequest) ToInput() service.CreateEventInput {
	return service.CreateEventInput{
		Title:       r.Title,
		Description: r.Description,
		StartDate:   r.StartDate,
		EndDate:     r.EndDate,
		EventType:   r.EventType,
		IsBlocked:   r.IsBlocked,
	}
}

type CreateUserRequest struct {
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      user.Role `json:"role"`
	IsActive  *bool     `json:"isActive"`
}

func (r CreateUserRequest) ToInput() service.CreateUserInput {
	return service.CreateUserInput{
		Email:     r.Email,
		Password:  r.Password,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Role:      r.Role,
		IsActive:  r.IsActive,
	}
}
