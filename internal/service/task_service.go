package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"devboard/internal/logger"
	"devboard/internal/models/audit"
	"devboard/internal/models/task"
	"devboard/internal/models/user"
	"devboard/internal/policy"
	repo "devboard/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultUpcomingDays = 7

type CreateTaskInput struct {
	Title            string
	Description      *string
	Priority         task.Priority
	Status           task.Status
	DueDate          *time.Time
	AssigneeID       *uuid.UUID
	DevStartDate     *time.Time
	DevEndDate       *time.Time
	TestingStartDate *time.Time
}

type TaskService struct {
	repo  TaskRepository
	users UserLookup
	audit AuditLogger
	now   func() time.Time
}

func NewTaskService(repo TaskRepository, users UserLookup, audit AuditLogger) *TaskService {
	return &TaskService{
		repo:  repo,
		users: users,
		audit: audit,
		now:   time.Now,
	}
}

func (s *TaskService) checkAssignee(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.users.GetByID(ctx, *id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewValidationError(task.FieldAssigneeID, "user does not exist")
		}
		return fmt.Errorf("get assignee: %w", err)
	}
	return nil
}

// Create stores a new task owned by actor. A non-nil *AuditFailure may accompany a created task.
func (s *TaskService) Create(ctx context.Context, actor user.Actor, in CreateTaskInput) (*task.Task, error) {
	if d := policy.DecideTaskCreate(actor); !d.Allowed {
		return nil, NewForbidden(d)
	}

	if strings.TrimSpace(in.Title) == "" {
		return nil, NewValidationError(task.FieldTitle, "must be a non-empty string")
	}
	if in.Priority == "" {
		in.Priority = task.PriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, NewValidationError(task.FieldPriority, "must be one of HIGH, MEDIUM, LOW")
	}
	if in.Status == "" {
		in.Status = task.StatusPending
	}
	if !in.Status.Valid() {
		return nil, NewValidationError(task.FieldStatus, "must be one of PENDING, IN_PROGRESS, COMPLETED")
	}
	if err := s.checkAssignee(ctx, in.AssigneeID); err != nil {
		return nil, err
	}

	t := &task.Task{
		UUID:             uuid.New(),
		Title:            in.Title,
		Description:      in.Description,
		Priority:         in.Priority,
		Status:           in.Status,
		DueDate:          in.DueDate,
		AssigneeID:       in.AssigneeID,
		CreatorID:        actor.ID,
		DevStartDate:     in.DevStartDate,
		DevEndDate:       in.DevEndDate,
		TestingStartDate: in.TestingStartDate,
		CreatedAt:        s.now(),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	logger.Info("Service: task created", zap.String("task_id", t.UUID.String()), zap.String("actor_id", actor.ID.String()))

	details := audit.Map(map[string]audit.Value{
		task.FieldTitle:    audit.String(t.Title),
		task.FieldPriority: audit.String(string(t.Priority)),
	})
	return t, record(ctx, s.audit, actor.ID, audit.ActionCreateTask, audit.EntityTask, t.UUID.String(), details)
}

func (s *TaskService) list(ctx context.Context, actor user.Actor, filter task.Filter) ([]*task.Task, error) {
	tasks, err := s.repo.List(ctx, policy.TaskVisibility(actor, filter))
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// FindAll returns every task for ADMIN and only assigned tasks for DEVELOPER.
func (s *TaskService) FindAll(ctx context.Context, actor user.Actor) ([]*task.Task, error) {
	return s.list(ctx, actor, task.Filter{})
}

func (s *TaskService) FindOne(ctx context.Context, actor user.Actor, id uuid.UUID) (*task.Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Info("Service: task not found", zap.String("target_id", id.String()))
			return nil, NewNotFound(ResourceTask, id.String())
		}
		return nil, fmt.Errorf("get task: %w", err)
	}
	if d := policy.DecideTaskRead(actor, t); !d.Allowed {
		return nil, NewForbidden(d)
	}
	return t, nil
}

// Update applies p to the task. The write only succeeds against the version that was read,
// so the recorded diff always describes the transition that actually happened.
func (s *TaskService) Update(ctx context.Context, actor user.Actor, id uuid.UUID, p task.Patch) (*task.Task, error) {
	t, err := s.FindOne(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	fields := p.Fields()
	if d := policy.DecideTaskUpdate(actor, t, fields); !d.Allowed {
		logger.Warn("Service: task update denied",
			zap.String("task_id", id.String()),
			zap.String("actor_id", actor.ID.String()),
			zap.String("reason", string(d.Reason)),
			zap.Strings("fields", d.Fields))
		return nil, NewForbidden(d)
	}
	if field, err := p.Validate(); err != nil {
		return nil, NewValidationError(field, err.Error())
	}
	if p.AssigneeID.Set {
		if err := s.checkAssignee(ctx, p.AssigneeID.Ptr()); err != nil {
			return nil, err
		}
	}

	before := t.Clone()
	p.Apply(t)
	if err := s.repo.Update(ctx, t); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, NewNotFound(ResourceTask, id.String())
		case errors.Is(err, repo.ErrVersionConflict):
			return nil, NewVersionConflict(ResourceTask, id.String(), before.Version)
		}
		return nil, fmt.Errorf("update task: %w", err)
	}

	diff := task.Diff(before, t, fields)
	return t, record(ctx, s.audit, actor.ID, audit.ActionUpdateTask, audit.EntityTask, id.String(), diff)
}

func (s *TaskService) Remove(ctx context.Context, actor user.Actor, id uuid.UUID) error {
	if d := policy.DecideTaskDelete(actor); !d.Allowed {
		return NewForbidden(d)
	}
	if _, err := s.FindOne(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFound(ResourceTask, id.String())
		}
		return fmt.Errorf("delete task: %w", err)
	}
	logger.Info("Service: task deleted", zap.String("task_id", id.String()), zap.String("actor_id", actor.ID.String()))
	return record(ctx, s.audit, actor.ID, audit.ActionDeleteTask, audit.EntityTask, id.String(), audit.Null())
}

func (s *TaskService) GetTasksByStatus(ctx context.Context, actor user.Actor) (task.Stats, error) {
	tasks, err := s.list(ctx, actor, task.Filter{})
	if err != nil {
		return task.Stats{}, err
	}
	var stats task.Stats
	for _, t := range tasks {
		switch t.Status {
		case task.StatusPending:
			stats.Pending++
		case task.StatusInProgress:
			stats.InProgress++
		case task.StatusCompleted:
			stats.Completed++
		}
	}
	stats.Total = len(tasks)
	return stats, nil
}

// GetUpcomingTasks returns unfinished visible tasks due within the next windowDays, soonest first.
func (s *TaskService) GetUpcomingTasks(ctx context.Context, actor user.Actor, windowDays int) ([]*task.Task, error) {
	if windowDays < 0 {
		return nil, NewValidationError("days", "must not be negative")
	}
	from := s.now()
	to := from.AddDate(0, 0, windowDays)
	return s.list(ctx, actor, task.Filter{
		DueFrom:   &from,
		DueTo:     &to,
		NotStatus: task.StatusCompleted,
		SortByDue: true,
	})
}

// DueWithin lists every unfinished task due in [from, to]. It is not scoped to an actor
// and backs the due-soon reminder worker.
func (s *TaskService) DueWithin(ctx context.Context, from, to time.Time) ([]*task.Task, error) {
	tasks, err := s.repo.List(ctx, task.Filter{
		DueFrom:   &from,
		DueTo:     &to,
		NotStatus: task.StatusCompleted,
		SortByDue: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list due tasks: %w", err)
	}
	return tasks, nil
}
