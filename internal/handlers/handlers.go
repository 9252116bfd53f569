package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"devboard/internal/auth"
	"devboard/internal/logger"
	"devboard/internal/metrics"
	"devboard/internal/middleware"
	"devboard/internal/models/audit"
	"devboard/internal/models/calendar"
	"devboard/internal/models/task"
	"devboard/internal/models/user"
	"devboard/internal/service"

	"github.com/google/uuid"
)

type TaskService interface {
	Create(ctx context.Context, actor user.Actor, in service.CreateTaskInput) (*task.Task, error)
	FindAll(ctx context.Context, actor user.Actor) ([]*task.Task, error)
	FindOne(ctx context.Context, actor user.Actor, id uuid.UUID) (*task.Task, error)
	Update(ctx context.Context, actor user.Actor, id uuid.UUID, p task.Patch) (*task.Task, error)
	Remove(ctx context.Context, actor user.Actor, id uuid.UUID) error
	GetTasksByStatus(ctx context.Context, actor user.Actor) (task.Stats, error)
	GetUpcomingTasks(ctx context.Context, actor user.Actor, windowDays int) ([]*task.Task, error)
}

type CalendarService interface {
	Create(ctx context.Context, actor user.Actor, in service.CreateEventInput) (*calendar.Event, error)
	FindAll(ctx context.Context, from, to *time.Time) ([]*calendar.Event, error)
	FindByType(ctx context.Context, eventType calendar.EventType, from, to *time.Time) ([]*calendar.Event, error)
	FindOne(ctx context.Context, id uuid.UUID) (*calendar.Event, error)
	Update(ctx context.Context, actor user.Actor, id uuid.UUID, p calendar.Patch) (*calendar.Event, error)
	Remove(ctx context.Context, actor user.Actor, id uuid.UUID) error
}

type UserService interface {
	Create(ctx context.Context, actor user.Actor, in service.CreateUserInput) (*user.User, error)
	FindAll(ctx context.Context) ([]*user.User, error)
	FindOne(ctx context.Context, id uuid.UUID) (*user.User, error)
	Me(ctx context.Context, actor user.Actor) (*user.User, error)
	Update(ctx context.Context, actor user.Actor, id uuid.UUID, p user.Patch) (*user.User, error)
	Remove(ctx context.Context, actor user.Actor, id uuid.UUID) error
}

type AuditService interface {
	FindAll(ctx context.Context, actor user.Actor, skip, take int) ([]*audit.Entry, error)
	FindByEntity(ctx context.Context, actor user.Actor, entityType, entityID string) ([]*audit.Entry, error)
	FindByUser(ctx context.Context, actor user.Actor, userID uuid.UUID, skip, take int) ([]*audit.Entry, error)
	FindByAction(ctx context.Context, actor user.Actor, action string, skip, take int) ([]*audit.Entry, error)
	Export(ctx context.Context, actor user.Actor, w io.Writer, format service.ExportFormat, filter audit.Filter) error
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (auth.TokenPair, error)
	Logout(ctx context.Context, claims *auth.Claims)
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler serves every HTTP endpoint. Routes are attached by NewRouter.
type Handler struct {
	tasks    TaskService
	calendar CalendarService
	users    UserService
	audit    AuditService
	auth     AuthService
	health   HealthChecker
	metrics  *metrics.Metrics
}

type Services struct {
	Tasks    TaskService
	Calendar CalendarService
	Users    UserService
	Audit    AuditService
	Auth     AuthService
	Health   HealthChecker
}

// New builds a Handler. m may be nil, in which case audit failures are only logged.
func New(s Services, m *metrics.Metrics) *Handler {
	return &Handler{
		tasks:    s.Tasks,
		calendar: s.Calendar,
		users:    s.Users,
		audit:    s.Audit,
		auth:     s.Auth,
		health:   s.Health,
		metrics:  m,
	}
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (user.Actor, bool) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		responseWithError(w, http.StatusUnauthorized, service.CodeUnauthorized, "authentication required", nil)
	}
	return actor, ok
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.HealthCheck(ctx); err != nil {
			logger.Error("HTTP: health check failed", err)
			status, code = "unavailable", http.StatusServiceUnavailable
		}
	}
	responseWithPayload(w, code,
		toPayload("status", status),
		toPayload("service", "devboard"),
	)
}

// list keeps empty collections encoded as [] rather than null.
func list[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
