package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"devboard/internal/models/audit"
	"devboard/internal/models/calendar"
	"devboard/internal/models/task"
	"devboard/internal/models/user"
	repo "devboard/internal/repository"
	"devboard/internal/repository/postgres"
	"devboard/internal/repository/repotest"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type PostgresTestSuite struct {
	suite.Suite
	container  testcontainers.Container
	storage    *postgres.Storage
	ctx        context.Context
	connString string
}

func (s *PostgresTestSuite) SetupSuite() {
	s.ctx = context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(s.ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T(), err)
	s.container = container

	host, err := container.Host(s.ctx)
	require.NoError(s.T(), err)
	port, err := container.MappedPort(s.ctx, "5432")
	require.NoError(s.T(), err)

	s.connString = fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port())

	s.storage, err = postgres.New(s.ctx, s.connString, postgres.PoolLimits{MaxConns: 4})
	require.NoError(s.T(), err)
	require.NoError(s.T(), s.storage.Migrate(s.ctx))
}

func (s *PostgresTestSuite) TearDownSuite() {
	if s.storage != nil {
		s.storage.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresTestSuite) SetupTest() {
	conn, err := pgx.Connect(s.ctx, s.connString)
	require.NoError(s.T(), err)
	defer conn.Close(s.ctx)

	_, err = conn.Exec(s.ctx, "TRUNCATE tasks, calendar_events, audit_logs, users CASCADE")
	require.NoError(s.T(), err)
}

func (s *PostgresTestSuite) newUser(email string, role user.Role) *user.User {
	u := &user.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Test",
		LastName:     "User",
		Role:         role,
		IsActive:     true,
	}
	require.NoError(s.T(), s.storage.Users().Create(s.ctx, u))
	return u
}

func (s *PostgresTestSuite) TestHealthCheck() {
	assert.NoError(s.T(), s.storage.HealthCheck(s.ctx))
}

func (s *PostgresTestSuite) TestMigrateIsIdempotent() {
	assert.NoError(s.T(), s.storage.Migrate(s.ctx))
}

func (s *PostgresTestSuite) TestUsers() {
	users := s.storage.Users()
	u := s.newUser("Alice@Example.com", user.RoleAdmin)
	assert.False(s.T(), u.CreatedAt.IsZero())

	got, err := users.GetByEmail(s.ctx, "alice@example.com")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), u.ID, got.ID)
	assert.Equal(s.T(), user.RoleAdmin, got.Role)

	dup := &user.User{ID: uuid.New(), Email: "ALICE@example.com", PasswordHash: "x", Role: user.RoleDeveloper, IsActive: true}
	assert.ErrorIs(s.T(), users.Create(s.ctx, dup), repo.ErrConflict)

	got.FirstName = "Alicia"
	require.NoError(s.T(), users.Update(s.ctx, got))
	assert.NotNil(s.T(), got.UpdatedAt)

	_, err = users.GetByID(s.ctx, uuid.New())
	assert.ErrorIs(s.T(), err, repo.ErrNotFound)

	require.NoError(s.T(), users.Delete(s.ctx, u.ID))
	assert.ErrorIs(s.T(), users.Delete(s.ctx, u.ID), repo.ErrNotFound)
}

func (s *PostgresTestSuite) TestUserDeleteHonoursReferences() {
	repotest.UserDelete(s.T(), s.ctx, repotest.Stores{
		Users:    s.storage.Users(),
		Tasks:    s.storage.Tasks(),
		Calendar: s.storage.Calendar(),
	})
}

func (s *PostgresTestSuite) TestTaskVersioning() {
	admin := s.newUser("admin@example.com", user.RoleAdmin)
	tasks := s.storage.Tasks()

	t := &task.Task{
		UUID:      uuid.New(),
		Title:     "Ship it",
		Priority:  task.PriorityHigh,
		Status:    task.StatusPending,
		CreatorID: admin.ID,
	}
	require.NoError(s.T(), tasks.Create(s.ctx, t))
	assert.Equal(s.T(), 1, t.Version)

	stale := t.Clone()

	t.Status = task.StatusInProgress
	require.NoError(s.T(), tasks.Update(s.ctx, t))
	assert.Equal(s.T(), 2, t.Version)

	stale.Title = "Overwrite"
	assert.ErrorIs(s.T(), tasks.Update(s.ctx, stale), repo.ErrVersionConflict)

	missing := &task.Task{UUID: uuid.New(), Title: "x", Priority: task.PriorityLow, Status: task.StatusPending, Version: 1}
	assert.ErrorIs(s.T(), tasks.Update(s.ctx, missing), repo.ErrNotFound)

	require.NoError(s.T(), tasks.Delete(s.ctx, t.UUID))
	_, err := tasks.GetByID(s.ctx, t.UUID)
	assert.ErrorIs(s.T(), err, repo.ErrNotFound)
}

func (s *PostgresTestSuite) TestTaskListOrderAndFilter() {
	admin := s.newUser("admin@example.com", user.RoleAdmin)
	dev := s.newUser("dev@example.com", user.RoleDeveloper)
	tasks := s.storage.Tasks()

	soon := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	later := soon.Add(48 * time.Hour)

	mk := func(title string, p task.Priority, due *time.Time, assignee *uuid.UUID) {
		require.NoError(s.T(), tasks.Create(s.ctx, &task.Task{
			UUID: uuid.New(), Title: title, Priority: p, Status: task.StatusPending,
			DueDate: due, AssigneeID: assignee, CreatorID: admin.ID,
		}))
	}
	mk("low", task.PriorityLow, &soon, nil)
	mk("high-later", task.PriorityHigh, &later, &dev.ID)
	mk("high-soon", task.PriorityHigh, &soon, &dev.ID)
	mk("high-none", task.PriorityHigh, nil, nil)

	all, err := tasks.List(s.ctx, task.Filter{})
	require.NoError(s.T(), err)
	require.Len(s.T(), all, 4)
	assert.Equal(s.T(), []string{"high-soon", "high-later", "high-none", "low"},
		[]string{all[0].Title, all[1].Title, all[2].Title, all[3].Title})

	mine, err := tasks.List(s.ctx, task.Filter{AssigneeID: &dev.ID})
	require.NoError(s.T(), err)
	assert.Len(s.T(), mine, 2)

	to := soon.Add(time.Hour)
	due, err := tasks.List(s.ctx, task.Filter{DueFrom: &soon, DueTo: &to, SortByDue: true})
	require.NoError(s.T(), err)
	assert.Len(s.T(), due, 2)
}

func (s *PostgresTestSuite) TestCalendarOverlap() {
	admin := s.newUser("admin@example.com", user.RoleAdmin)
	cal := s.storage.Calendar()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	end := base.Add(10 * 24 * time.Hour)
	spanning := &calendar.Event{
		ID: uuid.New(), Title: "sprint", StartDate: base, EndDate: &end,
		EventType: calendar.TypeDevelopment, CreatedByID: admin.ID,
	}
	single := &calendar.Event{
		ID: uuid.New(), Title: "release", StartDate: base.Add(20 * 24 * time.Hour),
		EventType: calendar.TypeDelivery, CreatedByID: admin.ID,
	}
	require.NoError(s.T(), cal.Create(s.ctx, spanning))
	require.NoError(s.T(), cal.Create(s.ctx, single))

	r := &calendar.Range{From: base.Add(2 * 24 * time.Hour), To: base.Add(3 * 24 * time.Hour)}
	got, err := cal.List(s.ctx, calendar.Filter{Range: r})
	require.NoError(s.T(), err)
	require.Len(s.T(), got, 1)
	assert.Equal(s.T(), spanning.ID, got[0].ID)

	byType, err := cal.List(s.ctx, calendar.Filter{EventType: calendar.TypeDelivery})
	require.NoError(s.T(), err)
	require.Len(s.T(), byType, 1)
	assert.Equal(s.T(), single.ID, byType[0].ID)

	stale := spanning.Clone()
	spanning.IsBlocked = true
	require.NoError(s.T(), cal.Update(s.ctx, spanning))
	assert.ErrorIs(s.T(), cal.Update(s.ctx, stale), repo.ErrVersionConflict)
}

func (s *PostgresTestSuite) TestAuditAppendAndList() {
	actor := uuid.New()
	log := s.storage.Audit()

	for i, action := range []string{audit.ActionCreateTask, audit.ActionUpdateTask, audit.ActionDeleteTask} {
		require.NoError(s.T(), log.Append(s.ctx, &audit.Entry{
			ID:         uuid.New(),
			UserID:     actor,
			Action:     action,
			EntityType: audit.EntityTask,
			EntityID:   "t-1",
			Details:    audit.Map(map[string]audit.Value{"n": audit.Int(i)}),
		}))
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(s.T(), log.Append(s.ctx, &audit.Entry{ID: uuid.New(), UserID: uuid.New(), Action: audit.ActionLogin}))

	entries, err := log.List(s.ctx, audit.Filter{UserID: &actor})
	require.NoError(s.T(), err)
	require.Len(s.T(), entries, 3)
	assert.Equal(s.T(), audit.ActionDeleteTask, entries[0].Action)
	n, ok := entries[0].Details.Get("n")
	require.True(s.T(), ok)
	assert.Equal(s.T(), float64(2), n.AsNumber())

	page, err := log.List(s.ctx, audit.Filter{EntityType: audit.EntityTask, Skip: 1, Take: 1})
	require.NoError(s.T(), err)
	require.Len(s.T(), page, 1)
	assert.Equal(s.T(), audit.ActionUpdateTask, page[0].Action)

	login, err := log.List(s.ctx, audit.Filter{Action: audit.ActionLogin})
	require.NoError(s.T(), err)
	require.Len(s.T(), login, 1)
	assert.True(s.T(), login[0].Details.IsNull())
}

func TestPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}
	suite.Run(t, new(PostgresTestSuite))
}
