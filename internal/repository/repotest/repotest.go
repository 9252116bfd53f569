// Package repotest holds behaviour shared by every repository backend, so the
// in-memory and Postgres stores are held to the same expectations.
package repotest

import (
	"context"
	"testing"
	"time"

	"devboard/internal/models/calendar"
	"devboard/internal/models/task"
	"devboard/internal/models/user"
	repo "devboard/internal/repository"
	"devboard/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Stores struct {
	Users    service.UserRepository
	Tasks    service.TaskRepository
	Calendar service.CalendarRepository
}

// UserDelete checks that deleting a user clears the tasks assigned to it and is
// refused with repo.ErrConflict while the user still created tasks or events.
func UserDelete(t *testing.T, ctx context.Context, s Stores) {
	t.Helper()

	mk := func(email string, role user.Role) *user.User {
		u := &user.User{ID: uuid.New(), Email: email, PasswordHash: "x", Role: role, IsActive: true}
		require.NoError(t, s.Users.Create(ctx, u))
		return u
	}
	admin := mk("creator@example.com", user.RoleAdmin)
	planner := mk("planner@example.com", user.RoleAdmin)
	dev := mk("assignee@example.com", user.RoleDeveloper)

	tk := &task.Task{
		UUID:       uuid.New(),
		Title:      "Owned task",
		Priority:   task.PriorityMedium,
		Status:     task.StatusPending,
		CreatorID:  admin.ID,
		AssigneeID: &dev.ID,
	}
	require.NoError(t, s.Tasks.Create(ctx, tk))
	require.NoError(t, s.Calendar.Create(ctx, &calendar.Event{
		ID:          uuid.New(),
		Title:       "Release",
		StartDate:   time.Now().UTC().Truncate(time.Second),
		EventType:   calendar.TypeDelivery,
		CreatedByID: planner.ID,
	}))

	require.NoError(t, s.Users.Delete(ctx, dev.ID))
	_, err := s.Users.GetByID(ctx, dev.ID)
	assert.ErrorIs(t, err, repo.ErrNotFound)
	got, err := s.Tasks.GetByID(ctx, tk.UUID)
	require.NoError(t, err)
	assert.Nil(t, got.AssigneeID, "assignee is cleared with the user")

	assert.ErrorIs(t, s.Users.Delete(ctx, admin.ID), repo.ErrConflict)
	assert.ErrorIs(t, s.Users.Delete(ctx, planner.ID), repo.ErrConflict)
	for _, id := range []uuid.UUID{admin.ID, planner.ID} {
		_, err := s.Users.GetByID(ctx, id)
		assert.NoError(t, err, "refused delete keeps the user")
	}

	assert.ErrorIs(t, s.Users.Delete(ctx, uuid.New()), repo.ErrNotFound)
}
