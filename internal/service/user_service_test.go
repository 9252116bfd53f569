package service_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"devboard/internal/auth"
	"devboard/internal/models/audit"
	"devboard/internal/models/user"
	"devboard/internal/repository/inmemory"
	"devboard/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type userFixture struct {
	users    *inmemory.UserStorage
	auditLog *inmemory.AuditStorage
	audit    *service.AuditService
	svc      *service.UserService
	admin    user.Actor
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	f := &userFixture{users: inmemory.NewUserStorage(), auditLog: inmemory.NewAuditStorage()}
	f.audit = service.NewAuditService(f.auditLog)
	f.svc = service.NewUserService(f.users, f.audit, bcrypt.MinCost)

	admin, created, err := f.svc.EnsureUser(context.Background(), service.CreateUserInput{
		Email: "admin@example.com", Password: "secret1", FirstName: "Ada", LastName: "Admin", Role: user.RoleAdmin,
	})
	require.NoError(t, err)
	require.True(t, created)
	f.admin = admin.Actor()
	return f
}

func TestUserService_CreateAndConflict(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	u, err := f.svc.Create(ctx, f.admin, service.CreateUserInput{
		Email: "dev@example.com", Password: "hunter22", FirstName: "Dev", LastName: "One",
	})
	require.NoError(t, err)
	assert.Equal(t, user.RoleDeveloper, u.Role)
	assert.True(t, u.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("hunter22")))

	_, err = f.svc.Create(ctx, f.admin, service.CreateUserInput{
		Email: "DEV@example.com", Password: "hunter22", FirstName: "Dev", LastName: "Two",
	})
	assertCode(t, err, service.CodeConflict)

	entries, err := f.auditLog.List(ctx, audit.Filter{Action: audit.ActionCreateUser})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	email, _ := entries[0].Details.Get("email")
	assert.Equal(t, "dev@example.com", email.AsString())
}

func TestUserService_Validation(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	dev := user.Actor{ID: uuid.New(), Role: user.RoleDeveloper}

	tests := []struct {
		name  string
		actor user.Actor
		in    service.CreateUserInput
		code  string
	}{
		{"developer cannot create", dev, service.CreateUserInput{Email: "a@b.co", Password: "123456", FirstName: "a", LastName: "b"}, service.CodeForbidden},
		{"bad email", f.admin, service.CreateUserInput{Email: "nope", Password: "123456", FirstName: "a", LastName: "b"}, service.CodeValidation},
		{"short password", f.admin, service.CreateUserInput{Email: "a@b.co", Password: "123", FirstName: "a", LastName: "b"}, service.CodeValidation},
		{"missing name", f.admin, service.CreateUserInput{Email: "a@b.co", Password: "123456", LastName: "b"}, service.CodeValidation},
		{"bad role", f.admin, service.CreateUserInput{Email: "a@b.co", Password: "123456", FirstName: "a", LastName: "b", Role: "ROOT"}, service.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tt.actor, tt.in)
			assertCode(t, err, tt.code)
		})
	}
}

func TestUserService_UpdateRedactsPassword(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	u, err := f.svc.Create(ctx, f.admin, service.CreateUserInput{
		Email: "dev@example.com", Password: "hunter22", FirstName: "Dev", LastName: "One",
	})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, f.admin, u.ID, user.Patch{
		Password:  ptr("n3w-password"),
		FirstName: ptr("Dev"),
		IsActive:  ptr(false),
	})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte("n3w-password")))

	entries, err := f.auditLog.List(ctx, audit.Filter{Action: audit.ActionUpdateUser})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	details := entries[0].Details
	assert.Equal(t, []string{"isActive", "password"}, details.Keys())
	pw, _ := details.Get("password")
	assert.Equal(t, "[changed]", pw.AsString())
	assert.NotContains(t, details.String(), "n3w-password")
}

func TestUserService_ReadsAndRemove(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	me, err := f.svc.Me(ctx, f.admin)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", me.Email)

	u, err := f.svc.Create(ctx, f.admin, service.CreateUserInput{
		Email: "dev@example.com", Password: "hunter22", FirstName: "Dev", LastName: "One",
	})
	require.NoError(t, err)

	all, err := f.svc.FindAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	err = f.svc.Remove(ctx, u.Actor(), f.admin.ID)
	assertCode(t, err, service.CodeForbidden)

	require.NoError(t, f.svc.Remove(ctx, f.admin, u.ID))
	_, err = f.svc.FindOne(ctx, u.ID)
	assertCode(t, err, service.CodeNotFound)
}

func TestUserService_RemoveCreatorConflicts(t *testing.T) {
	ctx := context.Background()
	tasks := inmemory.NewTaskStorage()
	users := inmemory.NewUserStorage(tasks, inmemory.NewCalendarStorage())
	auditSvc := service.NewAuditService(inmemory.NewAuditStorage())
	svc := service.NewUserService(users, auditSvc, bcrypt.MinCost)
	taskSvc := service.NewTaskService(tasks, users, auditSvc)

	admin, _, err := svc.EnsureUser(ctx, service.CreateUserInput{
		Email: "admin@example.com", Password: "secret1", FirstName: "Ada", LastName: "Admin", Role: user.RoleAdmin,
	})
	require.NoError(t, err)
	other, err := svc.Create(ctx, admin.Actor(), service.CreateUserInput{
		Email: "root@example.com", Password: "secret2", FirstName: "Root", LastName: "Admin", Role: user.RoleAdmin,
	})
	require.NoError(t, err)
	dev, err := svc.Create(ctx, admin.Actor(), service.CreateUserInput{
		Email: "dev@example.com", Password: "hunter22", FirstName: "Dev", LastName: "One",
	})
	require.NoError(t, err)

	created, err := taskSvc.Create(ctx, admin.Actor(), service.CreateTaskInput{Title: "Ship it", AssigneeID: &dev.ID})
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, admin.Actor(), dev.ID))
	got, err := taskSvc.FindOne(ctx, admin.Actor(), created.UUID)
	require.NoError(t, err)
	assert.Nil(t, got.AssigneeID)

	err = svc.Remove(ctx, other.Actor(), admin.ID)
	assertCode(t, err, service.CodeConflict)
}

func TestUserService_EnsureUserSkipsExisting(t *testing.T) {
	f := newUserFixture(t)

	existing, created, err := f.svc.EnsureUser(context.Background(), service.CreateUserInput{
		Email: "ADMIN@example.com", Password: "whatever", FirstName: "x", LastName: "y",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, f.admin.ID, existing.ID)
}

func newAuthFixture(t *testing.T) (*service.AuthService, *userFixture, *auth.MemoryRevoker) {
	t.Helper()
	f := newUserFixture(t)
	issuer, err := auth.NewIssuer("test-secret", time.Minute, time.Hour)
	require.NoError(t, err)
	revoker := auth.NewMemoryRevoker()
	return service.NewAuthService(f.users, issuer, revoker, f.audit), f, revoker
}

func TestAuthService_Login(t *testing.T) {
	svc, f, _ := newAuthFixture(t)
	ctx := service.WithClientInfo(context.Background(), service.ClientInfo{IPAddress: "127.0.0.1", UserAgent: "test"})

	res, err := svc.Login(ctx, "admin@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, f.admin.ID, res.User.ID)

	entries, err := f.auditLog.List(ctx, audit.Filter{Action: audit.ActionLogin})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "127.0.0.1", entries[0].IPAddress)
	assert.Equal(t, "test", entries[0].UserAgent)

	_, err = svc.Login(ctx, "admin@example.com", "wrong")
	assertCode(t, err, service.CodeUnauthorized)
	_, err = svc.Login(ctx, "ghost@example.com", "secret1")
	assertCode(t, err, service.CodeUnauthorized)
}

func TestAuthService_InactiveUserRejected(t *testing.T) {
	svc, f, _ := newAuthFixture(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, "admin@example.com", "secret1")
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, f.admin, f.admin.ID, user.Patch{IsActive: ptr(false)})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "admin@example.com", "secret1")
	assertCode(t, err, service.CodeUnauthorized)
	_, _, err = svc.Authenticate(ctx, res.AccessToken)
	assertCode(t, err, service.CodeUnauthorized)
}

func TestAuthService_RefreshRotates(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, "admin@example.com", "secret1")
	require.NoError(t, err)

	pair, err := svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, pair.RefreshToken)

	_, err = svc.Refresh(ctx, res.RefreshToken)
	assertCode(t, err, service.CodeUnauthorized)

	_, err = svc.Refresh(ctx, res.AccessToken)
	assertCode(t, err, service.CodeUnauthorized)
}

func TestAuthService_ConcurrentRefreshIssuesOnePair(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, "admin@example.com", "secret1")
	require.NoError(t, err)

	const callers = 10
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refresh(ctx, res.RefreshToken)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assertCode(t, err, service.CodeUnauthorized)
	}
	assert.Equal(t, 1, succeeded)
}

func TestAuthService_LogoutRevokesAccessToken(t *testing.T) {
	svc, f, _ := newAuthFixture(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, "admin@example.com", "secret1")
	require.NoError(t, err)

	u, claims, err := svc.Authenticate(ctx, res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, u.ID)

	svc.Logout(ctx, claims)
	_, _, err = svc.Authenticate(ctx, res.AccessToken)
	assertCode(t, err, service.CodeUnauthorized)
}

func TestAuditService_FindersRequireAdmin(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	dev := user.Actor{ID: uuid.New(), Role: user.RoleDeveloper}

	_, err := f.audit.FindAll(ctx, dev, 0, 0)
	assertCode(t, err, service.CodeForbidden)
	_, err = f.audit.FindByEntity(ctx, dev, audit.EntityTask, "x")
	assertCode(t, err, service.CodeForbidden)
	_, err = f.audit.FindByUser(ctx, dev, dev.ID, 0, 0)
	assertCode(t, err, service.CodeForbidden)
	_, err = f.audit.FindByAction(ctx, dev, audit.ActionLogin, 0, 0)
	assertCode(t, err, service.CodeForbidden)
}

func TestAuditService_Pagination(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, f.audit.Log(ctx, f.admin.ID, audit.ActionUpdateTask, audit.EntityTask, "t", audit.Int(i)))
	}

	page, err := f.audit.FindAll(ctx, f.admin, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, float64(3), page[0].Details.AsNumber())
	assert.Equal(t, float64(2), page[1].Details.AsNumber())

	byAction, err := f.audit.FindByAction(ctx, f.admin, audit.ActionUpdateTask, 0, 0)
	require.NoError(t, err)
	assert.Len(t, byAction, 5)

	byUser, err := f.audit.FindByUser(ctx, f.admin, f.admin.ID, 0, 3)
	require.NoError(t, err)
	assert.Len(t, byUser, 3)

	_, err = f.audit.FindAll(ctx, f.admin, -1, 0)
	assertCode(t, err, service.CodeValidation)
}

func TestAuditService_FindByActionMatchesExactly(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	require.NoError(t, f.audit.Log(ctx, f.admin.ID, "Import_Batch", "", "", audit.Null()))
	require.NoError(t, f.audit.Log(ctx, f.admin.ID, "IMPORT_BATCH", "", "", audit.Null()))

	mixed, err := f.audit.FindByAction(ctx, f.admin, "Import_Batch", 0, 0)
	require.NoError(t, err)
	require.Len(t, mixed, 1)
	assert.Equal(t, "Import_Batch", mixed[0].Action)

	lower, err := f.audit.FindByAction(ctx, f.admin, "import_batch", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, lower)
}

func TestPage(t *testing.T) {
	skip, take, err := service.Page(0, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, skip)
	assert.Equal(t, service.DefaultTake, take)

	_, take, err = service.Page(0, 5000)
	require.NoError(t, err)
	assert.Equal(t, service.MaxTake, take)

	_, _, err = service.Page(0, -1)
	assertCode(t, err, service.CodeValidation)
}

func TestAuditService_Export(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()
	require.NoError(t, f.audit.Log(ctx, f.admin.ID, audit.ActionDeleteTask, audit.EntityTask, "t-1", audit.Null()))
	require.NoError(t, f.audit.Log(ctx, f.admin.ID, audit.ActionCreateTask, audit.EntityTask, "t-2",
		audit.Map(map[string]audit.Value{"title": audit.String("a, \"quoted\" title")})))

	var buf bytes.Buffer
	require.NoError(t, f.audit.Export(ctx, f.admin, &buf, service.ExportCSV, audit.Filter{}))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "id", rows[0][0])
	assert.Equal(t, audit.ActionCreateTask, rows[1][3])
	assert.Equal(t, `{"title":"a, \"quoted\" title"}`, rows[1][8])

	buf.Reset()
	require.NoError(t, f.audit.Export(ctx, f.admin, &buf, service.ExportNDJSON, audit.Filter{}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)

	buf.Reset()
	require.NoError(t, f.audit.Export(ctx, f.admin, &buf, service.ExportJSON, audit.Filter{EntityID: "t-1"}))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, audit.ActionDeleteTask, decoded[0]["action"])

	_, err = service.ParseExportFormat("xml")
	assertCode(t, err, service.CodeValidation)
}
