package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"devboard/internal/logger"
	"devboard/internal/models/audit"
	"devboard/internal/models/user"
	"devboard/internal/policy"
	repo "devboard/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 6

// redacted stands in for password values in audit details.
const redacted = "[changed]"

type CreateUserInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      user.Role
	IsActive  *bool
}

type UserService struct {
	repo       UserRepository
	audit      AuditLogger
	bcryptCost int
	now        func() time.Time
}

func NewUserService(repo UserRepository, audit AuditLogger, bcryptCost int) *UserService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{repo: repo, audit: audit, bcryptCost: bcryptCost, now: time.Now}
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return NewValidationError("email", "must be a valid email address")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return NewValidationError("password", fmt.Sprintf("must be at least %d characters", MinPasswordLength))
	}
	return nil
}

func (s *UserService) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func (s *UserService) Create(ctx context.Context, actor user.Actor, in CreateUserInput) (*user.User, error) {
	if d := policy.RequireAdmin(actor); !d.Allowed {
		return nil, NewForbidden(d)
	}
	u, err := s.newUser(in)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrConflict) {
			return nil, NewConflict(ResourceUser, fmt.Sprintf("email %s is already registered", u.Email))
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	logger.Info("Service: user created", zap.String("user_id", u.ID.String()), zap.String("role", string(u.Role)))

	details := audit.Map(map[string]audit.Value{
		"email": audit.String(u.Email),
		"role":  audit.String(string(u.Role)),
	})
	return u, record(ctx, s.audit, actor.ID, audit.ActionCreateUser, audit.EntityUser, u.ID.String(), details)
}

// newUser validates in and builds the record with a hashed password.
func (s *UserService) newUser(in CreateUserInput) (*user.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validateEmail(in.Email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.FirstName) == "" {
		return nil, NewValidationError("firstName", "must be a non-empty string")
	}
	if strings.TrimSpace(in.LastName) == "" {
		return nil, NewValidationError("lastName", "must be a non-empty string")
	}
	if in.Role == "" {
		in.Role = user.RoleDeveloper
	}
	if !in.Role.Valid() {
		return nil, NewValidationError("role", "must be one of ADMIN, DEVELOPER")
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	return &user.User{
		ID:           uuid.New(),
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         in.Role,
		IsActive:     active,
		CreatedAt:    s.now(),
	}, nil
}

func (s *UserService) FindAll(ctx context.Context) ([]*user.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *UserService) FindOne(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NewNotFound(ResourceUser, id.String())
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserService) Me(ctx context.Context, actor user.Actor) (*user.User, error) {
	return s.FindOne(ctx, actor.ID)
}

func (s *UserService) Update(ctx context.Context, actor user.Actor, id uuid.UUID, p user.Patch) (*user.User, error) {
	if d := policy.RequireAdmin(actor); !d.Allowed {
		return nil, NewForbidden(d)
	}
	if p.Email != nil {
		trimmed := strings.TrimSpace(*p.Email)
		p.Email = &trimmed
		if err := validateEmail(trimmed); err != nil {
			return nil, err
		}
	}
	if p.Password != nil {
		if err := validatePassword(*p.Password); err != nil {
			return nil, err
		}
	}
	if p.FirstName != nil && strings.TrimSpace(*p.FirstName) == "" {
		return nil, NewValidationError("firstName", "must be a non-empty string")
	}
	if p.LastName != nil && strings.TrimSpace(*p.LastName) == "" {
		return nil, NewValidationError("lastName", "must be a non-empty string")
	}
	if p.Role != nil && !p.Role.Valid() {
		return nil, NewValidationError("role", "must be one of ADMIN, DEVELOPER")
	}

	u, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	before := *u

	changes := map[string]audit.Value{}
	change := func(field string, from, to audit.Value) {
		if !from.Equal(to) {
			changes[field] = audit.Change(from, to)
		}
	}
	if p.Email != nil {
		u.Email = *p.Email
		change("email", audit.String(before.Email), audit.String(u.Email))
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
		change("firstName", audit.String(before.FirstName), audit.String(u.FirstName))
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
		change("lastName", audit.String(before.LastName), audit.String(u.LastName))
	}
	if p.Role != nil {
		u.Role = *p.Role
		change("role", audit.String(string(before.Role)), audit.String(string(u.Role)))
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
		change("isActive", audit.Bool(before.IsActive), audit.Bool(u.IsActive))
	}
	if p.Password != nil {
		if u.PasswordHash, err = s.hash(*p.Password); err != nil {
			return nil, err
		}
		changes["password"] = audit.String(redacted)
	}

	if err := s.repo.Update(ctx, u); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return nil, NewNotFound(ResourceUser, id.String())
		case errors.Is(err, repo.ErrConflict):
			return nil, NewConflict(ResourceUser, fmt.Sprintf("email %s is already registered", u.Email))
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, record(ctx, s.audit, actor.ID, audit.ActionUpdateUser, audit.EntityUser, id.String(), audit.Map(changes))
}

func (s *UserService) Remove(ctx context.Context, actor user.Actor, id uuid.UUID) error {
	if d := policy.RequireAdmin(actor); !d.Allowed {
		return NewForbidden(d)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repo.ErrNotFound):
			return NewNotFound(ResourceUser, id.String())
		case errors.Is(err, repo.ErrConflict):
			return NewConflict(ResourceUser, "user still owns tasks or calendar events; deactivate it instead")
		}
		return fmt.Errorf("delete user: %w", err)
	}
	logger.Info("Service: user deleted", zap.String("user_id", id.String()))
	return record(ctx, s.audit, actor.ID, audit.ActionDeleteUser, audit.EntityUser, id.String(), audit.Null())
}

// EnsureUser creates in unless its email is already registered. It backs the seed
// command, runs without an actor and writes no audit entry.
func (s *UserService) EnsureUser(ctx context.Context, in CreateUserInput) (*user.User, bool, error) {
	if existing, err := s.repo.GetByEmail(ctx, strings.TrimSpace(in.Email)); err == nil {
		return existing, false, nil
	} else if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, fmt.Errorf("get user by email: %w", err)
	}
	u, err := s.newUser(in)
	if err != nil {
		return nil, false, err
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	return u, true, nil
}
