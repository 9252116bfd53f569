package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"devboard/internal/models/user"
	repo "devboard/internal/repository"

	"github.com/google/uuid"
)

// Referrer is a store whose rows point at users. It mirrors the foreign keys of the
// SQL schema: creators block deletion, assignees are cleared.
type Referrer interface {
	ReferencesUser(id uuid.UUID) bool
	ReleaseUser(id uuid.UUID)
}

type UserStorage struct {
	storage   map[uuid.UUID]*user.User
	mtx       sync.RWMutex
	referrers []Referrer
}

func NewUserStorage(referrers ...Referrer) *UserStorage {
	return &UserStorage{storage: make(map[uuid.UUID]*user.User), referrers: referrers}
}

func (s *UserStorage) emailTaken(email string, except uuid.UUID) bool {
	for id, u := range s.storage {
		if id != except && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (s *UserStorage) Create(ctx context.Context, u *user.User) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.emailTaken(u.Email, uuid.Nil) {
		return repo.ErrConflict
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	c := *u
	s.storage[u.ID] = &c
	return nil
}

func (s *UserStorage) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	u, ok := s.storage[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s *UserStorage) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	for _, u := range s.storage {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *UserStorage) List(ctx context.Context) ([]*user.User, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := make([]*user.User, 0, len(s.storage))
	for _, u := range s.storage {
		c := *u
		res = append(res, &c)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (s *UserStorage) Update(ctx context.Context, u *user.User) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[u.ID]; !ok {
		return repo.ErrNotFound
	}
	if s.emailTaken(u.Email, u.ID) {
		return repo.ErrConflict
	}
	now := time.Now()
	u.UpdatedAt = &now
	c := *u
	s.storage[u.ID] = &c
	return nil
}

func (s *UserStorage) Delete(ctx context.Context, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[id]; !ok {
		return repo.ErrNotFound
	}
	for _, r := range s.referrers {
		if r.ReferencesUser(id) {
			return repo.ErrConflict
		}
	}
	delete(s.storage, id)
	for _, r := range s.referrers {
		r.ReleaseUser(id)
	}
	return nil
}
