package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"devboard/internal/models/calendar"
	repo "devboard/internal/repository"

	"github.com/google/uuid"
)

type CalendarStorage struct {
	storage map[uuid.UUID]*calendar.Event
	mtx     sync.RWMutex
}

func NewCalendarStorage() *CalendarStorage {
	return &CalendarStorage{storage: make(map[uuid.UUID]*calendar.Event)}
}

func (s *CalendarStorage) Create(ctx context.Context, e *calendar.Event) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.Version = 1
	s.storage[e.ID] = e.Clone()
	return nil
}

func (s *CalendarStorage) GetByID(ctx context.Context, id uuid.UUID) (*calendar.Event, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	e, ok := s.storage[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return e.Clone(), nil
}

func (s *CalendarStorage) List(ctx context.Context, filter calendar.Filter) ([]*calendar.Event, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []*calendar.Event{}
	for _, e := range s.storage {
		if filter.Matches(e) {
			res = append(res, e.Clone())
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].StartDate.Equal(res[j].StartDate) {
			return res[i].StartDate.Before(res[j].StartDate)
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

func (s *CalendarStorage) Update(ctx context.Context, e *calendar.Event) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.storage[e.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if existing.Version != e.Version {
		return repo.ErrVersionConflict
	}
	now := time.Now()
	e.UpdatedAt = &now
	e.Version++
	s.storage[e.ID] = e.Clone()
	return nil
}

func (s *CalendarStorage) Delete(ctx context.Context, id uuid.UUID) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.storage[id]; !ok {
		return repo.ErrNotFound
	}
	delete(s.storage, id)
	return nil
}

func (s *CalendarStorage) ReferencesUser(id uuid.UUID) bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	for _, e := range s.storage {
		if e.CreatedByID == id {
			return true
		}
	}
	return false
}

// ReleaseUser is a no-op: events only reference their creator.
func (s *CalendarStorage) ReleaseUser(id uuid.UUID) {}
