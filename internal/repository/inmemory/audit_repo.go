package inmemory

import (
	"context"
	"sync"
	"time"

	"devboard/internal/models/audit"
)

// AuditStorage is append-only: entries are kept in insertion order and never modified.
type AuditStorage struct {
	entries []*audit.Entry
	mtx     sync.RWMutex
}

func NewAuditStorage() *AuditStorage {
	return &AuditStorage{}
}

func (s *AuditStorage) Append(ctx context.Context, e *audit.Entry) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	c := *e
	s.entries = append(s.entries, &c)
	return nil
}

func (s *AuditStorage) List(ctx context.Context, filter audit.Filter) ([]*audit.Entry, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	res := []*audit.Entry{}
	skipped := 0
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if !filter.Matches(e) {
			continue
		}
		if skipped < filter.Skip {
			skipped++
			continue
		}
		if filter.Take > 0 && len(res) >= filter.Take {
			break
		}
		c := *e
		res = append(res, &c)
	}
	return res, nil
}
