package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/PabloGalante/prepwise-api/internal/domain"
)

// InterviewStore is a simple in-memory implementation of domain.InterviewStore.
// It is NOT persistent and is only suitable for development / local mode.
type InterviewStore struct {
	mu         sync.RWMutex
	interviews map[domain.InterviewID]*domain.Interview
}

func NewInterviewStore() *InterviewStore {
	return &InterviewStore{
		interviews: make(map[domain.InterviewID]*domain.Interview),
	}
}

func (s *InterviewStore) CreateInterview(_ context.Context, interview *domain.Interview) error {
	if interview == nil || interview.ID == "" {
		return errors.New("interview id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.interviews[interview.ID]; exists {
		return errors.New("interview already exists")
	}

	cp := *interview
	s.interviews[interview.ID] = &cp
	return nil
}

func (s *InterviewStore) GetInterview(_ context.Context, id domain.InterviewID) (*domain.Interview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	interview, ok := s.interviews[id]
	if !ok {
		return nil, fmt.Errorf("interview %s: %w", id, domain.ErrNotFound)
	}

	cp := *interview
	return &cp, nil
}

func (s *InterviewStore) ListInterviewsByUser(_ context.Context, userID domain.UserID, limit int) ([]*domain.Interview, error) {
	return s.list(limit, func(i *domain.Interview) bool {
		return i.UserID == userID
	}), nil
}

func (s *InterviewStore) ListLatestInterviews(_ context.Context, userID domain.UserID, limit int) ([]*domain.Interview, error) {
	return s.list(limit, func(i *domain.Interview) bool {
		return i.Finalized && i.UserID != userID
	}), nil
}

// list returns matching interviews, newest first. limit <= 0 returns all.
func (s *InterviewStore) list(limit int, match func(*domain.Interview) bool) []*domain.Interview {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*domain.Interview{}
	for _, i := range s.interviews {
		if match(i) {
			cp := *i
			out = append(out, &cp)
		}
	}

	sort.Slice(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
