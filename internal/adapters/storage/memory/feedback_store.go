package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/PabloGalante/prepwise-api/internal/domain"
)

type feedbackKey struct {
	interviewID domain.InterviewID
	userID      domain.UserID
}

// FeedbackStore keeps the latest feedback per (interview, user).
type FeedbackStore struct {
	mu       sync.RWMutex
	feedback map[feedbackKey]*domain.Feedback
}

func NewFeedbackStore() *FeedbackStore {
	return &FeedbackStore{
		feedback: make(map[feedbackKey]*domain.Feedback),
	}
}

func (s *FeedbackStore) CreateFeedback(_ context.Context, fb *domain.Feedback) error {
	if fb == nil || fb.ID == "" {
		return errors.New("feedback id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *fb
	s.feedback[feedbackKey{fb.InterviewID, fb.UserID}] = &cp
	return nil
}

func (s *FeedbackStore) GetFeedbackByInterview(_ context.Context, interviewID domain.InterviewID, userID domain.UserID) (*domain.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fb, ok := s.feedback[feedbackKey{interviewID, userID}]
	if !ok {
		return nil, fmt.Errorf("feedback for interview %s: %w", interviewID, domain.ErrNotFound)
	}

	cp := *fb
	return &cp, nil
}
