package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/PabloGalante/prepwise-api/internal/domain"
)

func TestInterviewStoreListsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewInterviewStore()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, owner := range []domain.UserID{"u1", "u2", "u1", "u3"} {
		err := s.CreateInterview(ctx, &domain.Interview{
			ID:        domain.InterviewID(string(rune('a' + i))),
			UserID:    owner,
			Finalized: owner != "u3",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	mine, _ := s.ListInterviewsByUser(ctx, "u1", 0)
	if len(mine) != 2 || mine[0].ID != "c" || mine[1].ID != "a" {
		t.Fatalf("unexpected own list: %v", mine)
	}

	// u3's interview is not finalized, u1's own are excluded.
	latest, _ := s.ListLatestInterviews(ctx, "u1", 10)
	if len(latest) != 1 || latest[0].ID != "b" {
		t.Fatalf("unexpected latest list: %v", latest)
	}

	if err := s.CreateInterview(ctx, &domain.Interview{ID: "a"}); err == nil {
		t.Fatalf("expected duplicate id to fail")
	}
}

func TestInterviewStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := NewInterviewStore()
	_ = s.CreateInterview(ctx, &domain.Interview{ID: "a", Role: "Backend"})

	got, _ := s.GetInterview(ctx, "a")
	got.Role = "changed"

	again, _ := s.GetInterview(ctx, "a")
	if again.Role != "Backend" {
		t.Fatalf("store leaked internal state: %q", again.Role)
	}
	if _, err := s.GetInterview(ctx, "zzz"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFeedbackStoreKeyedByInterviewAndUser(t *testing.T) {
	ctx := context.Background()
	s := NewFeedbackStore()

	_ = s.CreateFeedback(ctx, &domain.Feedback{ID: "f1", InterviewID: "i1", UserID: "u1", TotalScore: 40})
	_ = s.CreateFeedback(ctx, &domain.Feedback{ID: "f2", InterviewID: "i1", UserID: "u1", TotalScore: 90})

	got, err := s.GetFeedbackByInterview(ctx, "i1", "u1")
	if err != nil || got.ID != "f2" {
		t.Fatalf("expected latest feedback f2, got %+v err=%v", got, err)
	}
	if _, err := s.GetFeedbackByInterview(ctx, "i1", "u2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
