package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/PabloGalante/prepwise-api/internal/domain"
)

type Store struct {
	client *firestore.Client
}

// NewStore creates a Firestore store for the given project (PREPWISE_GCP_PROJECT).
func NewStore(ctx context.Context, projectID string) (*Store, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: projectID is required for Firestore store", domain.ErrConfig)
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &Store{client: client}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

// ─────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────

func (s *Store) interviewsCol() *firestore.CollectionRef {
	return s.client.Collection("interviews")
}

func (s *Store) feedbackCol() *firestore.CollectionRef {
	return s.client.Collection("feedback")
}

// ─────────────────────────────────────────
// Firestore Types
// ─────────────────────────────────────────

// interviewDoc keeps the field names the web client reads.
type interviewDoc struct {
	Role       string   `firestore:"role"`
	Type       string   `firestore:"type"`
	Level      string   `firestore:"level"`
	TechStack  []string `firestore:"techstack"`
	Questions  []string `firestore:"questions"`
	UserID     string   `firestore:"userid"`
	Finalized  bool     `firestore:"finalized"`
	CoverImage string   `firestore:"coverImage"`
	CreatedAt  string   `firestore:"createdAt"` // RFC 3339
}

type categoryScoreDoc struct {
	Name    string `firestore:"name"`
	Score   int    `firestore:"score"`
	Comment string `firestore:"comment"`
}

type feedbackDoc struct {
	InterviewID         string             `firestore:"interviewId"`
	UserID              string             `firestore:"userId"`
	TotalScore          int                `firestore:"totalScore"`
	CategoryScores      []categoryScoreDoc `firestore:"categoryScores"`
	Strengths           []string           `firestore:"strengths"`
	AreasForImprovement []string           `firestore:"areasForImprovement"`
	FinalAssessment     string             `firestore:"finalAssessment"`
	CreatedAt           string             `firestore:"createdAt"`
}

func toInterviewDoc(i *domain.Interview) interviewDoc {
	return interviewDoc{
		Role:       i.Role,
		Type:       i.Type,
		Level:      i.Level,
		TechStack:  i.TechStack,
		Questions:  i.Questions,
		UserID:     string(i.UserID),
		Finalized:  i.Finalized,
		CoverImage: i.CoverImage,
		CreatedAt:  i.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (d interviewDoc) toDomain(id string) *domain.Interview {
	return &domain.Interview{
		ID:         domain.InterviewID(id),
		Role:       d.Role,
		Type:       d.Type,
		Level:      d.Level,
		TechStack:  d.TechStack,
		Questions:  d.Questions,
		UserID:     domain.UserID(d.UserID),
		Finalized:  d.Finalized,
		CoverImage: d.CoverImage,
		CreatedAt:  parseTime(d.CreatedAt),
	}
}

func toFeedbackDoc(fb *domain.Feedback) feedbackDoc {
	scores := make([]categoryScoreDoc, 0, len(fb.CategoryScores))
	for _, c := range fb.CategoryScores {
		scores = append(scores, categoryScoreDoc(c))
	}
	return feedbackDoc{
		InterviewID:         string(fb.InterviewID),
		UserID:              string(fb.UserID),
		TotalScore:          fb.TotalScore,
		CategoryScores:      scores,
		Strengths:           fb.Strengths,
		AreasForImprovement: fb.AreasForImprovement,
		FinalAssessment:     fb.FinalAssessment,
		CreatedAt:           fb.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (d feedbackDoc) toDomain(id string) *domain.Feedback {
	scores := make([]domain.CategoryScore, 0, len(d.CategoryScores))
	for _, c := range d.CategoryScores {
		scores = append(scores, domain.CategoryScore(c))
	}
	return &domain.Feedback{
		ID:                  domain.FeedbackID(id),
		InterviewID:         domain.InterviewID(d.InterviewID),
		UserID:              domain.UserID(d.UserID),
		TotalScore:          d.TotalScore,
		CategoryScores:      scores,
		Strengths:           d.Strengths,
		AreasForImprovement: d.AreasForImprovement,
		FinalAssessment:     d.FinalAssessment,
		CreatedAt:           parseTime(d.CreatedAt),
	}
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ─────────────────────────────────────────
// InterviewStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateInterview(ctx context.Context, interview *domain.Interview) error {
	_, err := s.interviewsCol().Doc(string(interview.ID)).Create(ctx, toInterviewDoc(interview))
	if err != nil {
		return fmt.Errorf("firestore CreateInterview: %w", err)
	}
	return nil
}

func (s *Store) GetInterview(ctx context.Context, id domain.InterviewID) (*domain.Interview, error) {
	snap, err := s.interviewsCol().Doc(string(id)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, fmt.Errorf("interview %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("firestore GetInterview: %w", err)
	}

	var doc interviewDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("firestore GetInterview decode: %w", err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

func (s *Store) ListInterviewsByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.Interview, error) {
	q := s.interviewsCol().Where("userid", "==", string(userID)).OrderBy("createdAt", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return s.queryInterviews(ctx, q, limit, nil)
}

// ListLatestInterviews filters out the caller's own interviews client side:
// a "!=" filter would force ordering on userid first.
func (s *Store) ListLatestInterviews(ctx context.Context, userID domain.UserID, limit int) ([]*domain.Interview, error) {
	q := s.interviewsCol().Where("finalized", "==", true).OrderBy("createdAt", firestore.Desc)
	if limit > 0 {
		q = q.Limit(limit * 2)
	}
	return s.queryInterviews(ctx, q, limit, func(i *domain.Interview) bool {
		return i.UserID != userID
	})
}

func (s *Store) queryInterviews(ctx context.Context, q firestore.Query, limit int, keep func(*domain.Interview) bool) ([]*domain.Interview, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	out := []*domain.Interview{}
	for {
		snap, err := iter.Next()
		if err != nil {
			if errors.Is(err, iterator.Done) {
				break
			}
			return nil, fmt.Errorf("firestore list interviews: %w", err)
		}

		var doc interviewDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode interviewDoc: %w", err)
		}

		i := doc.toDomain(snap.Ref.ID)
		if keep != nil && !keep(i) {
			continue
		}
		out = append(out, i)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// ─────────────────────────────────────────
// FeedbackStore implementation
// ─────────────────────────────────────────

func (s *Store) CreateFeedback(ctx context.Context, fb *domain.Feedback) error {
	_, err := s.feedbackCol().Doc(string(fb.ID)).Set(ctx, toFeedbackDoc(fb))
	if err != nil {
		return fmt.Errorf("firestore CreateFeedback: %w", err)
	}
	return nil
}

func (s *Store) GetFeedbackByInterview(ctx context.Context, interviewID domain.InterviewID, userID domain.UserID) (*domain.Feedback, error) {
	iter := s.feedbackCol().
		Where("interviewId", "==", string(interviewID)).
		Where("userId", "==", string(userID)).
		OrderBy("createdAt", firestore.Desc).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err != nil {
		if errors.Is(err, iterator.Done) {
			return nil, fmt.Errorf("feedback for interview %s: %w", interviewID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("firestore GetFeedbackByInterview: %w", err)
	}

	var doc feedbackDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode feedbackDoc: %w", err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}
