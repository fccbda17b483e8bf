package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/prepwise-api/internal/domain"
	"github.com/PabloGalante/prepwise-api/internal/observability"
)

// Service turns interview transcripts into stored feedback.
type Service struct {
	llm   domain.LLMClient
	store domain.FeedbackStore
	now   func() time.Time
}

func NewService(llm domain.LLMClient, store domain.FeedbackStore) *Service {
	return &Service{
		llm:   llm,
		store: store,
		now:   time.Now,
	}
}

// assessment is the JSON body the model is asked to produce.
type assessment struct {
	TotalScore          int                    `json:"totalScore"`
	CategoryScores      []domain.CategoryScore `json:"categoryScores"`
	Strengths           []string               `json:"strengths"`
	AreasForImprovement []string               `json:"areasForImprovement"`
	FinalAssessment     string                 `json:"finalAssessment"`
}

// CreateFeedback implements domain.FeedbackCreator.
// Any failure is reported both as Success=false and as the returned error.
func (s *Service) CreateFeedback(ctx context.Context, in domain.CreateFeedbackInput) (domain.FeedbackResult, error) {
	log := observability.LoggerFromContext(ctx).With(
		"interview_id", in.InterviewID,
		"user_id", in.UserID,
		"transcript_len", len(in.Transcript),
	)

	if in.InterviewID == "" || in.UserID == "" {
		return domain.FeedbackResult{}, fmt.Errorf("%w: interview id and user id are required", domain.ErrInvalidInput)
	}
	if len(in.Transcript) == 0 {
		return domain.FeedbackResult{}, fmt.Errorf("%w: transcript is empty", domain.ErrInvalidInput)
	}

	log.Info("generating feedback")
	text, err := s.llm.Generate(ctx, buildFeedbackPrompt(in.Transcript))
	if err != nil {
		log.Error("feedback generation failed", "error", err)
		return domain.FeedbackResult{}, fmt.Errorf("generate feedback: %w", err)
	}

	a, err := parseAssessment(text)
	if err != nil {
		log.Error("invalid feedback payload", "error", err)
		return domain.FeedbackResult{}, err
	}

	fb := &domain.Feedback{
		ID:                  domain.FeedbackID(uuid.NewString()),
		InterviewID:         in.InterviewID,
		UserID:              in.UserID,
		TotalScore:          a.TotalScore,
		CategoryScores:      a.CategoryScores,
		Strengths:           a.Strengths,
		AreasForImprovement: a.AreasForImprovement,
		FinalAssessment:     a.FinalAssessment,
		CreatedAt:           s.now().UTC(),
	}

	if err := s.store.CreateFeedback(ctx, fb); err != nil {
		log.Error("failed to store feedback", "error", err)
		return domain.FeedbackResult{}, fmt.Errorf("store feedback: %w", err)
	}

	log.Info("feedback stored", "feedback_id", fb.ID, "total_score", fb.TotalScore)
	return domain.FeedbackResult{Success: true, FeedbackID: fb.ID}, nil
}

// Get returns the user's feedback for an interview.
func (s *Service) Get(ctx context.Context, interviewID domain.InterviewID, userID domain.UserID) (*domain.Feedback, error) {
	return s.store.GetFeedbackByInterview(ctx, interviewID, userID)
}

func parseAssessment(text string) (assessment, error) {
	var a assessment
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &a); err != nil {
		return assessment{}, fmt.Errorf("parse feedback: %w", err)
	}

	if !validScore(a.TotalScore) {
		return assessment{}, fmt.Errorf("parse feedback: total score %d out of range", a.TotalScore)
	}
	if len(a.CategoryScores) == 0 {
		return assessment{}, fmt.Errorf("parse feedback: no category scores")
	}
	for _, c := range a.CategoryScores {
		if !validScore(c.Score) {
			return assessment{}, fmt.Errorf("parse feedback: %s score %d out of range", c.Name, c.Score)
		}
	}
	if strings.TrimSpace(a.FinalAssessment) == "" {
		return assessment{}, fmt.Errorf("parse feedback: final assessment is empty")
	}
	return a, nil
}

func validScore(n int) bool {
	return n >= 0 && n <= 100
}
