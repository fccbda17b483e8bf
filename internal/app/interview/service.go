package interview

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PabloGalante/prepwise-api/internal/domain"
	"github.com/PabloGalante/prepwise-api/internal/observability"
)

// DefaultCovers are used when no cover images are configured.
var DefaultCovers = []string{
	"/covers/adobe.png",
	"/covers/amazon.png",
	"/covers/facebook.png",
	"/covers/hostinger.png",
	"/covers/pinterest.png",
	"/covers/quora.png",
	"/covers/reddit.png",
	"/covers/skype.png",
	"/covers/spotify.png",
	"/covers/telegram.png",
	"/covers/tiktok.png",
	"/covers/yahoo.png",
}

type Service struct {
	llm    domain.LLMClient
	store  domain.InterviewStore
	covers []string

	now       func() time.Time
	pickCover func(n int) int
}

func NewService(llm domain.LLMClient, store domain.InterviewStore, covers []string) *Service {
	if len(covers) == 0 {
		covers = DefaultCovers
	}
	return &Service{
		llm:       llm,
		store:     store,
		covers:    covers,
		now:       time.Now,
		pickCover: rand.IntN,
	}
}

// GenerateInput is the body sent by the generation workflow.
type GenerateInput struct {
	Type      string
	Role      string
	Level     string
	TechStack string // comma separated
	Amount    string
	UserID    domain.UserID
}

func (in GenerateInput) validate() error {
	switch {
	case strings.TrimSpace(in.Role) == "":
		return fmt.Errorf("%w: role is required", domain.ErrInvalidInput)
	case strings.TrimSpace(in.Level) == "":
		return fmt.Errorf("%w: level is required", domain.ErrInvalidInput)
	case strings.TrimSpace(in.Amount) == "":
		return fmt.Errorf("%w: amount is required", domain.ErrInvalidInput)
	case in.UserID == "":
		return fmt.Errorf("%w: userid is required", domain.ErrInvalidInput)
	}
	return nil
}

// Generate asks the model for questions and stores the resulting interview.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (*domain.Interview, error) {
	log := observability.LoggerFromContext(ctx).With(
		"user_id", in.UserID,
		"role", in.Role,
		"level", in.Level,
		"amount", in.Amount,
	)

	if err := in.validate(); err != nil {
		return nil, err
	}

	log.Info("generating interview questions")
	text, err := s.llm.Generate(ctx, buildQuestionsPrompt(in))
	if err != nil {
		log.Error("question generation failed", "error", err)
		return nil, fmt.Errorf("generate questions: %w", err)
	}

	questions, err := ParseQuestions(text)
	if err != nil {
		log.Error("generated questions are not a JSON array", "error", err)
		return nil, err
	}

	interview := &domain.Interview{
		ID:         domain.InterviewID(uuid.NewString()),
		Role:       in.Role,
		Type:       in.Type,
		Level:      in.Level,
		TechStack:  SplitTechStack(in.TechStack),
		Questions:  questions,
		UserID:     in.UserID,
		Finalized:  true,
		CoverImage: s.covers[s.pickCover(len(s.covers))],
		CreatedAt:  s.now().UTC(),
	}

	if err := s.store.CreateInterview(ctx, interview); err != nil {
		log.Error("failed to store interview", "error", err)
		return nil, fmt.Errorf("store interview: %w", err)
	}

	log.Info("interview generated", "interview_id", interview.ID, "questions", len(questions))
	return interview, nil
}

func (s *Service) Get(ctx context.Context, id domain.InterviewID) (*domain.Interview, error) {
	return s.store.GetInterview(ctx, id)
}

// ListByUser returns the user's own interviews, newest first.
// If limit <= 0, a reasonable default value is used.
func (s *Service) ListByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.Interview, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.store.ListInterviewsByUser(ctx, userID, limit)
}

// ListLatest returns interviews other users generated, for "take an interview".
func (s *Service) ListLatest(ctx context.Context, userID domain.UserID, limit int) ([]*domain.Interview, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.store.ListLatestInterviews(ctx, userID, limit)
}

// ParseQuestions parses the model output as a JSON array of strings.
func ParseQuestions(text string) ([]string, error) {
	var questions []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &questions); err != nil {
		return nil, fmt.Errorf("parse questions: %w", err)
	}
	return questions, nil
}

// SplitTechStack splits a comma separated list, trimming every entry.
func SplitTechStack(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
