package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/PabloGalante/prepwise-api/internal/domain"
)

// Store implements domain.InterviewStore and domain.FeedbackStore on gorm.
type Store struct {
	db *gorm.DB
}

func NewStore(driver, dsn string) (*Store, error) {
	db, err := Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sql store: %w", err)
	}
	if err := db.AutoMigrate(&interviewRow{}, &feedbackRow{}); err != nil {
		return nil, fmt.Errorf("migrate sql store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	return sqlDB.Close()
}

type interviewRow struct {
	ID         string    `gorm:"primaryKey;size:64"`
	Role       string    `gorm:"size:255;not null"`
	Type       string    `gorm:"size:64"`
	Level      string    `gorm:"size:64"`
	TechStack  []string  `gorm:"serializer:json"`
	Questions  []string  `gorm:"serializer:json"`
	UserID     string    `gorm:"size:191;not null;index"`
	Finalized  bool      `gorm:"not null;index"`
	CoverImage string    `gorm:"size:512"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

func (interviewRow) TableName() string {
	return "interviews"
}

type feedbackRow struct {
	ID                  string                 `gorm:"primaryKey;size:64"`
	InterviewID         string                 `gorm:"size:64;not null;index:idx_feedback_owner"`
	UserID              string                 `gorm:"size:191;not null;index:idx_feedback_owner"`
	TotalScore          int                    `gorm:"not null"`
	CategoryScores      []domain.CategoryScore `gorm:"serializer:json"`
	Strengths           []string               `gorm:"serializer:json"`
	AreasForImprovement []string               `gorm:"serializer:json"`
	FinalAssessment     string                 `gorm:"type:text"`
	CreatedAt           time.Time              `gorm:"not null"`
}

func (feedbackRow) TableName() string {
	return "feedback"
}

func interviewRowFrom(i *domain.Interview) interviewRow {
	return interviewRow{
		ID:         string(i.ID),
		Role:       i.Role,
		Type:       i.Type,
		Level:      i.Level,
		TechStack:  i.TechStack,
		Questions:  i.Questions,
		UserID:     string(i.UserID),
		Finalized:  i.Finalized,
		CoverImage: i.CoverImage,
		CreatedAt:  i.CreatedAt.UTC(),
	}
}

func (r interviewRow) toDomain() *domain.Interview {
	return &domain.Interview{
		ID:         domain.InterviewID(r.ID),
		Role:       r.Role,
		Type:       r.Type,
		Level:      r.Level,
		TechStack:  r.TechStack,
		Questions:  r.Questions,
		UserID:     domain.UserID(r.UserID),
		Finalized:  r.Finalized,
		CoverImage: r.CoverImage,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

func feedbackRowFrom(fb *domain.Feedback) feedbackRow {
	return feedbackRow{
		ID:                  string(fb.ID),
		InterviewID:         string(fb.InterviewID),
		UserID:              string(fb.UserID),
		TotalScore:          fb.TotalScore,
		CategoryScores:      fb.CategoryScores,
		Strengths:           fb.Strengths,
		AreasForImprovement: fb.AreasForImprovement,
		FinalAssessment:     fb.FinalAssessment,
		CreatedAt:           fb.CreatedAt.UTC(),
	}
}

func (r feedbackRow) toDomain() *domain.Feedback {
	return &domain.Feedback{
		ID:                  domain.FeedbackID(r.ID),
		InterviewID:         domain.InterviewID(r.InterviewID),
		UserID:              domain.UserID(r.UserID),
		TotalScore:          r.TotalScore,
		CategoryScores:      r.CategoryScores,
		Strengths:           r.Strengths,
		AreasForImprovement: r.AreasForImprovement,
		FinalAssessment:     r.FinalAssessment,
		CreatedAt:           r.CreatedAt.UTC(),
	}
}

func (s *Store) CreateInterview(ctx context.Context, interview *domain.Interview) error {
	row := interviewRowFrom(interview)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create interview: %w", err)
	}
	return nil
}

func (s *Store) GetInterview(ctx context.Context, id domain.InterviewID) (*domain.Interview, error) {
	var row interviewRow
	if err := s.db.WithContext(ctx).Where("id = ?", string(id)).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("interview %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get interview: %w", err)
	}
	return row.toDomain(), nil
}

func (s *Store) ListInterviewsByUser(ctx context.Context, userID domain.UserID, limit int) ([]*domain.Interview, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", string(userID))
	return s.listInterviews(q, limit)
}

func (s *Store) ListLatestInterviews(ctx context.Context, userID domain.UserID, limit int) ([]*domain.Interview, error) {
	q := s.db.WithContext(ctx).Where("finalized = ? AND user_id <> ?", true, string(userID))
	return s.listInterviews(q, limit)
}

func (s *Store) listInterviews(q *gorm.DB, limit int) ([]*domain.Interview, error) {
	q = q.Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var rows []interviewRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list interviews: %w", err)
	}

	out := make([]*domain.Interview, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out, nil
}

func (s *Store) CreateFeedback(ctx context.Context, fb *domain.Feedback) error {
	row := feedbackRowFrom(fb)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

// GetFeedbackByInterview returns the most recent feedback the user received for the interview.
func (s *Store) GetFeedbackByInterview(ctx context.Context, interviewID domain.InterviewID, userID domain.UserID) (*domain.Feedback, error) {
	var row feedbackRow
	err := s.db.WithContext(ctx).
		Where("interview_id = ? AND user_id = ?", string(interviewID), string(userID)).
		Order("created_at DESC").
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("feedback for interview %s: %w", interviewID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	return row.toDomain(), nil
}
