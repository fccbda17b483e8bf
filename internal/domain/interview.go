package domain

import "context"

// Interview is a generated set of questions for one role, level and stack.
type Interview struct {
	ID         InterviewID
	Role       string
	Type       string // behavioural / technical / mixed, as requested
	Level      string
	TechStack  []string
	Questions  []string
	UserID     UserID
	Finalized  bool
	CoverImage string
	CreatedAt  Timestamp
}

// InterviewStore defines interview persistence
type InterviewStore interface {
	CreateInterview(ctx context.Context, interview *Interview) error
	GetInterview(ctx context.Context, id InterviewID) (*Interview, error)

	// ListInterviewsByUser returns the user's interviews, newest first.
	ListInterviewsByUser(ctx context.Context, userID UserID, limit int) ([]*Interview, error)

	// ListLatestInterviews returns finalized interviews created by anyone but userID, newest first.
	ListLatestInterviews(ctx context.Context, userID UserID, limit int) ([]*Interview, error)
}
