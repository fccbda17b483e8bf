package domain

import "context"

// CategoryScore is the score for one assessment area (0-100).
type CategoryScore struct {
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

// Feedback is the assessment produced from an interview transcript.
type Feedback struct {
	ID          FeedbackID
	InterviewID InterviewID
	UserID      UserID

	TotalScore          int
	CategoryScores      []CategoryScore
	Strengths           []string
	AreasForImprovement []string
	FinalAssessment     string

	CreatedAt Timestamp
}

// CreateFeedbackInput is what the call controller hands over when an interview ends.
type CreateFeedbackInput struct {
	InterviewID InterviewID
	UserID      UserID
	Transcript  []TranscriptMessage
}

// FeedbackResult reports whether feedback was stored and under which id.
type FeedbackResult struct {
	Success    bool
	FeedbackID FeedbackID
}

// FeedbackCreator persists feedback for a finished interview.
type FeedbackCreator interface {
	CreateFeedback(ctx context.Context, in CreateFeedbackInput) (FeedbackResult, error)
}

// FeedbackStore defines feedback persistence
type FeedbackStore interface {
	CreateFeedback(ctx context.Context, fb *Feedback) error
	GetFeedbackByInterview(ctx context.Context, interviewID InterviewID, userID UserID) (*Feedback, error)
}
