package domain

import "time"

type UserID string
type InterviewID string
type FeedbackID string
type CallID string

// Role is the speaker of a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleSystem    Role = "system"
	RoleAssistant Role = "assistant"
)

// ParseRole maps a channel role onto a known Role. Unknown roles are reported as not ok.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleSystem, RoleAssistant:
		return Role(s), true
	default:
		return "", false
	}
}

type SessionType string

const (
	SessionGenerate  SessionType = "generate"  // Voice flow that collects interview parameters
	SessionInterview SessionType = "interview" // Voice flow that runs the interview itself
)

func (t SessionType) Valid() bool {
	return t == SessionGenerate || t == SessionInterview
}

type Timestamp = time.Time
