package domain

import "fmt"

// CallStatus is the lifecycle state of a voice call.
type CallStatus string

const (
	CallInactive   CallStatus = "INACTIVE"
	CallConnecting CallStatus = "CONNECTING"
	CallActive     CallStatus = "ACTIVE"
	CallFinished   CallStatus = "FINISHED"
)

// TranscriptMessage is one finalized speech-to-text turn.
type TranscriptMessage struct {
	Role    Role   `json:"role" firestore:"role"`
	Content string `json:"content" firestore:"content"`
}

// SessionParameters describe who is on the call and which flow it runs.
// They do not change for the lifetime of a session.
type SessionParameters struct {
	DisplayName   string
	ParticipantID UserID
	Type          SessionType

	// Interview sessions only
	InterviewID   InterviewID
	SeedQuestions []string
}

// Validate checks the parameters before a call is started.
func (p SessionParameters) Validate() error {
	if !p.Type.Valid() {
		return fmt.Errorf("%w: unknown session type %q", ErrInvalidInput, p.Type)
	}
	if p.Type == SessionInterview && p.InterviewID == "" {
		return fmt.Errorf("%w: interview session requires an interview id", ErrConfig)
	}
	return nil
}
