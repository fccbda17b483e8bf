package httpadapter

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PabloGalante/prepwise-api/internal/app/interview"
	"github.com/PabloGalante/prepwise-api/internal/domain"
	"github.com/PabloGalante/prepwise-api/internal/observability"
)

// ─────────────────────────────────────────────
// DTOs (request/response)
// ─────────────────────────────────────────────

// looseString accepts a JSON string or number.
type looseString string

func (s *looseString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*s = looseString(n.String())
	return nil
}

type generateRequest struct {
	Type      string      `json:"type"`
	Role      string      `json:"role"`
	Level     string      `json:"level"`
	TechStack string      `json:"techstack"`
	Amount    looseString `json:"amount"`
	UserID    string      `json:"userid"`
}

type generateResponse struct {
	Success bool   `json:"success"`
	Data    string `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

type interviewResponse struct {
	ID         string    `json:"id"`
	Role       string    `json:"role"`
	Type       string    `json:"type"`
	Level      string    `json:"level"`
	TechStack  []string  `json:"techstack"`
	Questions  []string  `json:"questions"`
	UserID     string    `json:"userId"`
	Finalized  bool      `json:"finalized"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
}

type feedbackResponse struct {
	ID                  string                 `json:"id"`
	InterviewID         string                 `json:"interviewId"`
	UserID              string                 `json:"userId"`
	TotalScore          int                    `json:"totalScore"`
	CategoryScores      []domain.CategoryScore `json:"categoryScores"`
	Strengths           []string               `json:"strengths"`
	AreasForImprovement []string               `json:"areasForImprovement"`
	FinalAssessment     string                 `json:"finalAssessment"`
	CreatedAt           time.Time              `json:"createdAt"`
}

// ─────────────────────────────────────────────
// Question generation (voice platform tool call)
// ─────────────────────────────────────────────

// /api/vapi/generate
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, generateResponse{Success: true, Data: "THANK YOU!"})
	case http.MethodPost:
		s.handleGeneratePost(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleGeneratePost(w http.ResponseWriter, r *http.Request) {
	log := observability.LoggerFromContext(r.Context())

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Warn("invalid generate body", "error", err)
		writeJSON(w, http.StatusInternalServerError, generateResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}

	_, err := s.interviews.Generate(r.Context(), interview.GenerateInput{
		Type:      req.Type,
		Role:      req.Role,
		Level:     req.Level,
		TechStack: req.TechStack,
		Amount:    string(req.Amount),
		UserID:    domain.UserID(req.UserID),
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, generateResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, generateResponse{Success: true})
}

// ─────────────────────────────────────────────
// Interviews
// ─────────────────────────────────────────────

// /api/interviews
func (s *Server) handleInterviews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	limit, ok := parseLimit(r)
	if !ok {
		badRequest(w, "limit must be a positive integer")
		return
	}

	list, err := s.interviews.ListByUser(r.Context(), userFrom(r.Context()).ID, limit)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"interviews": toInterviewsResponse(list)})
}

// /api/interviews/latest, /api/interviews/{id}, /api/interviews/{id}/feedback
func (s *Server) handleInterviewWithID(w http.ResponseWriter, r *http.Request) {
	id, rest, ok := splitID(r.URL.Path, "/api/interviews/")
	if !ok || len(rest) > 1 {
		notFound(w)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	switch {
	case id == "latest" && len(rest) == 0:
		s.handleLatestInterviews(w, r)
	case len(rest) == 0:
		s.handleGetInterview(w, r, domain.InterviewID(id))
	case rest[0] == "feedback":
		s.handleGetFeedback(w, r, domain.InterviewID(id))
	default:
		notFound(w)
	}
}

func (s *Server) handleLatestInterviews(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(r)
	if !ok {
		badRequest(w, "limit must be a positive integer")
		return
	}

	list, err := s.interviews.ListLatest(r.Context(), userFrom(r.Context()).ID, limit)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"interviews": toInterviewsResponse(list)})
}

func (s *Server) handleGetInterview(w http.ResponseWriter, r *http.Request, id domain.InterviewID) {
	in, err := s.interviews.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toInterviewResponse(in))
}

func (s *Server) handleGetFeedback(w http.ResponseWriter, r *http.Request, id domain.InterviewID) {
	fb, err := s.feedback.Get(r.Context(), id, userFrom(r.Context()).ID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFeedbackResponse(fb))
}

// ─────────────────────────────────────────────
// Interview Helpers
// ─────────────────────────────────────────────

// parseLimit returns 0 when the query has no limit.
func parseLimit(r *http.Request) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func toInterviewResponse(i *domain.Interview) interviewResponse {
	return interviewResponse{
		ID:         string(i.ID),
		Role:       i.Role,
		Type:       i.Type,
		Level:      i.Level,
		TechStack:  nonNil(i.TechStack),
		Questions:  nonNil(i.Questions),
		UserID:     string(i.UserID),
		Finalized:  i.Finalized,
		CoverImage: i.CoverImage,
		CreatedAt:  i.CreatedAt,
	}
}

func toInterviewsResponse(list []*domain.Interview) []interviewResponse {
	out := make([]interviewResponse, 0, len(list))
	for _, i := range list {
		out = append(out, toInterviewResponse(i))
	}
	return out
}

func toFeedbackResponse(fb *domain.Feedback) feedbackResponse {
	return feedbackResponse{
		ID:                  string(fb.ID),
		InterviewID:         string(fb.InterviewID),
		UserID:              string(fb.UserID),
		TotalScore:          fb.TotalScore,
		CategoryScores:      fb.CategoryScores,
		Strengths:           nonNil(fb.Strengths),
		AreasForImprovement: nonNil(fb.AreasForImprovement),
		FinalAssessment:     fb.FinalAssessment,
		CreatedAt:           fb.CreatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
