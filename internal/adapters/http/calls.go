package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/PabloGalante/prepwise-api/internal/app/call"
	"github.com/PabloGalante/prepwise-api/internal/domain"
	"github.com/PabloGalante/prepwise-api/internal/observability"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

type startCallRequest struct {
	UserName    string   `json:"user_name"`
	Type        string   `json:"type"`
	InterviewID string   `json:"interview_id,omitempty"`
	Questions   []string `json:"questions,omitempty"`
}

type callResponse struct {
	ID            string                     `json:"id"`
	Type          string                     `json:"type"`
	InterviewID   string                     `json:"interview_id,omitempty"`
	Status        string                     `json:"status"`
	Speaking      bool                       `json:"speaking"`
	Idle          bool                       `json:"idle"`
	LatestMessage string                     `json:"latest_message,omitempty"`
	Transcript    []domain.TranscriptMessage `json:"transcript"`
	Redirect      string                     `json:"redirect,omitempty"`
	CreatedAt     time.Time                  `json:"created_at"`
}

// /api/calls
func (s *Server) handleCalls(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleStartCall(w, r)
	default:
		methodNotAllowed(w)
	}
}

// /api/calls/{id}, /api/calls/{id}/end, /api/calls/{id}/ws
func (s *Server) handleCallWithID(w http.ResponseWriter, r *http.Request) {
	id, rest, ok := splitID(r.URL.Path, "/api/calls/")
	if !ok || len(rest) > 1 {
		notFound(w)
		return
	}
	callID := domain.CallID(id)

	if len(rest) == 0 {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.handleGetCall(w, r, callID)
		return
	}

	switch rest[0] {
	case "end":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		s.handleEndCall(w, r, callID)
	case "ws":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		s.handleCallSocket(w, r, callID)
	default:
		notFound(w)
	}
}

func (s *Server) handleStartCall(w http.ResponseWriter, r *http.Request) {
	var req startCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	user := userFrom(r.Context())
	params := domain.SessionParameters{
		DisplayName:   strings.TrimSpace(req.UserName),
		ParticipantID: user.ID,
		Type:          domain.SessionType(strings.ToLower(strings.TrimSpace(req.Type))),
		InterviewID:   domain.InterviewID(strings.TrimSpace(req.InterviewID)),
		SeedQuestions: req.Questions,
	}
	if params.DisplayName == "" {
		params.DisplayName = user.Name
	}
	if !params.Type.Valid() {
		badRequest(w, "type must be generate or interview")
		return
	}

	// Interview sessions default to the stored questions.
	if params.Type == domain.SessionInterview && params.InterviewID != "" && len(params.SeedQuestions) == 0 {
		in, err := s.interviews.Get(r.Context(), params.InterviewID)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		params.SeedQuestions = in.Questions
	}

	snap, err := s.calls.Start(r.Context(), params)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	observability.LoggerFromContext(r.Context()).Info("call started", "call_id", snap.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"call": toCallResponse(snap)})
}

func (s *Server) handleGetCall(w http.ResponseWriter, r *http.Request, id domain.CallID) {
	snap, ok := s.ownedCall(w, r, id)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toCallResponse(snap))
}

func (s *Server) handleEndCall(w http.ResponseWriter, r *http.Request, id domain.CallID) {
	if _, ok := s.ownedCall(w, r, id); !ok {
		return
	}

	snap, err := s.calls.End(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			notFound(w)
			return
		}
		observability.LoggerFromContext(r.Context()).Error("failed to stop call", "call_id", id, "error", err)
		writeError(w, http.StatusBadGateway, "failed to stop call")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"call": toCallResponse(snap)})
}

func (s *Server) handleCallSocket(w http.ResponseWriter, r *http.Request, id domain.CallID) {
	if _, ok := s.ownedCall(w, r, id); !ok {
		return
	}

	updates, cancel, err := s.calls.Watch(id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	defer cancel()

	upgrader := websocket.Upgrader{CheckOrigin: isWebSocketOriginAllowed}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		return
	}
	defer conn.Close()

	log := observability.LoggerFromContext(r.Context()).With("call_id", id)

	// The read loop only detects the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case snap := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(toCallResponse(snap)); err != nil {
				log.Warn("call socket write failed", "error", err)
				return
			}
			if snap.Redirect != "" {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "call finished"),
					time.Now().Add(wsWriteTimeout))
				return
			}
		}
	}
}

// ownedCall writes 404 unless the call exists and belongs to the caller.
func (s *Server) ownedCall(w http.ResponseWriter, r *http.Request, id domain.CallID) (call.Snapshot, bool) {
	snap, err := s.calls.Get(id)
	if err != nil || snap.UserID != userFrom(r.Context()).ID {
		notFound(w)
		return call.Snapshot{}, false
	}
	return snap, true
}

func isWebSocketOriginAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || strings.TrimSpace(parsed.Host) == "" {
		return false
	}
	return strings.EqualFold(parsed.Host, r.Host)
}

func toCallResponse(snap call.Snapshot) callResponse {
	resp := callResponse{
		ID:          string(snap.ID),
		Type:        string(snap.Type),
		InterviewID: string(snap.InterviewID),
		Status:      string(snap.State.Status),
		Speaking:    snap.State.Speaking,
		Idle:        snap.State.Idle(),
		Transcript:  snap.State.Transcript,
		Redirect:    snap.Redirect,
		CreatedAt:   snap.CreatedAt,
	}
	if last, ok := snap.State.LatestUtterance(); ok {
		resp.LatestMessage = last.Content
	}
	if resp.Transcript == nil {
		resp.Transcript = []domain.TranscriptMessage{}
	}
	return resp
}
