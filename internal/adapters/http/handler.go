package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/PabloGalante/prepwise-api/internal/adapters/auth"
	"github.com/PabloGalante/prepwise-api/internal/app/call"
	"github.com/PabloGalante/prepwise-api/internal/app/feedback"
	"github.com/PabloGalante/prepwise-api/internal/app/interview"
	"github.com/PabloGalante/prepwise-api/internal/domain"
	"github.com/PabloGalante/prepwise-api/internal/observability"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Interviews *interview.Service
	Feedback   *feedback.Service
	Calls      *call.Manager
	Auth       auth.Authenticator

	// Webhook receives Vapi server messages; nil disables the route.
	Webhook http.Handler
}

type Server struct {
	interviews *interview.Service
	feedback   *feedback.Service
	calls      *call.Manager
}

func NewServer(d Deps) http.Handler {
	s := &Server{
		interviews: d.Interviews,
		feedback:   d.Feedback,
		calls:      d.Calls,
	}
	authn := d.Auth
	if authn == nil {
		authn = auth.HeaderAuthenticator{}
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	// Called by the voice platform, not by users.
	mux.HandleFunc("/api/vapi/generate", s.handleGenerate)
	if d.Webhook != nil {
		mux.Handle("/api/vapi/webhook", d.Webhook)
	}

	// /api/calls              → POST: start a call
	// /api/calls/{id}         → GET: call view
	// /api/calls/{id}/end     → POST: end the call
	// /api/calls/{id}/ws      → GET: websocket of call views
	mux.Handle("/api/calls", withAuth(authn, http.HandlerFunc(s.handleCalls)))
	mux.Handle("/api/calls/", withAuth(authn, http.HandlerFunc(s.handleCallWithID)))

	// /api/interviews                 → GET: own interviews
	// /api/interviews/latest          → GET: other users' interviews
	// /api/interviews/{id}            → GET: one interview
	// /api/interviews/{id}/feedback   → GET: own feedback for it
	mux.Handle("/api/interviews", withAuth(authn, http.HandlerFunc(s.handleInterviews)))
	mux.Handle("/api/interviews/", withAuth(authn, http.HandlerFunc(s.handleInterviewWithID)))

	return chainMiddlewares(mux, withCORS, withLogging, withRequestID)
}

// ─────────────────────────────────────────────
// Path helpers
// ─────────────────────────────────────────────

// splitID splits "/prefix/{id}/rest..." into id and the remaining parts.
func splitID(path, prefix string) (string, []string, bool) {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return "", nil, false
	}
	parts := strings.Split(rest, "/")
	if parts[0] == "" {
		return "", nil, false
	}
	return parts[0], parts[1:], true
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusBadRequest, msg)
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	observability.LoggerFromContext(r.Context()).Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// writeDomainError maps domain errors onto status codes.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		notFound(w)
	case errors.Is(err, domain.ErrInvalidInput):
		badRequest(w, err.Error())
	default:
		internalError(w, r, err)
	}
}
