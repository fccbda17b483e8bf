package vapi

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/PabloGalante/prepwise-api/internal/domain"
	"github.com/PabloGalante/prepwise-api/internal/observability"
)

const (
	SecretHeader = "X-Vapi-Secret"

	maxWebhookBody = 1 << 20
)

// Router maps Vapi call ids to channels and serves the server-message webhook.
type Router struct {
	secret string

	mu       sync.RWMutex
	channels map[string]*Channel
}

func NewRouter(secret string) *Router {
	return &Router{
		secret:   strings.TrimSpace(secret),
		channels: make(map[string]*Channel),
	}
}

func (r *Router) register(callID string, ch *Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[callID] = ch
}

func (r *Router) unregister(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, callID)
}

func (r *Router) lookup(callID string) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[callID]
	return ch, ok
}

// Active reports the number of calls still waiting for their end event.
func (r *Router) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

type envelope struct {
	Message serverMessage `json:"message"`
}

type serverMessage struct {
	Type           string `json:"type"`
	Status         string `json:"status"`
	EndedReason    string `json:"endedReason"`
	Role           string `json:"role"`
	TranscriptType string `json:"transcriptType"`
	Transcript     string `json:"transcript"`
	Call           struct {
		ID string `json:"id"`
	} `json:"call"`
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if r.secret != "" && subtle.ConstantTimeCompare([]byte(req.Header.Get(SecretHeader)), []byte(r.secret)) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	log := observability.LoggerFromContext(req.Context())

	var env envelope
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxWebhookBody)).Decode(&env); err != nil {
		http.Error(w, "invalid server message", http.StatusBadRequest)
		return
	}
	msg := env.Message
	log = log.With("vapi_call_id", msg.Call.ID, "message_type", msg.Type)

	events := translate(msg)
	if len(events) == 0 {
		w.WriteHeader(http.StatusOK)
		return
	}

	ch, ok := r.lookup(msg.Call.ID)
	if !ok {
		log.Debug("server message for unknown call")
		w.WriteHeader(http.StatusOK)
		return
	}

	ch.dispatch(events)
	if events[len(events)-1].Kind == domain.EventCallEnd {
		r.unregister(msg.Call.ID)
		log.Info("vapi call ended", "ended_reason", msg.EndedReason)
	}
	w.WriteHeader(http.StatusOK)
}

// translate maps one server message to the channel events it implies.
func translate(msg serverMessage) []domain.ChannelEvent {
	switch msg.Type {
	case "status-update":
		switch msg.Status {
		case "in-progress":
			return []domain.ChannelEvent{{Kind: domain.EventCallStart}}
		case "ended":
			if strings.Contains(strings.ToLower(msg.EndedReason), "error") {
				return []domain.ChannelEvent{
					{Kind: domain.EventError, Err: fmt.Errorf("vapi call ended: %s", msg.EndedReason)},
					{Kind: domain.EventCallEnd},
				}
			}
			return []domain.ChannelEvent{{Kind: domain.EventCallEnd}}
		}
	case "transcript":
		role, ok := domain.ParseRole(msg.Role)
		if !ok {
			return nil
		}
		return []domain.ChannelEvent{{
			Kind: domain.EventMessage,
			Message: &domain.ChannelMessage{
				Type:           domain.MessageTypeTranscript,
				TranscriptType: msg.TranscriptType,
				Role:           role,
				Transcript:     msg.Transcript,
			},
		}}
	case "speech-update":
		switch msg.Status {
		case "started":
			return []domain.ChannelEvent{{Kind: domain.EventSpeechStart}}
		case "stopped":
			return []domain.ChannelEvent{{Kind: domain.EventSpeechEnd}}
		}
	case "hang":
		return []domain.ChannelEvent{{Kind: domain.EventError, Err: errors.New("vapi: assistant did not respond")}}
	}
	return nil
}
