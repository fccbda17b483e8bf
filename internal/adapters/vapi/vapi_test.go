package vapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/PabloGalante/prepwise-api/internal/domain"
)

type fakeVapi struct {
	srv *httptest.Server

	mu       sync.Mutex
	auth     string
	created  createCallRequest
	controls []string
}

func newFakeVapi(t *testing.T) *fakeVapi {
	t.Helper()
	f := &fakeVapi{}
	mux := http.NewServeMux()
	mux.HandleFunc("/call", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&f.created)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"id":"call-123","monitor":{"controlUrl":"` + f.srv.URL + `/control/call-123"}}`))
	})
	mux.HandleFunc("/control/call-123", func(w http.ResponseWriter, r *http.Request) {
		var body controlRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.controls = append(f.controls, body.Type)
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

type recorder struct {
	mu     sync.Mutex
	events []domain.ChannelEvent
}

func (r *recorder) record(ev domain.ChannelEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, string(ev.Kind))
	}
	return strings.Join(out, ",")
}

func startedChannel(t *testing.T, secret string) (*Router, *Channel, *recorder, *fakeVapi) {
	t.Helper()
	api := newFakeVapi(t)
	router := NewRouter(secret)
	client := NewClient("sk-test", router, WithBaseURL(api.srv.URL+"/"))

	ch := client.NewChannel()
	rec := &recorder{}
	for _, k := range []domain.EventKind{domain.EventCallStart, domain.EventCallEnd, domain.EventMessage, domain.EventSpeechStart, domain.EventSpeechEnd, domain.EventError} {
		ch.On(k, rec.record)
	}

	err := ch.Start(context.Background(), "wf-interviewer", domain.StartPayload{
		VariableValues: map[string]string{"username": "Ada", "userid": "user-1"},
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return router, ch, rec, api
}

func post(router *Router, body, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/vapi/webhook", strings.NewReader(body))
	if secret != "" {
		req.Header.Set(SecretHeader, secret)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestStartCreatesWorkflowCall(t *testing.T) {
	router, ch, _, api := startedChannel(t, "")

	api.mu.Lock()
	defer api.mu.Unlock()
	if api.auth != "Bearer sk-test" {
		t.Fatalf("expected bearer auth, got %q", api.auth)
	}
	if api.created.WorkflowID != "wf-interviewer" || api.created.WorkflowOverrides.VariableValues["username"] != "Ada" {
		t.Fatalf("unexpected create body: %+v", api.created)
	}
	if ch.CallID() != "call-123" || router.Active() != 1 {
		t.Fatalf("expected registered call-123, got %q active=%d", ch.CallID(), router.Active())
	}
	if err := ch.Start(context.Background(), "wf", domain.StartPayload{}); err != ErrAlreadyStarted {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestWebhookDeliversEventsInOrder(t *testing.T) {
	router, _, rec, _ := startedChannel(t, "")

	msgs := []string{
		`{"message":{"type":"status-update","status":"in-progress","call":{"id":"call-123"}}}`,
		`{"message":{"type":"speech-update","status":"started","role":"assistant","call":{"id":"call-123"}}}`,
		`{"message":{"type":"transcript","role":"assistant","transcriptType":"final","transcript":"Hello Ada","call":{"id":"call-123"}}}`,
		`{"message":{"type":"speech-update","status":"stopped","role":"assistant","call":{"id":"call-123"}}}`,
		`{"message":{"type":"conversation-update","call":{"id":"call-123"}}}`,
		`{"message":{"type":"status-update","status":"ended","endedReason":"customer-ended-call","call":{"id":"call-123"}}}`,
	}
	for _, m := range msgs {
		if rr := post(router, m, ""); rr.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d for %s", rr.Code, m)
		}
	}

	want := "call-start,speech-start,message,speech-end,call-end"
	if got := rec.kinds(); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}

	msg := rec.events[2].Message
	if msg == nil || msg.Role != domain.RoleAssistant || msg.TranscriptType != domain.TranscriptFinal || msg.Transcript != "Hello Ada" {
		t.Fatalf("unexpected message payload: %+v", msg)
	}
	if router.Active() != 0 {
		t.Fatalf("expected call to be unregistered after call-end")
	}
}

func TestWebhookErrorEndedReason(t *testing.T) {
	router, _, rec, _ := startedChannel(t, "")

	post(router, `{"message":{"type":"status-update","status":"ended","endedReason":"pipeline-error-openai-llm-failed","call":{"id":"call-123"}}}`, "")

	if got := rec.kinds(); got != "error,call-end" {
		t.Fatalf("expected error before call-end, got %s", got)
	}
	if rec.events[0].Err == nil {
		t.Fatalf("expected error payload")
	}
}

func TestWebhookIgnoresUnknownCall(t *testing.T) {
	router, _, rec, _ := startedChannel(t, "")

	rr := post(router, `{"message":{"type":"status-update","status":"in-progress","call":{"id":"other"}}}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rec.kinds() != "" {
		t.Fatalf("expected no events, got %s", rec.kinds())
	}
}

func TestWebhookSecret(t *testing.T) {
	router, _, rec, _ := startedChannel(t, "s3cret")
	body := `{"message":{"type":"status-update","status":"in-progress","call":{"id":"call-123"}}}`

	if rr := post(router, body, "wrong"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if rr := post(router, body, "s3cret"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rec.kinds() != "call-start" {
		t.Fatalf("expected single call-start, got %s", rec.kinds())
	}
}

func TestWebhookRejectsMalformedBody(t *testing.T) {
	router := NewRouter("")
	if rr := post(router, `{not json`, ""); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestStopSendsEndCall(t *testing.T) {
	_, ch, _, api := startedChannel(t, "")

	if err := ch.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.controls) != 1 || api.controls[0] != "end-call" {
		t.Fatalf("expected one end-call control message, got %v", api.controls)
	}
}

func TestStopBeforeStartIsNoop(t *testing.T) {
	ch := NewClient("", NewRouter("")).NewChannel()
	if err := ch.Stop(context.Background()); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestStartReportsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"workflow not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	router := NewRouter("")
	ch := NewClient("sk", router, WithBaseURL(srv.URL)).NewChannel()
	err := ch.Start(context.Background(), "missing", domain.StartPayload{})
	if err == nil || !strings.Contains(err.Error(), "status=400") {
		t.Fatalf("expected status error, got %v", err)
	}
	if router.Active() != 0 {
		t.Fatalf("failed start must not register a call")
	}
}

func TestOffRemovesHandler(t *testing.T) {
	router, ch, _, _ := startedChannel(t, "")
	count := 0
	off := ch.On(domain.EventCallStart, func(domain.ChannelEvent) { count++ })
	off()

	post(router, `{"message":{"type":"status-update","status":"in-progress","call":{"id":"call-123"}}}`, "")
	if count != 0 {
		t.Fatalf("expected removed handler to stay silent, got %d calls", count)
	}
}
