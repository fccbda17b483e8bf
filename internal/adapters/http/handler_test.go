package httpadapter_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	httpadapter "github.com/PabloGalante/prepwise-api/internal/adapters/http"
	"github.com/PabloGalante/prepwise-api/internal/adapters/llm"
	"github.com/PabloGalante/prepwise-api/internal/adapters/storage/memory"
	"github.com/PabloGalante/prepwise-api/internal/adapters/vapi"
	"github.com/PabloGalante/prepwise-api/internal/app/call"
	"github.com/PabloGalante/prepwise-api/internal/app/feedback"
	"github.com/PabloGalante/prepwise-api/internal/app/interview"
	"github.com/PabloGalante/prepwise-api/internal/domain"
)

// fakeVapi stands in for the Vapi REST API.
type fakeVapi struct {
	srv *httptest.Server

	mu       sync.Mutex
	n        int
	created  []map[string]any
	failStop bool
}

func newFakeVapi(t *testing.T) *fakeVapi {
	t.Helper()
	f := &fakeVapi{}
	mux := http.NewServeMux()
	mux.HandleFunc("/call", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.n++
		id := fmt.Sprintf("vapi-%d", f.n)
		f.created = append(f.created, body)
		f.mu.Unlock()

		fmt.Fprintf(w, `{"id":%q,"monitor":{"controlUrl":%q}}`, id, f.srv.URL+"/control/"+id)
	})
	mux.HandleFunc("/control/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		fail := f.failStop
		f.mu.Unlock()
		if fail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

type testEnv struct {
	handler    http.Handler
	vapi       *fakeVapi
	interviews *memory.InterviewStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	fake := newFakeVapi(t)
	router := vapi.NewRouter("")
	client := vapi.NewClient("sk-test", router, vapi.WithBaseURL(fake.srv.URL))

	llmClient := llm.NewMockLLM()
	interviewStore := memory.NewInterviewStore()
	interviewSvc := interview.NewService(llmClient, interviewStore, nil)
	feedbackSvc := feedback.NewService(llmClient, memory.NewFeedbackStore())

	calls := call.NewManager(
		func() domain.VoiceChannel { return client.NewChannel() },
		feedbackSvc,
		call.Workflows{GenerateID: "wf-generate", InterviewerID: "wf-interviewer"},
	)
	t.Cleanup(calls.Close)

	h := httpadapter.NewServer(httpadapter.Deps{
		Interviews: interviewSvc,
		Feedback:   feedbackSvc,
		Calls:      calls,
		Webhook:    router,
	})
	return &testEnv{handler: h, vapi: fake, interviews: interviewStore}
}

func (e *testEnv) do(t *testing.T, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, bytes.NewBufferString(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	r = r.WithContext(context.Background())
	if user != "" {
		r.Header.Set("X-User-ID", user)
		r.Header.Set("X-User-Name", "Ada")
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

func (e *testEnv) webhook(t *testing.T, callID, message string) {
	t.Helper()
	body := fmt.Sprintf(`{"message":{%s,"call":{"id":%q}}}`, message, callID)
	if w := e.do(t, http.MethodPost, "/api/vapi/webhook", "", body); w.Code != http.StatusOK {
		t.Fatalf("webhook: expected 200, got %d", w.Code)
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
	return v
}

type callView struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Idle          bool   `json:"idle"`
	LatestMessage string `json:"latest_message"`
	Redirect      string `json:"redirect"`
	Transcript    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"transcript"`
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/healthz", "", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected X-Request-ID header")
	}
}

func TestGenerateGet(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/vapi/generate", "", "")

	got := decode[map[string]any](t, w)
	if w.Code != http.StatusOK || got["success"] != true || got["data"] != "THANK YOU!" {
		t.Fatalf("unexpected response %d %v", w.Code, got)
	}
}

func TestGeneratePostStoresInterview(t *testing.T) {
	env := newTestEnv(t)

	for _, amount := range []string{`3`, `"5"`} {
		body := `{"type":"technical","role":"Frontend Engineer","level":"Junior","techstack":"React, TypeScript","amount":` + amount + `,"userid":"user-1"}`
		w := env.do(t, http.MethodPost, "/api/vapi/generate", "", body)
		if w.Code != http.StatusOK {
			t.Fatalf("amount %s: expected 200, got %d body=%s", amount, w.Code, w.Body.String())
		}
		if got := decode[map[string]any](t, w); got["success"] != true {
			t.Fatalf("expected success, got %v", got)
		}
	}

	w := env.do(t, http.MethodGet, "/api/interviews", "user-1", "")
	list := decode[struct {
		Interviews []struct {
			ID        string   `json:"id"`
			TechStack []string `json:"techstack"`
			Finalized bool     `json:"finalized"`
		} `json:"interviews"`
	}](t, w)
	if len(list.Interviews) != 2 {
		t.Fatalf("expected 2 interviews, got %d", len(list.Interviews))
	}
	if !list.Interviews[0].Finalized || strings.Join(list.Interviews[0].TechStack, ",") != "React,TypeScript" {
		t.Fatalf("unexpected interview: %+v", list.Interviews[0])
	}

	// Nobody else's interviews exist yet.
	w = env.do(t, http.MethodGet, "/api/interviews/latest", "user-1", "")
	if n := len(decode[map[string][]any](t, w)["interviews"]); n != 0 {
		t.Fatalf("expected no latest interviews for the author, got %d", n)
	}
	w = env.do(t, http.MethodGet, "/api/interviews/latest", "user-2", "")
	if n := len(decode[map[string][]any](t, w)["interviews"]); n != 2 {
		t.Fatalf("expected 2 latest interviews for another user, got %d", n)
	}
}

func TestGeneratePostFailures(t *testing.T) {
	env := newTestEnv(t)

	tests := map[string]string{
		"malformed body": `{"role":`,
		"missing role":   `{"level":"Senior","amount":3,"userid":"user-1"}`,
		"bad amount":     `{"role":"r","level":"l","amount":true,"userid":"user-1"}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/vapi/generate", "", body)
			got := decode[map[string]any](t, w)
			if w.Code != http.StatusInternalServerError || got["success"] != false || got["error"] == "" {
				t.Fatalf("expected structured 500, got %d %v", w.Code, got)
			}
		})
	}
}

func TestInterviewNotFound(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(t, http.MethodGet, "/api/interviews/missing", "user-1", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/interviews/missing/feedback", "user-1", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestProtectedRoutesRequireUser(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/interviews", "/api/calls/abc"} {
		if w := env.do(t, http.MethodGet, path, "", ""); w.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, w.Code)
		}
	}
}

func TestInterviewCallProducesFeedback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.interviews.CreateInterview(ctx, &domain.Interview{
		ID:        "intv1",
		Role:      "Backend Engineer",
		UserID:    "user-2",
		Questions: []string{"What is a channel?", "What is a mutex?"},
		Finalized: true,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("seed interview: %v", err)
	}

	w := env.do(t, http.MethodPost, "/api/calls", "user-1", `{"type":"interview","interview_id":"intv1"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	started := decode[struct {
		Call callView `json:"call"`
	}](t, w).Call
	if started.Status != string(domain.CallConnecting) {
		t.Fatalf("expected CONNECTING, got %s", started.Status)
	}

	env.vapi.mu.Lock()
	vars := env.vapi.created[0]["workflowOverrides"].(map[string]any)["variableValues"].(map[string]any)
	env.vapi.mu.Unlock()
	if vars["username"] != "Ada" || vars["userid"] != "user-1" || vars["questions"] != "- What is a channel?\n- What is a mutex?" {
		t.Fatalf("unexpected variable values: %v", vars)
	}

	env.webhook(t, "vapi-1", `"type":"status-update","status":"in-progress"`)
	env.webhook(t, "vapi-1", `"type":"transcript","role":"assistant","transcriptType":"partial","transcript":"Wha"`)
	env.webhook(t, "vapi-1", `"type":"transcript","role":"assistant","transcriptType":"final","transcript":"What is a channel?"`)
	env.webhook(t, "vapi-1", `"type":"transcript","role":"user","transcriptType":"final","transcript":"A typed conduit."`)

	w = env.do(t, http.MethodGet, "/api/calls/"+started.ID, "user-1", "")
	active := decode[callView](t, w)
	if active.Status != string(domain.CallActive) || len(active.Transcript) != 2 || active.LatestMessage != "A typed conduit." {
		t.Fatalf("unexpected active view: %+v", active)
	}

	// Other users cannot see the call.
	if w := env.do(t, http.MethodGet, "/api/calls/"+started.ID, "user-2", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for other user, got %d", w.Code)
	}

	env.webhook(t, "vapi-1", `"type":"status-update","status":"ended","endedReason":"customer-ended-call"`)

	view := waitForRedirect(t, env, started.ID)
	if !strings.HasPrefix(view.Redirect, "/interview/intv1/feedback/") || view.Status != string(domain.CallFinished) {
		t.Fatalf("unexpected finished view: %+v", view)
	}

	w = env.do(t, http.MethodGet, "/api/interviews/intv1/feedback", "user-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected stored feedback, got %d", w.Code)
	}
	fb := decode[map[string]any](t, w)
	if !strings.HasSuffix(view.Redirect, "/"+fb["id"].(string)) {
		t.Fatalf("redirect %q does not point at feedback %v", view.Redirect, fb["id"])
	}
}

func TestGenerateCallRedirectsHome(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/calls", "user-1", `{"type":"generate","user_name":"Grace"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	id := decode[struct {
		Call callView `json:"call"`
	}](t, w).Call.ID

	env.webhook(t, "vapi-1", `"type":"status-update","status":"in-progress"`)
	env.webhook(t, "vapi-1", `"type":"transcript","role":"user","transcriptType":"final","transcript":"Frontend, junior, five questions"`)
	env.webhook(t, "vapi-1", `"type":"status-update","status":"ended"`)

	if view := waitForRedirect(t, env, id); view.Redirect != domain.HomeRoute {
		t.Fatalf("expected redirect home, got %q", view.Redirect)
	}
	if w := env.do(t, http.MethodGet, "/api/interviews", "user-1", ""); len(decode[map[string][]any](t, w)["interviews"]) != 0 {
		t.Fatalf("generate call must not persist anything by itself")
	}
}

func TestStartCallValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		body string
		want int
	}{
		{`{"type":"podcast"}`, http.StatusBadRequest},
		{`not json`, http.StatusBadRequest},
		{`{"type":"interview"}`, http.StatusInternalServerError},
		{`{"type":"interview","interview_id":"missing"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		if w := env.do(t, http.MethodPost, "/api/calls", "user-1", tt.body); w.Code != tt.want {
			t.Fatalf("%s: expected %d, got %d body=%s", tt.body, tt.want, w.Code, w.Body.String())
		}
	}
}

func TestEndCall(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/calls", "user-1", `{"type":"generate"}`)
	id := decode[struct {
		Call callView `json:"call"`
	}](t, w).Call.ID
	env.webhook(t, "vapi-1", `"type":"status-update","status":"in-progress"`)

	env.vapi.mu.Lock()
	env.vapi.failStop = true
	env.vapi.mu.Unlock()
	if w := env.do(t, http.MethodPost, "/api/calls/"+id+"/end", "user-1", ""); w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502 when stop fails, got %d", w.Code)
	}

	env.vapi.mu.Lock()
	env.vapi.failStop = false
	env.vapi.mu.Unlock()
	if w := env.do(t, http.MethodPost, "/api/calls/"+id+"/end", "user-1", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	if w := env.do(t, http.MethodPost, "/api/calls/unknown/end", "user-1", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown call, got %d", w.Code)
	}
}

func TestCallSocketStreamsUpdates(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	w := env.do(t, http.MethodPost, "/api/calls", "user-1", `{"type":"generate"}`)
	id := decode[struct {
		Call callView `json:"call"`
	}](t, w).Call.ID

	header := http.Header{}
	header.Set("X-User-ID", "user-1")
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/calls/"+id+"/ws", header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first callView
	if err := conn.ReadJSON(&first); err != nil || first.Status != string(domain.CallConnecting) {
		t.Fatalf("expected CONNECTING view, got %+v err=%v", first, err)
	}

	env.webhook(t, "vapi-1", `"type":"status-update","status":"in-progress"`)
	var next callView
	if err := conn.ReadJSON(&next); err != nil || next.Status != string(domain.CallActive) {
		t.Fatalf("expected ACTIVE view, got %+v err=%v", next, err)
	}
}

func waitForRedirect(t *testing.T, env *testEnv, id string) callView {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		view := decode[callView](t, env.do(t, http.MethodGet, "/api/calls/"+id, "user-1", ""))
		if view.Redirect != "" {
			return view
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for redirect on call %s", id)
	return callView{}
}
