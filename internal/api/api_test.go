package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/growthloop/coachflow/internal/fallback"
	"github.com/growthloop/coachflow/internal/flow"
	"github.com/growthloop/coachflow/internal/models"
	"github.com/growthloop/coachflow/internal/store"
)

// apiEnvelope mirrors models.APIResponse with a raw result for re-decoding.
type apiEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	engine := flow.New(
		flow.WithStore(store.NewInMemoryStore()),
		flow.WithFallback(fallback.NewEngineWithSeed(1)),
	)
	return NewServer(engine)
}

func doRequest(t *testing.T, h http.Handler, method, path string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("failed to decode envelope: %v (body %s)", err, rec.Body.String())
	}
	return env
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := doRequest(t, h, http.MethodPost, "/api/sessions", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("start session status = %d, body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var result models.StartSessionResult
	if err := json.Unmarshal(env.Result, &result); err != nil {
		t.Fatalf("failed to decode start result: %v", err)
	}
	return result.SessionID
}

func TestStartSessionEndpoint(t *testing.T) {
	h := newTestServer(t).Router()
	rec := doRequest(t, h, http.MethodPost, "/api/sessions", `{"user_id":"user-7"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	env := decodeEnvelope(t, rec)
	if env.Status != "ok" {
		t.Errorf("status = %q", env.Status)
	}
	var result models.StartSessionResult
	if err := json.Unmarshal(env.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.SessionID == "" || result.UserID != "user-7" {
		t.Errorf("result = %+v", result)
	}
	if result.Response == nil || result.Response.Stage != models.StageIntake {
		t.Errorf("response = %+v", result.Response)
	}
	if len(result.Response.AvailableTopics) != 4 {
		t.Errorf("available topics = %v", result.Response.AvailableTopics)
	}
}

func TestStartSessionEndpoint_EmptyBody(t *testing.T) {
	h := newTestServer(t).Router()
	rec := doRequest(t, h, http.MethodPost, "/api/sessions", "")
	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201 for empty body", rec.Code)
	}
}

func TestSendMessageEndpoint(t *testing.T) {
	h := newTestServer(t).Router()
	id := createSession(t, h)

	rec := doRequest(t, h, http.MethodPost, "/api/sessions/"+id+"/messages",
		`{"message":"I keep putting off my most important work"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	var resp models.CoachingResponse
	if err := json.Unmarshal(env.Result, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message == "" || len(resp.Questions) == 0 {
		t.Errorf("incomplete coaching response: %+v", resp)
	}
	if !resp.DemoMode {
		t.Error("expected demo_mode true with no LLM configured")
	}
	if resp.EmotionalAnalysis == nil {
		t.Error("expected emotional analysis")
	}
}

func TestSendMessageEndpoint_Errors(t *testing.T) {
	h := newTestServer(t).Router()
	id := createSession(t, h)

	cases := []struct {
		name       string
		path       string
		body       string
		wantStatus int
	}{
		{"unknown session", "/api/sessions/nope/messages", `{"message":"hello there"}`, http.StatusNotFound},
		{"empty message", "/api/sessions/" + id + "/messages", `{"message":""}`, http.StatusBadRequest},
		{"bad type", "/api/sessions/" + id + "/messages", `{"message":"hi","type":"smoke_signal"}`, http.StatusBadRequest},
		{"malformed json", "/api/sessions/" + id + "/messages", `{"message":`, http.StatusBadRequest},
		{"invalid topic", "/api/sessions/" + id + "/messages", `{"message":"interpretive_dance","type":"topic_selection"}`, http.StatusBadRequest},
		{"too long", "/api/sessions/" + id + "/messages", `{"message":"` + strings.Repeat("a", models.MaxMessageLength+1) + `"}`, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, h, http.MethodPost, tc.path, tc.body)
			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tc.wantStatus, rec.Body.String())
			}
			if env := decodeEnvelope(t, rec); env.Status != "error" {
				t.Errorf("envelope status = %q, want error", env.Status)
			}
		})
	}
}

func TestTopicSelectionEndpoint(t *testing.T) {
	h := newTestServer(t).Router()
	id := createSession(t, h)

	rec := doRequest(t, h, http.MethodPost, "/api/sessions/"+id+"/messages",
		`{"message":"performance_improvement","type":"topic_selection"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var resp models.CoachingResponse
	if err := json.Unmarshal(env.Result, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Topic != "Performance Improvement" || resp.Stage != models.StageExploration {
		t.Errorf("response = %+v", resp)
	}

	// A second, different topic is rejected.
	rec = doRequest(t, h, http.MethodPost, "/api/sessions/"+id+"/messages",
		`{"message":"career_development","type":"topic_selection"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("re-selection status = %d, want 400", rec.Code)
	}
}

func TestGetSessionEndpoint(t *testing.T) {
	h := newTestServer(t).Router()
	id := createSession(t, h)

	rec := doRequest(t, h, http.MethodGet, "/api/sessions/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var state models.ConversationState
	if err := json.Unmarshal(env.Result, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if state.SessionID != id || state.CurrentStage != models.StageIntake {
		t.Errorf("state = %+v", state)
	}

	rec = doRequest(t, h, http.MethodGet, "/api/sessions/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing session status = %d, want 404", rec.Code)
	}
}

func TestTransitionStageEndpoint(t *testing.T) {
	h := newTestServer(t).Router()
	id := createSession(t, h)

	rec := doRequest(t, h, http.MethodPost, "/api/sessions/"+id+"/stage", `{"stage":"action_planning"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	env := decodeEnvelope(t, rec)
	var resp models.CoachingResponse
	if err := json.Unmarshal(env.Result, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Stage != models.StageActionPlanning || resp.ActionTemplate == nil {
		t.Errorf("response = %+v", resp)
	}

	rec = doRequest(t, h, http.MethodPost, "/api/sessions/"+id+"/stage", `{"stage":"hibernation"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid stage status = %d, want 400", rec.Code)
	}
}

func TestTopicsEndpoint(t *testing.T) {
	h := newTestServer(t).Router()
	rec := doRequest(t, h, http.MethodGet, "/api/topics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	var topics []flow.Topic
	if err := json.Unmarshal(env.Result, &topics); err != nil {
		t.Fatalf("decode topics: %v", err)
	}
	if len(topics) != 4 {
		t.Errorf("expected 4 topics, got %d", len(topics))
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestServer(t).Router()
	createSession(t, h)

	rec := doRequest(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var status healthStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if status.Status != "healthy" {
		t.Errorf("health status = %q", status.Status)
	}
	if status.LLMConfigured {
		t.Error("expected llm_configured false in test server")
	}
	if status.ActiveSessions != 1 {
		t.Errorf("active sessions = %d, want 1", status.ActiveSessions)
	}
}

var errStoreDown = errors.New("store unavailable")

// failingStore fails every operation, forcing the handlers' unexpected-error path.
type failingStore struct{}

func (failingStore) SaveSession(models.ConversationState) error { return errStoreDown }
func (failingStore) GetSession(string) (*models.ConversationState, error) {
	return nil, errStoreDown
}
func (failingStore) DeleteSession(string) error                    { return errStoreDown }
func (failingStore) ListSessions() ([]models.ConversationState, error) { return nil, errStoreDown }
func (failingStore) Close() error                                  { return nil }

func TestSendMessageEndpoint_StoreFailureReturnsApology(t *testing.T) {
	engine := flow.New(
		flow.WithStore(failingStore{}),
		flow.WithFallback(fallback.NewEngineWithSeed(1)),
	)
	h := NewServer(engine).Router()

	rec := doRequest(t, h, http.MethodPost, "/api/sessions/any/messages", `{"message":"hello coach"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 (body %s)", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	if env.Status != "error" {
		t.Errorf("envelope status = %q, want error", env.Status)
	}
	var resp models.CoachingResponse
	if err := json.Unmarshal(env.Result, &resp); err != nil {
		t.Fatalf("decode apology: %v", err)
	}
	if resp.Message == "" || len(resp.Questions) == 0 {
		t.Errorf("apology envelope must carry a message and a question: %+v", resp)
	}
	if strings.Contains(resp.Message, "store unavailable") {
		t.Error("internal error details leaked into the apology message")
	}
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t).Router()
	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("allow origin = %q", got)
	}
	if rec.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Error("wildcard origin must not allow credentials")
	}
}

func TestCORS_NoOriginHeader(t *testing.T) {
	h := newTestServer(t).Router()
	rec := doRequest(t, h, http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, ok := rec.Header()["Access-Control-Allow-Origin"]; ok {
		t.Error("request without Origin header must not receive CORS headers")
	}
}
