package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	advisorx "github.com/tanpawarit/anti-churn-agent/agent/agents/advisor"
	contractx "github.com/tanpawarit/anti-churn-agent/agent/contract"
	loopx "github.com/tanpawarit/anti-churn-agent/agent/loop"
	memoryx "github.com/tanpawarit/anti-churn-agent/agent/memory"
)

type fakeStore struct {
	turns map[string][]memoryx.Turn
}

func (f *fakeStore) Append(ctx context.Context, sessionID string, turn memoryx.Turn) error {
	f.turns[sessionID] = append(f.turns[sessionID], turn)
	return nil
}

func (f *fakeStore) Turns(ctx context.Context, sessionID string) ([]memoryx.Turn, error) {
	return f.turns[sessionID], nil
}

func (f *fakeStore) Summarize(ctx context.Context, sessionID string) (string, error) {
	if len(f.turns[sessionID]) == 0 {
		return fmt.Sprintf("No conversation history found for session %s.", sessionID), nil
	}
	return fmt.Sprintf("Conversation summary (session %s, %d turns)", sessionID, len(f.turns[sessionID])), nil
}

func (f *fakeStore) Clear(ctx context.Context, sessionID string) error {
	delete(f.turns, sessionID)
	return nil
}

type fakeGenerator struct{ draft string }

func (f *fakeGenerator) Generate(ctx context.Context, req contractx.GenerationRequest) (string, error) {
	return f.draft, nil
}

type fakeEvaluator struct{ eval contractx.Evaluation }

func (f *fakeEvaluator) Evaluate(ctx context.Context, query string, draft string) (contractx.Evaluation, error) {
	return f.eval, nil
}

func newTestRouter(t *testing.T) (chi.Router, *fakeStore) {
	t.Helper()

	store := &fakeStore{turns: map[string][]memoryx.Turn{}}
	engine, err := loopx.New(
		&fakeGenerator{draft: "run an executive business review"},
		&fakeEvaluator{eval: contractx.Evaluation{Verdict: contractx.VerdictPass, Score: 8, Feedback: "good"}},
		loopx.Config{},
	)
	if err != nil {
		t.Fatalf("loop.New() error = %v", err)
	}
	advisor, err := advisorx.New(engine, store, nil)
	if err != nil {
		t.Fatalf("advisor.New() error = %v", err)
	}

	r := chi.NewRouter()
	NewHandler(advisor).RegisterRoutes(r)
	return r, store
}

func TestChatMintsSessionID(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	body := bytes.NewBufferString(`{"message":"how do we keep this account?"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID == "" {
		t.Error("session id should be minted when absent")
	}
	if resp.Reply != "run an executive business review" {
		t.Errorf("reply = %q", resp.Reply)
	}
	if !resp.Persisted {
		t.Error("reply should be persisted")
	}
}

func TestChatReusesSessionID(t *testing.T) {
	t.Parallel()

	router, store := newTestRouter(t)

	body := bytes.NewBufferString(`{"session_id":"s42","message":"retention plan?"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID != "s42" {
		t.Errorf("session id = %q, want s42", resp.SessionID)
	}
	if len(store.turns["s42"]) != 1 {
		t.Errorf("turns persisted = %d, want 1", len(store.turns["s42"]))
	}
}

func TestChatEmptyMessage(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	body := bytes.NewBufferString(`{"session_id":"s1","message":"  "}`)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestChatMalformedBody(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHighRiskEndpointWithoutDataset(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/customers/high-risk", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Customers []json.RawMessage `json:"customers"`
		Threshold float64           `json:"threshold"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Customers) != 0 {
		t.Errorf("customers = %d, want 0 without a dataset", len(resp.Customers))
	}
	if resp.Threshold != 0.70 {
		t.Errorf("threshold = %v, want default 0.70", resp.Threshold)
	}
}

func TestHighRiskEndpointInvalidThreshold(t *testing.T) {
	t.Parallel()

	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/customers/high-risk?threshold=2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	t.Parallel()

	router, store := newTestRouter(t)
	store.turns["s7"] = []memoryx.Turn{{Seq: 1, Query: "q", Response: "a"}}

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/s7/summary", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp summaryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(resp.Summary, "1 turns") {
		t.Errorf("summary = %q", resp.Summary)
	}
}

func TestClearSessionEndpoint(t *testing.T) {
	t.Parallel()

	router, store := newTestRouter(t)
	store.turns["s9"] = []memoryx.Turn{{Seq: 1, Query: "q", Response: "a"}}

	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/s9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if len(store.turns["s9"]) != 0 {
		t.Error("session should be cleared")
	}

	// Clearing again is idempotent.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/s9", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("second clear status = %d, want 204", rec.Code)
	}
}
