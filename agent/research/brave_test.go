package research

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		ResultCount: 3,
		Timeout:     2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestResearchRendersResults(t *testing.T) {
	t.Parallel()

	var gotToken, gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Subscription-Token")
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"web":{"results":[
			{"title":"Reducing churn in manufacturing","url":"https://example.com/a","description":"Playbook for at-risk accounts"},
			{"title":"Renewal save plays","url":"https://example.com/b","description":""}
		]}}`))
	})

	out, err := client.Research(context.Background(), "customer retention strategies Manufacturing")
	if err != nil {
		t.Fatalf("Research: %v", err)
	}

	if gotToken != "test-key" {
		t.Errorf("subscription token = %q", gotToken)
	}
	if gotQuery != "customer retention strategies Manufacturing" {
		t.Errorf("query = %q", gotQuery)
	}
	for _, want := range []string{"Reducing churn in manufacturing", "Playbook for at-risk accounts", "Renewal save plays"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestResearchEmptyResults(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"web":{"results":[]}}`))
	})

	out, err := client.Research(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if out != "" {
		t.Errorf("output = %q, want empty", out)
	}
}

func TestResearchNonOKStatus(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	if _, err := client.Research(context.Background(), "anything"); err == nil {
		t.Fatal("expected error for non-200 status")
	}
}

func TestResearchEmptyTopic(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent for empty topic")
	})

	if _, err := client.Research(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty topic")
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{APIKey: ""}); err == nil {
		t.Error("expected error for missing api key")
	}
	if _, err := NewClient(Config{APIKey: "k", BaseURL: "not a url"}); err == nil {
		t.Error("expected error for invalid base url")
	}
}
