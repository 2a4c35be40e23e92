package droid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
)

type stubGenerator struct {
	response string
	err      error
	prompts  []string
}

func (s *stubGenerator) GenerateContent(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func newTestServer(t *testing.T, tr taskResponse) (*httptest.Server, *string) {
	t.Helper()

	var lastGoal string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/tasks" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}

		var req taskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode task request: %v", err)
		}
		lastGoal = req.Goal

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(tr); err != nil {
			t.Errorf("encode task response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server, &lastGoal
}

func TestDiscoverExtractsPostings(t *testing.T) {
	server, lastGoal := newTestServer(t, taskResponse{
		Success: true,
		Output:  "Found two jobs on the search page.",
	})

	gen := &stubGenerator{response: `{"jobs": [
		{"title": "Backend Intern", "company": "Acme", "location": "Remote"},
		{"title": "", "company": ""},
		{"title": "Data Intern", "company": "Globex", "url": "https://example.com/42"}
	]}`}

	client := New(server.URL, "", NewExtractor(gen, zap.NewNop()), zap.NewNop())

	postings, err := client.Discover(context.Background(), "search for internships")
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if *lastGoal != "search for internships" {
		t.Fatalf("goal not forwarded, got %q", *lastGoal)
	}
	if len(postings) != 2 {
		t.Fatalf("expected 2 postings after dropping the empty row, got %d", len(postings))
	}
	if postings[0].Title != "Backend Intern" || postings[0].Company != "Acme" {
		t.Fatalf("unexpected first posting: %+v", postings[0])
	}
	if postings[1].URL != "https://example.com/42" {
		t.Fatalf("unexpected second posting: %+v", postings[1])
	}
}

func TestDiscoverFailedTask(t *testing.T) {
	server, _ := newTestServer(t, taskResponse{Success: false, Reason: "app not installed"})

	gen := &stubGenerator{response: `{"jobs": []}`}
	client := New(server.URL, "", NewExtractor(gen, zap.NewNop()), zap.NewNop())

	if _, err := client.Discover(context.Background(), "search"); err == nil {
		t.Fatalf("expected an error for a failed task")
	}
	if len(gen.prompts) != 0 {
		t.Fatalf("extractor must not run for a failed task")
	}
}

func TestSubmitConfirmed(t *testing.T) {
	server, _ := newTestServer(t, taskResponse{
		Success: true,
		Output:  "Tapped Easy Apply, saw the 'Application sent' screen.",
	})

	gen := &stubGenerator{response: "```json\n{\"success\": true, \"message\": \"Application sent\"}\n```"}
	client := New(server.URL, "", NewExtractor(gen, zap.NewNop()), zap.NewNop())

	conf, err := client.Submit(context.Background(), "apply to Backend Intern at Acme")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !conf.Success {
		t.Fatalf("expected a successful confirmation, got %+v", conf)
	}
	if conf.Message != "Application sent" {
		t.Fatalf("unexpected message: %q", conf.Message)
	}
}

func TestSubmitGatewayFailureIsUnsuccessfulConfirmation(t *testing.T) {
	server, _ := newTestServer(t, taskResponse{Success: false, Reason: "form required a cover letter"})

	gen := &stubGenerator{response: `{"success": true}`}
	client := New(server.URL, "", NewExtractor(gen, zap.NewNop()), zap.NewNop())

	conf, err := client.Submit(context.Background(), "apply")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if conf.Success {
		t.Fatalf("failed gateway task must not confirm")
	}
	if conf.Message != "form required a cover letter" {
		t.Fatalf("unexpected message: %q", conf.Message)
	}
	if len(gen.prompts) != 0 {
		t.Fatalf("extractor must not run for a failed task")
	}
}

func TestSubmitAmbiguousReport(t *testing.T) {
	server, _ := newTestServer(t, taskResponse{
		Success: true,
		Output:  "The app showed a spinner and then returned to the feed.",
	})

	gen := &stubGenerator{response: `{"success": "no", "message": "No confirmation screen seen"}`}
	client := New(server.URL, "", NewExtractor(gen, zap.NewNop()), zap.NewNop())

	conf, err := client.Submit(context.Background(), "apply")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if conf.Success {
		t.Fatalf("ambiguous report must map to an unsuccessful confirmation")
	}
}

func TestFetchRecentExtractsMessages(t *testing.T) {
	server, _ := newTestServer(t, taskResponse{
		Success: true,
		Output:  "Read three recent emails in the inbox.",
	})

	gen := &stubGenerator{response: `{"messages": [
		{"subject": "Interview invitation", "body": "We would like to schedule a call"},
		{"subject": "", "body": ""}
	]}`}
	client := New(server.URL, "", NewExtractor(gen, zap.NewNop()), zap.NewNop())

	messages, err := client.FetchRecent(context.Background(), "check gmail")
	if err != nil {
		t.Fatalf("fetch recent: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected 1 message after dropping the empty row, got %d", len(messages))
	}
	if messages[0].Subject != "Interview invitation" {
		t.Fatalf("unexpected message: %+v", messages[0])
	}
}

func TestRunTaskBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	client := New(server.URL, "", NewExtractor(&stubGenerator{}, zap.NewNop()), zap.NewNop())

	if _, err := client.Discover(context.Background(), "search"); err == nil {
		t.Fatalf("expected an error for a bad gateway status")
	}
}

func TestExtractorReportFlowsIntoPrompt(t *testing.T) {
	gen := &stubGenerator{response: `{"jobs": []}`}
	extractor := NewExtractor(gen, zap.NewNop())

	if _, err := extractor.Postings(context.Background(), "nothing found today"); err != nil {
		t.Fatalf("postings: %v", err)
	}
	if len(gen.prompts) != 1 {
		t.Fatalf("expected one generation, got %d", len(gen.prompts))
	}
	prompt := gen.prompts[0]
	if !strings.Contains(prompt, "nothing found today") {
		t.Fatalf("prompt does not contain the report: %q", prompt)
	}
	if strings.Contains(prompt, "{{REPORT}}") {
		t.Fatalf("placeholder left unexpanded")
	}
}
