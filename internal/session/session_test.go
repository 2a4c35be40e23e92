package session

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"jobdroid/internal/mail"
	"jobdroid/internal/runner"
)

type scriptedRunner struct {
	ran     []string
	results map[string]*runner.Result
	panics  map[string]bool
	cancel  context.CancelFunc
}

func (s *scriptedRunner) Run(_ context.Context, source runner.Source) *runner.Result {
	s.ran = append(s.ran, source.Name)
	if s.cancel != nil {
		s.cancel()
	}
	if s.panics[source.Name] {
		panic("agent wedged")
	}
	if res, ok := s.results[source.Name]; ok {
		return res
	}
	return &runner.Result{Source: source.Name}
}

type stubChecker struct {
	called  bool
	summary *mail.Summary
}

func (s *stubChecker) Check(context.Context) *mail.Summary {
	s.called = true
	if s.summary != nil {
		return s.summary
	}
	return &mail.Summary{}
}

type waitRecorder struct {
	waits []time.Duration
}

func (w *waitRecorder) wait(ctx context.Context, d time.Duration) error {
	w.waits = append(w.waits, d)
	return ctx.Err()
}

func sources(names ...string) []runner.Source {
	out := make([]runner.Source, 0, len(names))
	for _, name := range names {
		out = append(out, runner.Source{Name: name, Enabled: true, Budget: 1})
	}
	return out
}

func TestRunVisitsSourcesInOrderWithCooldowns(t *testing.T) {
	sr := &scriptedRunner{results: map[string]*runner.Result{
		"linkedin": {Source: "linkedin", Found: 5, Matched: 2, Submitted: 2},
		"naukri":   {Source: "naukri", Found: 3, Matched: 1, Submitted: 1},
	}}
	checker := &stubChecker{summary: &mail.Summary{Checked: 2}}
	waits := &waitRecorder{}

	o := New(sr, checker, sources("linkedin", "naukri"), 30*time.Second, zap.NewNop())
	o.wait = waits.wait

	report := o.Run(context.Background())

	if got := []string{"linkedin", "naukri"}; len(sr.ran) != 2 || sr.ran[0] != got[0] || sr.ran[1] != got[1] {
		t.Fatalf("unexpected source order: %v", sr.ran)
	}
	if len(waits.waits) != 2 {
		t.Fatalf("expected a cooldown after each source, got %v", waits.waits)
	}
	for _, d := range waits.waits {
		if d != 30*time.Second {
			t.Fatalf("unexpected cooldown: %v", d)
		}
	}
	if !checker.called || report.Mail == nil || report.Mail.Checked != 2 {
		t.Fatalf("expected the mailbox pass to run, got %+v", report.Mail)
	}

	found, matched, submitted, errors := report.Totals()
	if found != 8 || matched != 3 || submitted != 3 || errors != 0 {
		t.Fatalf("unexpected totals: %d %d %d %d", found, matched, submitted, errors)
	}
}

func TestRunSkipsDisabledSources(t *testing.T) {
	sr := &scriptedRunner{}
	srcs := sources("linkedin", "naukri")
	srcs[1].Enabled = false

	o := New(sr, &stubChecker{}, srcs, 0, zap.NewNop())
	o.wait = (&waitRecorder{}).wait

	report := o.Run(context.Background())

	if len(sr.ran) != 1 || sr.ran[0] != "linkedin" {
		t.Fatalf("expected only the enabled source to run, got %v", sr.ran)
	}
	if len(report.Sources) != 1 {
		t.Fatalf("expected one result, got %d", len(report.Sources))
	}
}

func TestRunContainsPanickingSource(t *testing.T) {
	sr := &scriptedRunner{panics: map[string]bool{"linkedin": true}}
	checker := &stubChecker{}

	o := New(sr, checker, sources("linkedin", "naukri"), 0, zap.NewNop())
	o.wait = (&waitRecorder{}).wait

	report := o.Run(context.Background())

	if len(report.Sources) != 2 {
		t.Fatalf("expected both sources attempted, got %d", len(report.Sources))
	}
	first := report.Sources[0]
	if first.Source != "linkedin" || len(first.Errors) != 1 {
		t.Fatalf("expected the panic on the first result, got %+v", first)
	}
	if sr.ran[1] != "naukri" {
		t.Fatalf("expected the session to continue past the panic")
	}
	if !checker.called {
		t.Fatalf("expected the mailbox pass to still run")
	}
}

func TestRunReturnsPartialReportOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sr := &scriptedRunner{cancel: cancel}
	checker := &stubChecker{}

	o := New(sr, checker, sources("linkedin", "naukri"), time.Second, zap.NewNop())
	o.wait = (&waitRecorder{}).wait

	report := o.Run(ctx)

	if len(sr.ran) != 1 {
		t.Fatalf("expected the session to stop after the first source, got %v", sr.ran)
	}
	if len(report.Sources) != 1 {
		t.Fatalf("expected a partial report with one result, got %d", len(report.Sources))
	}
	if checker.called {
		t.Fatalf("mailbox pass must not run after cancellation")
	}
	if report.Mail != nil {
		t.Fatalf("expected nil mail summary on a canceled session")
	}
}
