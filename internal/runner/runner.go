// Package runner drives one job source end to end: discover postings
// through the device agent, rank them against the profile, skip what the
// ledger already holds and submit applications up to the source budget.
package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "embed"

	"go.uber.org/zap"

	"jobdroid/internal/ledger"
	"jobdroid/internal/matching"
	"jobdroid/internal/surface"
)

//go:embed discover_goal.md
var discoverGoalTemplate string

//go:embed apply_goal.md
var applyGoalTemplate string

// Source describes one job platform to work through.
type Source struct {
	// Name identifies the source in logs and ledger records.
	Name string
	// App is the on-device application to drive; defaults to Name.
	App string
	// Search is the free-text search the agent runs on the platform.
	Search string
	// Budget caps submissions for a single session.
	Budget int
	// Enabled sources are skipped entirely when false.
	Enabled bool
}

// Applicant holds the details the agent fills into application forms.
type Applicant struct {
	Name  string
	Email string
	Phone string
}

// Ledger is the slice of the application store the runner needs.
type Ledger interface {
	AlreadyApplied(company, title, source string) (bool, error)
	RecordApplication(rec ledger.Record) (string, error)
}

// Result summarizes one source run. Errors are per-posting failures; the
// run itself keeps going past them.
type Result struct {
	Source    string
	Found     int
	Matched   int
	Submitted int
	Errors    []string
}

// Runner executes source runs. It is stateless between runs; all durable
// state lives in the ledger.
type Runner struct {
	agent       surface.Agent
	engine      *matching.Engine
	ledger      Ledger
	applicant   Applicant
	taskTimeout time.Duration
	dryRun      bool
	logger      *zap.Logger
}

// New builds a runner. In dry-run mode discovery and matching happen but
// nothing is submitted or recorded.
func New(agent surface.Agent, engine *matching.Engine, ldgr Ledger, applicant Applicant, taskTimeout time.Duration, dryRun bool, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		agent:       agent,
		engine:      engine,
		ledger:      ldgr,
		applicant:   applicant,
		taskTimeout: taskTimeout,
		dryRun:      dryRun,
		logger:      logger,
	}
}

// Run works through a single source. It always returns a result; failures
// of individual applications are collected, not fatal. Context cancellation
// stops the run between postings.
func (r *Runner) Run(ctx context.Context, source Source) *Result {
	result := &Result{Source: source.Name}
	log := r.logger.With(zap.String("source", source.Name))

	log.Info("source run started", zap.String("search", source.Search))

	discoverCtx, cancel := context.WithTimeout(ctx, r.taskTimeout)
	postings, err := r.agent.Discover(discoverCtx, buildDiscoverGoal(source))
	cancel()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("discovery failed: %v", err))
		log.Error("discovery failed", zap.Error(err))
		return result
	}

	for _, p := range postings {
		p.Source = source.Name
	}
	result.Found = len(postings)

	ranked := r.engine.RankAndFilter(postings, source.Budget)
	result.Matched = len(ranked)

	log.Info("postings evaluated",
		zap.Int("found", result.Found),
		zap.Int("matched", result.Matched),
	)

	if r.dryRun {
		for _, candidate := range ranked {
			log.Info("would apply",
				zap.String("title", candidate.Posting.Title),
				zap.String("company", candidate.Posting.Company),
				zap.Float64("score", candidate.Result.Score),
			)
		}
		return result
	}

	for _, candidate := range ranked {
		if err := ctx.Err(); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("run canceled: %v", err))
			return result
		}
		if source.Budget > 0 && result.Submitted >= source.Budget {
			break
		}

		p := candidate.Posting
		applied, err := r.ledger.AlreadyApplied(p.Company, p.Title, source.Name)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("dedup check for %q at %q: %v", p.Title, p.Company, err))
			continue
		}
		if applied {
			log.Debug("skipping duplicate",
				zap.String("title", p.Title),
				zap.String("company", p.Company),
			)
			continue
		}

		if err := r.apply(ctx, source, candidate); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("apply to %q at %q: %v", p.Title, p.Company, err))
			log.Warn("application failed",
				zap.String("title", p.Title),
				zap.String("company", p.Company),
				zap.Error(err),
			)
			continue
		}
		result.Submitted++
	}

	log.Info("source run finished",
		zap.Int("submitted", result.Submitted),
		zap.Int("errors", len(result.Errors)),
	)
	return result
}

// apply submits one application and records it. The ledger write happens
// only after the agent confirms submission, so the ledger never holds
// unconfirmed applications.
func (r *Runner) apply(ctx context.Context, source Source, candidate matching.Scored) error {
	p := candidate.Posting

	goal := buildApplyGoal(source, p.Title, p.Company, r.applicant)

	submitCtx, cancel := context.WithTimeout(ctx, r.taskTimeout)
	conf, err := r.agent.Submit(submitCtx, goal)
	cancel()
	if err != nil {
		return err
	}
	if conf == nil {
		return fmt.Errorf("agent returned no confirmation")
	}
	if !conf.Success {
		return fmt.Errorf("not confirmed: %s", conf.Message)
	}

	id, err := r.ledger.RecordApplication(ledger.Record{
		Source:     source.Name,
		Company:    p.Company,
		Title:      p.Title,
		Location:   p.Location,
		URL:        p.URL,
		Status:     ledger.StatusApplied,
		Experience: p.Experience,
		Notes:      candidate.Result.Reason(),
	})
	if err != nil {
		return fmt.Errorf("record application: %w", err)
	}

	r.logger.Info("application submitted",
		zap.String("source", source.Name),
		zap.String("application_id", id),
		zap.String("title", p.Title),
		zap.String("company", p.Company),
		zap.Float64("score", candidate.Result.Score),
	)
	return nil
}

func buildDiscoverGoal(source Source) string {
	goal := strings.ReplaceAll(discoverGoalTemplate, "{{APP}}", appName(source))
	goal = strings.ReplaceAll(goal, "{{SEARCH}}", source.Search)
	return goal
}

func buildApplyGoal(source Source, title, company string, applicant Applicant) string {
	goal := strings.ReplaceAll(applyGoalTemplate, "{{APP}}", appName(source))
	goal = strings.ReplaceAll(goal, "{{TITLE}}", title)
	goal = strings.ReplaceAll(goal, "{{COMPANY}}", company)
	goal = strings.ReplaceAll(goal, "{{NAME}}", applicant.Name)
	goal = strings.ReplaceAll(goal, "{{EMAIL}}", applicant.Email)
	goal = strings.ReplaceAll(goal, "{{PHONE}}", applicant.Phone)
	return goal
}

func appName(source Source) string {
	if source.App != "" {
		return source.App
	}
	return source.Name
}
