// Package session coordinates one full run: every enabled source in
// configured order, a cooldown between platform visits, then the mailbox
// pass. A session never aborts because a single source misbehaved.
package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"jobdroid/internal/mail"
	"jobdroid/internal/runner"
	"jobdroid/internal/utils"
)

// SourceRunner executes one source end to end.
type SourceRunner interface {
	Run(ctx context.Context, source runner.Source) *runner.Result
}

// MailChecker runs the mailbox pass.
type MailChecker interface {
	Check(ctx context.Context) *mail.Summary
}

// Report is the session outcome. Sources holds one result per attempted
// source, in execution order; Mail is nil when the session was canceled
// before the mailbox pass.
type Report struct {
	Sources []*runner.Result
	Mail    *mail.Summary
}

// Totals sums the per-source counters.
func (r *Report) Totals() (found, matched, submitted, errors int) {
	for _, res := range r.Sources {
		found += res.Found
		matched += res.Matched
		submitted += res.Submitted
		errors += len(res.Errors)
	}
	return found, matched, submitted, errors
}

// Orchestrator runs sessions. The wait function is the cooldown seam,
// replaced in tests.
type Orchestrator struct {
	runner   SourceRunner
	checker  MailChecker
	sources  []runner.Source
	cooldown time.Duration
	wait     func(ctx context.Context, d time.Duration) error
	logger   *zap.Logger
}

// New builds an orchestrator over the given runner and checker.
func New(sourceRunner SourceRunner, checker MailChecker, sources []runner.Source, cooldown time.Duration, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		runner:   sourceRunner,
		checker:  checker,
		sources:  sources,
		cooldown: cooldown,
		wait:     utils.WaitFor,
		logger:   logger,
	}
}

// Run executes the session. It always returns a report, partial when the
// context is canceled mid-session. A panicking source run is contained:
// the panic becomes an error on that source's result and the session
// moves on.
func (o *Orchestrator) Run(ctx context.Context) *Report {
	report := &Report{}

	for _, source := range o.sources {
		if !source.Enabled {
			o.logger.Debug("source disabled, skipping", zap.String("source", source.Name))
			continue
		}
		if ctx.Err() != nil {
			o.logger.Warn("session canceled", zap.String("before_source", source.Name))
			return report
		}

		report.Sources = append(report.Sources, o.runSource(ctx, source))

		// Cooldown after every platform visit, including the last one
		// before the mailbox pass.
		if err := o.wait(ctx, o.cooldown); err != nil {
			o.logger.Warn("session canceled during cooldown", zap.Error(err))
			return report
		}
	}

	if ctx.Err() != nil {
		return report
	}
	report.Mail = o.checker.Check(ctx)

	found, matched, submitted, errors := report.Totals()
	o.logger.Info("session finished",
		zap.Int("sources", len(report.Sources)),
		zap.Int("found", found),
		zap.Int("matched", matched),
		zap.Int("submitted", submitted),
		zap.Int("errors", errors),
	)
	return report
}

func (o *Orchestrator) runSource(ctx context.Context, source runner.Source) (result *runner.Result) {
	defer func() {
		if r := recover(); r != nil {
			if result == nil {
				result = &runner.Result{Source: source.Name}
			}
			result.Errors = append(result.Errors, fmt.Sprintf("panic: %v", r))
			o.logger.Error("source run panicked",
				zap.String("source", source.Name),
				zap.Any("panic", r),
			)
		}
	}()

	return o.runner.Run(ctx, source)
}
