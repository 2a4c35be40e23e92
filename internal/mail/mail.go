// Package mail pulls recent mailbox messages through the device agent and
// classifies them by keyword. Classification never calls a model: it is a
// fixed, deterministic keyword scan.
package mail

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "embed"

	"go.uber.org/zap"

	"jobdroid/internal/surface"
)

// Kind labels what a notification means for an application.
type Kind string

const (
	KindInterview Kind = "interview"
	KindRejection Kind = "rejection"
	KindOffer     Kind = "offer"
	KindNone      Kind = "none"
)

// Keyword sets scanned over subject and body. A message matching several
// sets takes the first kind in interview, rejection, offer order.
var (
	interviewKeywords = []string{"interview", "schedule", "meet", "discuss", "round", "assessment"}
	rejectionKeywords = []string{"regret", "unfortunately", "not selected", "not moving forward", "rejected"}
	offerKeywords     = []string{"offer", "congratulations", "selected", "pleased to inform"}
)

// Classify labels a message by scanning its subject and body,
// case-insensitively.
func Classify(subject, body string) Kind {
	text := strings.ToLower(subject + " " + body)

	for _, kw := range interviewKeywords {
		if strings.Contains(text, kw) {
			return KindInterview
		}
	}
	for _, kw := range rejectionKeywords {
		if strings.Contains(text, kw) {
			return KindRejection
		}
	}
	for _, kw := range offerKeywords {
		if strings.Contains(text, kw) {
			return KindOffer
		}
	}
	return KindNone
}

// Feed is the slice of the device agent the checker needs.
type Feed interface {
	FetchRecent(ctx context.Context, goal string) ([]*surface.Message, error)
}

// Update is one classified notification.
type Update struct {
	Subject string
	Kind    Kind
}

// Summary is the outcome of one mailbox check.
type Summary struct {
	Checked    int
	Updates    []Update
	Interviews int
	Rejections int
	Offers     int
	Errors     []string
}

//go:embed fetch_goal.md
var fetchGoalTemplate string

// Checker runs the mailbox pass of a session.
type Checker struct {
	feed        Feed
	taskTimeout time.Duration
	logger      *zap.Logger
}

// NewChecker builds a checker over the given feed.
func NewChecker(feed Feed, taskTimeout time.Duration, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Checker{
		feed:        feed,
		taskTimeout: taskTimeout,
		logger:      logger,
	}
}

// Check fetches recent messages and classifies them. Failures land in the
// summary instead of aborting the session: the mailbox pass is best-effort.
func (c *Checker) Check(ctx context.Context) *Summary {
	summary := &Summary{}

	fetchCtx, cancel := context.WithTimeout(ctx, c.taskTimeout)
	messages, err := c.feed.FetchRecent(fetchCtx, fetchGoalTemplate)
	cancel()
	if err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("fetch mailbox: %v", err))
		c.logger.Warn("mailbox check failed", zap.Error(err))
		return summary
	}

	summary.Checked = len(messages)
	for _, m := range messages {
		kind := Classify(m.Subject, m.Body)
		if kind == KindNone {
			continue
		}

		summary.Updates = append(summary.Updates, Update{Subject: m.Subject, Kind: kind})
		switch kind {
		case KindInterview:
			summary.Interviews++
		case KindRejection:
			summary.Rejections++
		case KindOffer:
			summary.Offers++
		}

		c.logger.Info("notification classified",
			zap.String("subject", m.Subject),
			zap.String("kind", string(kind)),
		)
	}

	c.logger.Info("mailbox check finished",
		zap.Int("checked", summary.Checked),
		zap.Int("updates", len(summary.Updates)),
	)
	return summary
}
