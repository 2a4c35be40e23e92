// Package droid talks to a droidrun-style automation gateway: an HTTP
// service wrapping an on-device agent that executes natural-language goals
// on the phone. The gateway returns free-text task reports; an Extractor
// turns those into structured results.
package droid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"jobdroid/internal/jobs"
	"jobdroid/internal/surface"
)

const defaultUserAgent = "jobdroid"

// Client drives the gateway. Timeouts come from the caller's context, not
// from the http.Client: agent tasks routinely run for minutes.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	UserAgent  string

	extractor *Extractor
	logger    *zap.Logger
}

type taskRequest struct {
	Goal string `json:"goal"`
}

type taskResponse struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
	Output  string `json:"output,omitempty"`
}

// New creates a gateway client. The extractor is required: raw task reports
// never leave this package.
func New(baseURL, userAgent string, extractor *Extractor, logger *zap.Logger) *Client {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
		UserAgent:  userAgent,
		extractor:  extractor,
		logger:     logger,
	}
}

// Discover runs a search goal and extracts the postings from the report.
func (c *Client) Discover(ctx context.Context, goal string) ([]*jobs.Posting, error) {
	tr, err := c.runTask(ctx, goal)
	if err != nil {
		return nil, err
	}
	if !tr.Success {
		return nil, fmt.Errorf("discovery task failed: %s", tr.Reason)
	}

	postings, err := c.extractor.Postings(ctx, tr.Output)
	if err != nil {
		return nil, err
	}

	// The agent sometimes pads its report with placeholder rows.
	kept := postings[:0]
	for _, p := range postings {
		if p.Title == "" && p.Company == "" {
			continue
		}
		kept = append(kept, p)
	}

	c.logger.Debug("discovery task finished", zap.Int("postings", len(kept)))
	return kept, nil
}

// Submit runs an application goal. A task the gateway itself marks failed
// becomes an unsuccessful confirmation, not an error: the caller treats
// both paths as "not applied".
func (c *Client) Submit(ctx context.Context, goal string) (*surface.Confirmation, error) {
	tr, err := c.runTask(ctx, goal)
	if err != nil {
		return nil, err
	}
	if !tr.Success {
		return &surface.Confirmation{Success: false, Message: tr.Reason}, nil
	}

	return c.extractor.Confirmation(ctx, tr.Output)
}

// FetchRecent runs a mailbox goal and extracts the messages found.
func (c *Client) FetchRecent(ctx context.Context, goal string) ([]*surface.Message, error) {
	tr, err := c.runTask(ctx, goal)
	if err != nil {
		return nil, err
	}
	if !tr.Success {
		return nil, fmt.Errorf("mailbox task failed: %s", tr.Reason)
	}

	return c.extractor.Messages(ctx, tr.Output)
}

func (c *Client) runTask(ctx context.Context, goal string) (*taskResponse, error) {
	payload, err := json.Marshal(taskRequest{Goal: goal})
	if err != nil {
		return nil, fmt.Errorf("marshal task request: %w", err)
	}

	url := c.BaseURL + "/v1/tasks"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.UserAgent)

	c.logger.Debug("run agent task", zap.String("url", url))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("run agent task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	var tr taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("decode task response: %w", err)
	}

	return &tr, nil
}
