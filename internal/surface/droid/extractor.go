package droid

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"jobdroid/internal/jobs"
	"jobdroid/internal/surface"
	"jobdroid/internal/utils"
)

// contentGenerator is the model seam; satisfied by gemini.Generator.
type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

//go:embed postings.md
var postingsTemplate string

//go:embed confirmation.md
var confirmationTemplate string

//go:embed messages.md
var messagesTemplate string

const defaultMaxLogLength = 200

// Extractor converts free-text agent task reports into structured results
// using a language model. It never invents data: the prompts instruct the
// model to return only what the report states.
type Extractor struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

// NewExtractor builds an extractor around the given generator.
func NewExtractor(generator contentGenerator, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{
		generator: generator,
		logger:    logger,
		maxLogLen: defaultMaxLogLength,
	}
}

// Postings extracts job postings from a discovery task report.
func (e *Extractor) Postings(ctx context.Context, report string) ([]*jobs.Posting, error) {
	raw, err := e.generate(ctx, postingsTemplate, report)
	if err != nil {
		return nil, err
	}

	var data struct {
		Jobs []map[string]any `json:"jobs"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse postings response: %w", err)
	}

	postings := make([]*jobs.Posting, 0, len(data.Jobs))
	for _, item := range data.Jobs {
		p := &jobs.Posting{}
		if err := decodeJSONTagged(item, p); err != nil {
			return nil, fmt.Errorf("decode posting: %w", err)
		}
		postings = append(postings, p)
	}
	return postings, nil
}

// Confirmation extracts the submission verdict from an application task
// report. Anything the model does not positively mark successful comes
// back as a failed confirmation.
func (e *Extractor) Confirmation(ctx context.Context, report string) (*surface.Confirmation, error) {
	raw, err := e.generate(ctx, confirmationTemplate, report)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse confirmation response: %w", err)
	}

	return &surface.Confirmation{
		Success: coerceBool(data["success"]),
		Message: coerceString(data["message"]),
	}, nil
}

// Messages extracts mailbox messages from a mail task report.
func (e *Extractor) Messages(ctx context.Context, report string) ([]*surface.Message, error) {
	raw, err := e.generate(ctx, messagesTemplate, report)
	if err != nil {
		return nil, err
	}

	var data struct {
		Messages []map[string]any `json:"messages"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return nil, fmt.Errorf("parse messages response: %w", err)
	}

	messages := make([]*surface.Message, 0, len(data.Messages))
	for _, item := range data.Messages {
		m := &surface.Message{}
		if err := decodeJSONTagged(item, m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		if m.Subject == "" && m.Body == "" {
			continue
		}
		messages = append(messages, m)
	}
	return messages, nil
}

func (e *Extractor) generate(ctx context.Context, template, report string) (string, error) {
	prompt := strings.ReplaceAll(template, "{{REPORT}}", report)

	e.logger.Debug("extraction request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("report_preview", utils.TruncateForLog(report, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return "", err
	}

	e.logger.Debug("extraction response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)
	return raw, nil
}

// decodeJSONTagged maps a generic JSON object onto a struct using its json
// tags, tolerating missing and extra keys.
func decodeJSONTagged(input map[string]any, target any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  target,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// extractJSON strips markdown code fences the model likes to wrap its
// output in.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceBool(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		lower := strings.ToLower(strings.TrimSpace(val))
		return lower == "true" || lower == "yes"
	case float64:
		return val != 0
	default:
		return false
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
