package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/conciergehq/concierge/internal/llm"
	"github.com/conciergehq/concierge/internal/prompt"
	"github.com/conciergehq/concierge/pkg/models"
)

// ExtractionError reports why event details could not be pulled from a
// query. The message is specific enough to tell the user what was
// missing.
type ExtractionError struct {
	msg   string
	cause error
}

func (e *ExtractionError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *ExtractionError) Unwrap() error { return e.cause }

// Time layouts the extractor accepts from the model, tried in order.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// Extractor turns a free-form scheduling request into an EventRequest
// by asking the model for a JSON object.
type Extractor struct {
	provider llm.Provider
	prompts  *prompt.Builder
	model    string
	logger   *slog.Logger
}

// NewExtractor creates an extractor.
func NewExtractor(provider llm.Provider, prompts *prompt.Builder, model string, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		provider: provider,
		prompts:  prompts,
		model:    model,
		logger:   logger.With("component", "extractor"),
	}
}

// rawEvent mirrors the JSON schema the extraction prompt demands. The
// time fields stay raw strings so a present-but-null start time can be
// told apart from a missing key.
type rawEvent struct {
	Summary     *string  `json:"summary"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	StartTime   *string  `json:"start_time"`
	EndTime     *string  `json:"end_time"`
	TimeZone    string   `json:"time_zone"`
	Attendees   []string `json:"attendees_emails"`
}

// Extract asks the model for event details and validates the reply. The
// required keys (summary, start_time, end_time) must be present in the
// JSON; a present-but-null or unparseable start time is not an error and
// yields a request with a nil StartTime so the caller can ask the user
// to clarify.
func (e *Extractor) Extract(ctx context.Context, query string) (*models.EventRequest, error) {
	text, err := e.prompts.Extraction(query)
	if err != nil {
		return nil, &ExtractionError{msg: "could not build extraction prompt", cause: err}
	}

	reply, err := llm.CompleteText(ctx, e.provider, &llm.CompletionRequest{
		Model:       e.model,
		Messages:    []llm.CompletionMessage{{Role: string(models.RoleUser), Content: text}},
		Temperature: llm.Deterministic(),
	})
	if err != nil {
		return nil, &ExtractionError{msg: "event extraction model call failed", cause: err}
	}

	return parseEventJSON(reply)
}

// parseEventJSON decodes the model reply, tolerating code fences and
// surrounding prose, and enforces the required keys.
func parseEventJSON(reply string) (*models.EventRequest, error) {
	payload := extractJSON(reply)
	if payload == "" {
		return nil, &ExtractionError{msg: "model reply contained no JSON object"}
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &keys); err != nil {
		return nil, &ExtractionError{msg: "model reply was not valid JSON", cause: err}
	}
	for _, required := range []string{"summary", "start_time", "end_time"} {
		if _, ok := keys[required]; !ok {
			return nil, &ExtractionError{msg: fmt.Sprintf("extracted event is missing the %q field", required)}
		}
	}

	var raw rawEvent
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, &ExtractionError{msg: "model reply did not match the event schema", cause: err}
	}
	if raw.Summary == nil || strings.TrimSpace(*raw.Summary) == "" {
		return nil, &ExtractionError{msg: "extracted event has no title"}
	}

	req := &models.EventRequest{
		Title:          strings.TrimSpace(*raw.Summary),
		Description:    strings.TrimSpace(raw.Description),
		Location:       strings.TrimSpace(raw.Location),
		TimeZone:       raw.TimeZone,
		AttendeeEmails: raw.Attendees,
	}
	if req.TimeZone == "" {
		req.TimeZone = "UTC"
	}

	req.StartTime = parseEventTime(raw.StartTime)
	req.EndTime = parseEventTime(raw.EndTime)
	if req.StartTime != nil && req.EndTime == nil {
		end := req.StartTime.Add(time.Hour)
		req.EndTime = &end
	}

	if err := req.Validate(); err != nil {
		return nil, &ExtractionError{msg: "extracted event is invalid", cause: err}
	}
	return req, nil
}

// parseEventTime tries the accepted layouts and returns nil for null,
// empty, or unparseable values.
func parseEventTime(value *string) *time.Time {
	if value == nil {
		return nil
	}
	s := strings.TrimSpace(*value)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// extractJSON returns the first top-level JSON object in the text,
// stripping code fences and surrounding prose.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return ""
	}
	return text[start : end+1]
}
