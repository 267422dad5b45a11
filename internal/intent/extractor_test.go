package intent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestExtractCompleteEvent(t *testing.T) {
	provider := &scriptedProvider{reply: `{
		"summary": "Dentist",
		"description": "Checkup",
		"location": "Main St clinic",
		"start_time": "2026-09-04T15:00:00Z",
		"end_time": "2026-09-04T15:30:00Z",
		"time_zone": "Europe/Berlin",
		"attendees_emails": ["sam@example.com"]
	}`}
	ex := NewExtractor(provider, newTestPrompts(t), "test-model", nil)

	req, err := ex.Extract(context.Background(), "dentist friday at 3pm")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if req.Title != "Dentist" {
		t.Errorf("Title = %q, want Dentist", req.Title)
	}
	if req.StartTime == nil || !req.StartTime.Equal(time.Date(2026, 9, 4, 15, 0, 0, 0, time.UTC)) {
		t.Errorf("StartTime = %v, want 2026-09-04T15:00:00Z", req.StartTime)
	}
	if req.EndTime == nil || !req.EndTime.Equal(time.Date(2026, 9, 4, 15, 30, 0, 0, time.UTC)) {
		t.Errorf("EndTime = %v, want 2026-09-04T15:30:00Z", req.EndTime)
	}
	if req.TimeZone != "Europe/Berlin" {
		t.Errorf("TimeZone = %q, want Europe/Berlin", req.TimeZone)
	}
	if len(req.AttendeeEmails) != 1 || req.AttendeeEmails[0] != "sam@example.com" {
		t.Errorf("AttendeeEmails = %v", req.AttendeeEmails)
	}
}

func TestExtractToleratesCodeFences(t *testing.T) {
	provider := &scriptedProvider{reply: "Here you go:\n```json\n" +
		`{"summary":"Standup","description":"","location":"","start_time":"2026-09-01T09:00:00Z","end_time":null,"time_zone":"","attendees_emails":[]}` +
		"\n```\nLet me know if that works."}
	ex := NewExtractor(provider, newTestPrompts(t), "m", nil)

	req, err := ex.Extract(context.Background(), "standup tomorrow at 9")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if req.Title != "Standup" {
		t.Errorf("Title = %q, want Standup", req.Title)
	}
	if req.TimeZone != "UTC" {
		t.Errorf("TimeZone = %q, want UTC default", req.TimeZone)
	}
	// A null end time defaults to one hour after start.
	if req.EndTime == nil || !req.EndTime.Equal(req.StartTime.Add(time.Hour)) {
		t.Errorf("EndTime = %v, want start+1h", req.EndTime)
	}
}

func TestExtractNullStartTimeIsNotAnError(t *testing.T) {
	provider := &scriptedProvider{reply: `{"summary":"Coffee","description":"","location":"","start_time":null,"end_time":null,"time_zone":"","attendees_emails":[]}`}
	ex := NewExtractor(provider, newTestPrompts(t), "m", nil)

	req, err := ex.Extract(context.Background(), "coffee sometime")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if req.StartTime != nil {
		t.Errorf("StartTime = %v, want nil for a vague request", req.StartTime)
	}
}

func TestExtractMissingRequiredKey(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantMsg string
	}{
		{"no start_time key", `{"summary":"X","end_time":null}`, `"start_time"`},
		{"no end_time key", `{"summary":"X","start_time":null}`, `"end_time"`},
		{"no summary key", `{"start_time":null,"end_time":null}`, `"summary"`},
		{"empty summary", `{"summary":"  ","start_time":null,"end_time":null}`, "no title"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := NewExtractor(&scriptedProvider{reply: tt.reply}, newTestPrompts(t), "m", nil)
			_, err := ex.Extract(context.Background(), "query")
			if err == nil {
				t.Fatal("Extract() succeeded, want error")
			}
			var exErr *ExtractionError
			if !errors.As(err, &exErr) {
				t.Fatalf("error type = %T, want *ExtractionError", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestExtractNonJSONReply(t *testing.T) {
	ex := NewExtractor(&scriptedProvider{reply: "I cannot help with that."}, newTestPrompts(t), "m", nil)
	_, err := ex.Extract(context.Background(), "query")
	if err == nil || !strings.Contains(err.Error(), "no JSON") {
		t.Errorf("Extract() error = %v, want a no-JSON error", err)
	}
}

func TestExtractProviderFailureWrapped(t *testing.T) {
	cause := errors.New("timeout")
	ex := NewExtractor(&scriptedProvider{err: cause}, newTestPrompts(t), "m", nil)
	_, err := ex.Extract(context.Background(), "query")
	if !errors.Is(err, cause) {
		t.Errorf("Extract() error = %v, want wrapped %v", err, cause)
	}
}

func TestParseEventTimeLayouts(t *testing.T) {
	tests := []string{
		"2026-09-04T15:00:00Z",
		"2026-09-04T15:00:00",
		"2026-09-04 15:00:00",
		"2026-09-04T15:00",
		"2026-09-04 15:00",
	}
	for _, s := range tests {
		v := s
		got := parseEventTime(&v)
		if got == nil {
			t.Errorf("parseEventTime(%q) = nil, want parsed time", s)
			continue
		}
		if got.Hour() != 15 || got.Day() != 4 {
			t.Errorf("parseEventTime(%q) = %v", s, got)
		}
	}
	garbage := "next friday-ish"
	if parseEventTime(&garbage) != nil {
		t.Error("parseEventTime(garbage) should be nil")
	}
}
