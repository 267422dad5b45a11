package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/conciergehq/concierge/internal/llm"
	"github.com/conciergehq/concierge/internal/prompt"
	"github.com/conciergehq/concierge/pkg/models"
)

// scriptedProvider replays a fixed reply for every completion.
type scriptedProvider struct {
	reply  string
	err    error
	called int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req *llm.CompletionRequest) (<-chan *llm.CompletionChunk, error) {
	p.called++
	if p.err != nil {
		return nil, p.err
	}
	ch := make(chan *llm.CompletionChunk, 2)
	ch <- &llm.CompletionChunk{Text: p.reply}
	ch <- &llm.CompletionChunk{Done: true}
	close(ch)
	return ch, nil
}

func newTestPrompts(t *testing.T) *prompt.Builder {
	t.Helper()
	b, err := prompt.NewBuilder()
	if err != nil {
		t.Fatalf("prompt.NewBuilder() error = %v", err)
	}
	return b
}

func TestClassifyByKeywords(t *testing.T) {
	provider := &scriptedProvider{reply: "general"}
	c := NewClassifier(provider, newTestPrompts(t), "test-model", 0.7, nil)

	tests := []struct {
		query string
		want  models.Intent
	}{
		{"please schedule a dentist appointment for friday", models.IntentCreateEvent},
		{"book a meeting room for the team sync", models.IntentCreateEvent},
		{"what's on my agenda today", models.IntentQueryCalendar},
		{"do i have anything this afternoon", models.IntentQueryCalendar},
		{"show my upcoming events", models.IntentQueryCalendar},
	}
	for _, tt := range tests {
		if got := c.Classify(context.Background(), tt.query); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
	if provider.called != 0 {
		t.Errorf("model called %d times for keyword-clear queries, want 0", provider.called)
	}
}

func TestClassifyCanonicalExamples(t *testing.T) {
	provider := &scriptedProvider{reply: "general"}
	c := NewClassifier(provider, newTestPrompts(t), "test-model", 0.7, nil)

	tests := []struct {
		query string
		want  models.Intent
	}{
		{"schedule a meeting with Bob tomorrow at 3pm", models.IntentCreateEvent},
		{"what's on my calendar this week", models.IntentQueryCalendar},
		{"what's the capital of France", models.IntentGeneral},
	}
	for _, tt := range tests {
		if got := c.Classify(context.Background(), tt.query); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
	// Only the open-domain question lacks keywords and reaches the model.
	if provider.called != 1 {
		t.Errorf("model called %d times, want 1", provider.called)
	}
}

func TestClassifyFallsBackToModel(t *testing.T) {
	provider := &scriptedProvider{reply: "create_event"}
	c := NewClassifier(provider, newTestPrompts(t), "test-model", 0.7, nil)

	got := c.Classify(context.Background(), "dentist friday 3pm would be great")
	if got != models.IntentCreateEvent {
		t.Errorf("Classify() = %v, want create_event from model", got)
	}
	if provider.called != 1 {
		t.Errorf("model called %d times, want 1", provider.called)
	}
}

func TestClassifyModelLabelMapping(t *testing.T) {
	tests := []struct {
		reply string
		want  models.Intent
	}{
		{"  Query_Calendar \n", models.IntentQueryCalendar},
		{"check_calendar", models.IntentQueryCalendar},
		{"general", models.IntentGeneral},
		{"banana", models.IntentGeneral},
	}
	for _, tt := range tests {
		c := NewClassifier(&scriptedProvider{reply: tt.reply}, newTestPrompts(t), "m", 0.7, nil)
		if got := c.Classify(context.Background(), "an ambiguous question"); got != tt.want {
			t.Errorf("model reply %q mapped to %v, want %v", tt.reply, got, tt.want)
		}
	}
}

func TestClassifyModelFailureMeansGeneral(t *testing.T) {
	provider := &scriptedProvider{err: errors.New("connection refused")}
	c := NewClassifier(provider, newTestPrompts(t), "m", 0.7, nil)
	if got := c.Classify(context.Background(), "an ambiguous question"); got != models.IntentGeneral {
		t.Errorf("Classify() = %v, want general when the model fails", got)
	}
}
