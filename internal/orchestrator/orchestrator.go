// Package orchestrator routes each user query through intent
// classification to the right pipeline (event creation, calendar lookup,
// or retrieval-augmented chat) and turns the outcome into a reply.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/conciergehq/concierge/internal/calendar"
	"github.com/conciergehq/concierge/internal/llm"
	"github.com/conciergehq/concierge/internal/prompt"
	"github.com/conciergehq/concierge/internal/sessions"
	"github.com/conciergehq/concierge/pkg/models"
)

// User-facing fallback texts. Failures never leak internal errors to the
// chat; the cause is logged here instead.
const (
	// ClarifyTimeReply is sent verbatim when a scheduling request has no
	// resolvable start time. It short-circuits before any calendar or
	// model call and leaves the history untouched.
	ClarifyTimeReply = "⚠️ I couldn't understand when to schedule the event. Please specify a clear time."

	// ApologyReply is the generic failure answer.
	ApologyReply = "Sorry, I ran into a problem handling that. Please try again."

	// InterruptedReply is sent as a final fragment when a stream fails
	// after part of the reply has already been delivered, so the user is
	// not left with a silently truncated answer.
	InterruptedReply = "\n[reply interrupted, please try again]"
)

// Classifier decides the intent of a query.
type Classifier interface {
	Classify(ctx context.Context, query string) models.Intent
}

// Extractor pulls structured event details out of a query.
type Extractor interface {
	Extract(ctx context.Context, query string) (*models.EventRequest, error)
}

// Retriever fetches relevant indexed passages for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int, threshold float32) string
}

// Config tunes the orchestrator's pipelines.
type Config struct {
	// Model is the chat model name passed to the provider.
	Model string

	// System is the system prompt for every completion.
	System string

	// TopK and ScoreThreshold control retrieval for general queries.
	TopK           int
	ScoreThreshold float32

	// CalendarMaxResults and CalendarWindowDays bound calendar lookups.
	CalendarMaxResults int
	CalendarWindowDays int
}

// Orchestrator wires the collaborators together.
type Orchestrator struct {
	provider   llm.Provider
	classifier Classifier
	extractor  Extractor
	retriever  Retriever
	prompts    *prompt.Builder
	sessions   *sessions.MemoryStore
	calendar   calendar.Service
	config     Config
	logger     *slog.Logger
}

// New creates an orchestrator.
func New(
	provider llm.Provider,
	classifier Classifier,
	extractor Extractor,
	retriever Retriever,
	prompts *prompt.Builder,
	store *sessions.MemoryStore,
	cal calendar.Service,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.CalendarMaxResults <= 0 {
		cfg.CalendarMaxResults = 10
	}
	if cfg.CalendarWindowDays <= 0 {
		cfg.CalendarWindowDays = 7
	}
	return &Orchestrator{
		provider:   provider,
		classifier: classifier,
		extractor:  extractor,
		retriever:  retriever,
		prompts:    prompts,
		sessions:   store,
		calendar:   cal,
		config:     cfg,
		logger:     logger.With("component", "orchestrator"),
	}
}

// Respond answers one query and returns the full reply. Both Respond and
// RespondStream leave the same two history turns behind on success: the
// built prompt as the user turn and the complete reply as the assistant
// turn.
func (o *Orchestrator) Respond(ctx context.Context, sessionID, query string) string {
	text, done := o.preparePrompt(ctx, sessionID, query)
	if done != "" {
		return done
	}

	history := o.sessions.Get(sessionID)
	reply, err := llm.CompleteText(ctx, o.provider, o.completionRequest(history, text))
	if err != nil {
		o.logger.Error("completion failed", "session", sessionID, "error", err)
		return ApologyReply
	}

	o.record(history, text, reply)
	return reply
}

// RespondStream answers one query as a channel of reply fragments. The
// channel closes when the reply is complete, the context is canceled, or
// an error cut it short.
func (o *Orchestrator) RespondStream(ctx context.Context, sessionID, query string) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)

		text, done := o.preparePrompt(ctx, sessionID, query)
		if done != "" {
			o.emit(ctx, out, done)
			return
		}

		history := o.sessions.Get(sessionID)
		chunks, err := o.provider.Complete(ctx, o.completionRequest(history, text))
		if err != nil {
			o.logger.Error("completion failed", "session", sessionID, "error", err)
			o.emit(ctx, out, ApologyReply)
			return
		}

		var reply strings.Builder
		for chunk := range chunks {
			if chunk.Error != nil {
				o.logger.Error("stream failed mid-reply", "session", sessionID, "error", chunk.Error)
				o.emit(ctx, out, InterruptedReply)
				return
			}
			if chunk.Done {
				break
			}
			if chunk.Text == "" {
				continue
			}
			reply.WriteString(chunk.Text)
			if !o.emit(ctx, out, chunk.Text) {
				return
			}
		}
		if ctx.Err() != nil {
			return
		}
		o.record(history, text, reply.String())
	}()
	return out
}

// preparePrompt classifies the query and builds the intent-specific
// prompt. A non-empty second return is a terminal reply that must be
// sent as-is without a model call.
func (o *Orchestrator) preparePrompt(ctx context.Context, sessionID, query string) (string, string) {
	start := time.Now()
	intent := o.classifier.Classify(ctx, query)
	o.logger.Info("query classified", "session", sessionID, "intent", intent, "duration", time.Since(start))

	var contextText string
	switch intent {
	case models.IntentCreateEvent:
		var done string
		contextText, done = o.createEvent(ctx, sessionID, query)
		if done != "" {
			return "", done
		}
	case models.IntentQueryCalendar:
		listing, err := o.calendar.ListUpcoming(ctx, o.config.CalendarMaxResults, o.config.CalendarWindowDays)
		if err != nil {
			o.logger.Error("calendar lookup failed", "session", sessionID, "error", err)
			return "", ApologyReply
		}
		contextText = formatEvents(listing)
	case models.IntentGeneral:
		contextText = o.retriever.Retrieve(ctx, query, o.config.TopK, o.config.ScoreThreshold)
	default:
		o.logger.Warn("unknown intent, treating as general", "intent", intent)
		intent = models.IntentGeneral
		contextText = o.retriever.Retrieve(ctx, query, o.config.TopK, o.config.ScoreThreshold)
	}

	text, err := o.prompts.Build(query, contextText, intent)
	if err != nil {
		o.logger.Error("prompt build failed", "session", sessionID, "intent", intent, "error", err)
		return "", ApologyReply
	}
	return text, ""
}

// createEvent extracts event details and inserts the event. It returns
// either the context describing the created event, or a terminal reply.
func (o *Orchestrator) createEvent(ctx context.Context, sessionID, query string) (string, string) {
	req, err := o.extractor.Extract(ctx, query)
	if err != nil {
		o.logger.Error("event extraction failed", "session", sessionID, "error", err)
		return "", ApologyReply
	}
	if req.StartTime == nil {
		o.logger.Info("scheduling request without a resolvable time", "session", sessionID)
		return "", ClarifyTimeReply
	}

	link, err := o.calendar.CreateEvent(ctx, req)
	if err != nil {
		o.logger.Error("calendar insert failed", "session", sessionID, "error", err)
		return "", ApologyReply
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\n", req.Title)
	fmt.Fprintf(&sb, "Start: %s\n", req.StartTime.Format(time.RFC1123))
	if req.EndTime != nil {
		fmt.Fprintf(&sb, "End: %s\n", req.EndTime.Format(time.RFC1123))
	}
	if req.Location != "" {
		fmt.Fprintf(&sb, "Location: %s\n", req.Location)
	}
	if link != "" {
		fmt.Fprintf(&sb, "Link: %s\n", link)
	}
	return sb.String(), ""
}

// completionRequest assembles prior history plus the new prompt.
func (o *Orchestrator) completionRequest(history *sessions.History, text string) *llm.CompletionRequest {
	prior := history.Messages()
	messages := make([]llm.CompletionMessage, 0, len(prior)+1)
	for _, m := range prior {
		messages = append(messages, llm.CompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	messages = append(messages, llm.CompletionMessage{Role: string(models.RoleUser), Content: text})

	return &llm.CompletionRequest{
		Model:    o.config.Model,
		System:   o.config.System,
		Messages: messages,
	}
}

// record appends the exchange to the session history. Only successful
// exchanges are recorded.
func (o *Orchestrator) record(history *sessions.History, prompt, reply string) {
	history.Append(models.RoleUser, prompt)
	history.Append(models.RoleAssistant, reply)
}

// emit sends a fragment unless the receiver is gone.
func (o *Orchestrator) emit(ctx context.Context, out chan<- string, text string) bool {
	select {
	case out <- text:
		return true
	case <-ctx.Done():
		return false
	}
}

// formatEvents renders a calendar listing for the prompt. An empty
// listing renders as an explicit statement so the model does not invent
// events.
func formatEvents(events []models.EventSummary) string {
	if len(events) == 0 {
		return "(no events in this window)"
	}
	var sb strings.Builder
	for _, ev := range events {
		fmt.Fprintf(&sb, "- %s: %s", ev.StartTime.Format("Mon Jan 2 15:04"), ev.Title)
		if ev.Location != "" {
			fmt.Fprintf(&sb, " (%s)", ev.Location)
		}
		if ev.OrganizerName != "" {
			fmt.Fprintf(&sb, ", organized by %s", ev.OrganizerName)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
