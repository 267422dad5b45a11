// Package prompt renders the model prompts from embedded templates, one
// template per intent plus helper prompts for classification and event
// extraction.
package prompt

import (
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/conciergehq/concierge/pkg/models"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// NoContextFallback is substituted for an empty retrieval context so the
// template never renders a dangling "Context:" header.
const NoContextFallback = "No relevant context found"

// ErrTemplateNotFound is returned when a required template is missing
// from the embedded set.
var ErrTemplateNotFound = fmt.Errorf("prompt template not found")

var intentTemplates = map[models.Intent]string{
	models.IntentCreateEvent:   "create_event.tmpl",
	models.IntentQueryCalendar: "query_calendar.tmpl",
	models.IntentGeneral:       "general.tmpl",
}

// Builder renders prompts from the embedded template set.
type Builder struct {
	templates *template.Template
	now       func() time.Time
}

type promptData struct {
	Query   string
	Context string
	Now     string
}

// NewBuilder parses the embedded templates and verifies every template
// the builder can render is present.
func NewBuilder() (*Builder, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse prompt templates: %w", err)
	}

	required := []string{"classify_intent.tmpl", "extract_event.tmpl"}
	for _, name := range intentTemplates {
		required = append(required, name)
	}
	for _, name := range required {
		if tmpl.Lookup(name) == nil {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}
	}

	return &Builder{templates: tmpl, now: time.Now}, nil
}

// Build renders the prompt for the intent. For the general intent the
// context is the retrieved passages; for calendar intents it carries the
// event details or listing. An empty context renders as NoContextFallback.
func (b *Builder) Build(query, context string, intent models.Intent) (string, error) {
	name, ok := intentTemplates[intent]
	if !ok {
		return "", fmt.Errorf("%w: no template for intent %q", ErrTemplateNotFound, intent)
	}
	return b.render(name, promptData{
		Query:   strings.TrimSpace(query),
		Context: orFallback(context),
	})
}

// Classification renders the intent-classification prompt.
func (b *Builder) Classification(query string) (string, error) {
	return b.render("classify_intent.tmpl", promptData{Query: strings.TrimSpace(query)})
}

// Extraction renders the event-extraction prompt, anchored to the
// current date so the model can resolve relative times.
func (b *Builder) Extraction(query string) (string, error) {
	return b.render("extract_event.tmpl", promptData{
		Query: strings.TrimSpace(query),
		Now:   b.now().Format("Monday, 2 January 2006 15:04 MST"),
	})
}

func (b *Builder) render(name string, data promptData) (string, error) {
	var sb strings.Builder
	if err := b.templates.ExecuteTemplate(&sb, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return strings.TrimSpace(sb.String()), nil
}

func orFallback(context string) string {
	if strings.TrimSpace(context) == "" {
		return NoContextFallback
	}
	return context
}
