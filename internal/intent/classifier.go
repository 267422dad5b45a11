// Package intent classifies user queries and extracts structured event
// details from free-form scheduling requests.
package intent

import (
	"context"
	"log/slog"
	"strings"

	"github.com/conciergehq/concierge/internal/llm"
	"github.com/conciergehq/concierge/internal/prompt"
	"github.com/conciergehq/concierge/pkg/models"
)

// Keyword weights for the heuristic pass. A single strong keyword is
// enough to clear the default threshold without a model call.
var (
	createKeywords = map[string]float32{
		"schedule": 0.8,
		"create":   0.8,
		"book":     0.8,
		"meeting":  0.2,
	}
	calendarKeywords = map[string]float32{
		"what's on":   0.8,
		"do i have":   0.8,
		"upcoming":    0.8,
		"my calendar": 0.8,
	}
)

// Classifier decides which intent a query carries. A cheap keyword pass
// runs first; only ambiguous queries reach the model.
type Classifier struct {
	provider  llm.Provider
	prompts   *prompt.Builder
	model     string
	threshold float32
	logger    *slog.Logger
}

// NewClassifier creates a classifier. Heuristic results above threshold
// are accepted without consulting the model.
func NewClassifier(provider llm.Provider, prompts *prompt.Builder, model string, threshold float32, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if threshold <= 0 {
		threshold = 0.7
	}
	return &Classifier{
		provider:  provider,
		prompts:   prompts,
		model:     model,
		threshold: threshold,
		logger:    logger.With("component", "classifier"),
	}
}

// Classify returns the intent for the query. Classification never fails:
// if both the heuristic and the model are inconclusive, the query is
// treated as general conversation.
func (c *Classifier) Classify(ctx context.Context, query string) models.Intent {
	intent, confidence := c.heuristic(query)
	if confidence > c.threshold {
		c.logger.Debug("intent classified by keywords", "intent", intent, "confidence", confidence)
		return intent
	}
	return c.classifyWithModel(ctx, query)
}

// heuristic scores the query against both keyword sets and returns the
// better-scoring intent. A tie or zero score means inconclusive.
func (c *Classifier) heuristic(query string) (models.Intent, float32) {
	q := strings.ToLower(query)

	score := func(keywords map[string]float32) float32 {
		var total float32
		for kw, weight := range keywords {
			if strings.Contains(q, kw) {
				total += weight
			}
		}
		if total > 1 {
			total = 1
		}
		return total
	}

	createScore := score(createKeywords)
	calendarScore := score(calendarKeywords)

	switch {
	case createScore > calendarScore:
		return models.IntentCreateEvent, createScore
	case calendarScore > createScore:
		return models.IntentQueryCalendar, calendarScore
	default:
		return models.IntentGeneral, 0
	}
}

// classifyWithModel asks the model for a single intent label at zero
// temperature. Any failure falls back to the general intent.
func (c *Classifier) classifyWithModel(ctx context.Context, query string) models.Intent {
	text, err := c.prompts.Classification(query)
	if err != nil {
		c.logger.Warn("classification prompt failed", "error", err)
		return models.IntentGeneral
	}

	reply, err := llm.CompleteText(ctx, c.provider, &llm.CompletionRequest{
		Model:       c.model,
		Messages:    []llm.CompletionMessage{{Role: string(models.RoleUser), Content: text}},
		Temperature: llm.Deterministic(),
		MaxTokens:   10,
	})
	if err != nil {
		c.logger.Warn("intent model call failed, treating as general", "error", err)
		return models.IntentGeneral
	}

	label := strings.ToLower(strings.TrimSpace(reply))
	intent := models.ParseIntent(label)
	c.logger.Debug("intent classified by model", "label", label, "intent", intent)
	return intent
}
