// Package models contains the shared data types passed between the
// orchestration core and its collaborators.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Intent is the classified purpose of a user query. It is a closed set:
// the orchestrator dispatches with an exhaustive switch, so adding an
// intent requires touching every dispatch point.
type Intent string

const (
	IntentCreateEvent   Intent = "create_event"
	IntentQueryCalendar Intent = "query_calendar"
	IntentGeneral       Intent = "general"
)

// ParseIntent maps a raw classifier label to an Intent. Unrecognized or
// malformed labels map to IntentGeneral rather than failing the request.
func ParseIntent(label string) Intent {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "create_event":
		return IntentCreateEvent
	case "query_calendar", "check_calendar":
		return IntentQueryCalendar
	default:
		return IntentGeneral
	}
}

// Role indicates the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single conversation turn stored in session history.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// EventRequest is the structured representation of a calendar event to be
// created, produced by the event extractor from unstructured text.
//
// A request with a nil StartTime is never forwarded to the calendar
// collaborator; the orchestrator short-circuits with a clarification
// message instead.
type EventRequest struct {
	Title          string     `json:"summary"`
	Description    string     `json:"description,omitempty"`
	Location       string     `json:"location,omitempty"`
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	TimeZone       string     `json:"time_zone,omitempty"`
	AttendeeEmails []string   `json:"attendees_emails,omitempty"`
}

// Validate checks the structural invariants of the request. StartTime may
// legitimately be nil (unresolvable time); when both times are present the
// end must not precede the start.
func (r *EventRequest) Validate() error {
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("event title must not be empty")
	}
	if r.StartTime != nil && r.EndTime != nil && r.EndTime.Before(*r.StartTime) {
		return fmt.Errorf("event end %s precedes start %s", r.EndTime.Format(time.RFC3339), r.StartTime.Format(time.RFC3339))
	}
	return nil
}

// EventSummary is a read-only projection of an existing calendar event,
// consumed only as prompt context.
type EventSummary struct {
	Title         string    `json:"summary"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	OrganizerName string    `json:"organizer_name,omitempty"`
	Location      string    `json:"location,omitempty"`
	HTMLLink      string    `json:"html_link,omitempty"`
}

// Document is a source text submitted for indexing.
type Document struct {
	Name     string            `json:"name"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// DocumentChunk is a bounded span of document text, the unit of vector
// store indexing. Its ID is a freshly generated UUID, decoupled from the
// content fingerprint kept in Metadata under the "hash" key, so identical
// content is detected as a duplicate without id collisions.
type DocumentChunk struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"-"`
	CreatedAt time.Time         `json:"created_at"`
}

// FingerprintKey is the metadata key holding a chunk's content fingerprint.
const FingerprintKey = "hash"

// SearchResult is a passage returned from similarity search. Score is
// cosine similarity in [0,1], higher is better (1 = identical); backends
// that report distances must convert before returning.
type SearchResult struct {
	Content  string            `json:"content"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}
