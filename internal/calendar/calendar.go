// Package calendar talks to the user's calendar. The production
// implementation targets the Google Calendar REST API with an OAuth2
// refresh token; deployments without calendar credentials get a stub
// that reports the feature as unavailable.
package calendar

import (
	"context"
	"errors"

	"github.com/conciergehq/concierge/pkg/models"
)

// ErrDisabled is returned by the stub service when no calendar is
// configured.
var ErrDisabled = errors.New("calendar is not configured")

// Service is the calendar operations the orchestrator needs.
type Service interface {
	// CreateEvent inserts the event and returns a link to it.
	CreateEvent(ctx context.Context, req *models.EventRequest) (string, error)

	// ListUpcoming returns up to maxResults events starting within the
	// next windowDays days, soonest first.
	ListUpcoming(ctx context.Context, maxResults, windowDays int) ([]models.EventSummary, error)
}

// Disabled is the no-credentials stub.
type Disabled struct{}

func (Disabled) CreateEvent(ctx context.Context, req *models.EventRequest) (string, error) {
	return "", ErrDisabled
}

func (Disabled) ListUpcoming(ctx context.Context, maxResults, windowDays int) ([]models.EventSummary, error) {
	return nil, ErrDisabled
}
