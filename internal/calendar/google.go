package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/conciergehq/concierge/pkg/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

// GoogleConfig holds Google Calendar credentials and target calendar.
type GoogleConfig struct {
	CalendarID   string `yaml:"calendar_id"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`

	// BaseURL overrides the API endpoint, for tests.
	BaseURL string `yaml:"-"`
}

// GoogleService implements Service against the Google Calendar v3 REST
// API, authenticating with a long-lived OAuth2 refresh token.
type GoogleService struct {
	client     *http.Client
	baseURL    string
	calendarID string
	logger     *slog.Logger
}

var _ Service = (*GoogleService)(nil)

// NewGoogleService builds a calendar client. The oauth2 transport
// refreshes access tokens transparently from the refresh token.
func NewGoogleService(ctx context.Context, cfg GoogleConfig, logger *slog.Logger) (*GoogleService, error) {
	if cfg.RefreshToken == "" {
		return nil, fmt.Errorf("calendar refresh token is required")
	}
	if cfg.CalendarID == "" {
		cfg.CalendarID = "primary"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{"https://www.googleapis.com/auth/calendar.events"},
	}
	token := &oauth2.Token{RefreshToken: cfg.RefreshToken}

	return &GoogleService{
		client:     oauth2.NewClient(ctx, oauthCfg.TokenSource(ctx, token)),
		baseURL:    cfg.BaseURL,
		calendarID: cfg.CalendarID,
		logger:     logger.With("component", "calendar"),
	}, nil
}

// Wire types for the events API. Only the fields we read or write.
type googleEventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type googleAttendee struct {
	Email string `json:"email"`
}

type googleEvent struct {
	Summary     string           `json:"summary"`
	Description string           `json:"description,omitempty"`
	Location    string           `json:"location,omitempty"`
	Start       *googleEventTime `json:"start,omitempty"`
	End         *googleEventTime `json:"end,omitempty"`
	Attendees   []googleAttendee `json:"attendees,omitempty"`
	HTMLLink    string           `json:"htmlLink,omitempty"`
	Organizer   *struct {
		DisplayName string `json:"displayName"`
		Email       string `json:"email"`
	} `json:"organizer,omitempty"`
}

// CreateEvent inserts the event and returns its htmlLink.
func (g *GoogleService) CreateEvent(ctx context.Context, req *models.EventRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("invalid event: %w", err)
	}
	if req.StartTime == nil || req.EndTime == nil {
		return "", fmt.Errorf("event start and end times are required")
	}

	body := googleEvent{
		Summary:     req.Title,
		Description: req.Description,
		Location:    req.Location,
		Start:       &googleEventTime{DateTime: req.StartTime.Format(time.RFC3339), TimeZone: req.TimeZone},
		End:         &googleEventTime{DateTime: req.EndTime.Format(time.RFC3339), TimeZone: req.TimeZone},
	}
	for _, email := range req.AttendeeEmails {
		body.Attendees = append(body.Attendees, googleAttendee{Email: email})
	}

	endpoint := fmt.Sprintf("%s/calendars/%s/events", g.baseURL, url.PathEscape(g.calendarID))
	var created googleEvent
	if err := g.do(ctx, http.MethodPost, endpoint, body, &created); err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}

	g.logger.Info("calendar event created", "summary", req.Title, "start", req.StartTime)
	return created.HTMLLink, nil
}

// ListUpcoming returns events starting within the window, in start-time
// order.
func (g *GoogleService) ListUpcoming(ctx context.Context, maxResults, windowDays int) ([]models.EventSummary, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	if windowDays <= 0 {
		windowDays = 7
	}

	now := time.Now()
	params := url.Values{
		"timeMin":      {now.Format(time.RFC3339)},
		"timeMax":      {now.AddDate(0, 0, windowDays).Format(time.RFC3339)},
		"maxResults":   {fmt.Sprintf("%d", maxResults)},
		"singleEvents": {"true"},
		"orderBy":      {"startTime"},
	}
	endpoint := fmt.Sprintf("%s/calendars/%s/events?%s", g.baseURL, url.PathEscape(g.calendarID), params.Encode())

	var listing struct {
		Items []googleEvent `json:"items"`
	}
	if err := g.do(ctx, http.MethodGet, endpoint, nil, &listing); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	summaries := make([]models.EventSummary, 0, len(listing.Items))
	for _, item := range listing.Items {
		summary := models.EventSummary{
			Title:    item.Summary,
			Location: item.Location,
			HTMLLink: item.HTMLLink,
		}
		if item.Start != nil {
			summary.StartTime = parseGoogleTime(item.Start)
		}
		if item.End != nil {
			summary.EndTime = parseGoogleTime(item.End)
		}
		if item.Organizer != nil {
			summary.OrganizerName = item.Organizer.DisplayName
			if summary.OrganizerName == "" {
				summary.OrganizerName = item.Organizer.Email
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (g *GoogleService) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("calendar API returned %d: %s", resp.StatusCode, string(detail))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parseGoogleTime accepts both timed (dateTime) and all-day (date)
// event boundaries.
func parseGoogleTime(t *googleEventTime) time.Time {
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return parsed
		}
	}
	if t.Date != "" {
		if parsed, err := time.Parse("2006-01-02", t.Date); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
