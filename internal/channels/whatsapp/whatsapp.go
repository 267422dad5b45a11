// Package whatsapp implements the WhatsApp Business Cloud API webhook
// adapter: Meta delivers inbound messages to our webhook and replies go
// out through the Graph API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/conciergehq/concierge/internal/channels"
)

// Config holds WhatsApp Cloud API settings.
type Config struct {
	AccessToken     string `yaml:"access_token"`
	PhoneNumberID   string `yaml:"phone_number_id"`
	VerifyToken     string `yaml:"verify_token"`
	GraphAPIVersion string `yaml:"graph_api_version"`
	ListenAddr      string `yaml:"listen_addr"`

	// GraphBaseURL overrides the Graph API endpoint, for tests.
	GraphBaseURL string `yaml:"-"`
}

// Adapter serves the webhook and sends replies via the Graph API.
type Adapter struct {
	config    Config
	responder channels.Responder
	client    *http.Client
	server    *http.Server
	logger    *slog.Logger
}

var _ channels.Adapter = (*Adapter)(nil)

// New creates the WhatsApp adapter.
func New(cfg Config, responder channels.Responder, logger *slog.Logger) *Adapter {
	if cfg.GraphAPIVersion == "" {
		cfg.GraphAPIVersion = "v21.0"
	}
	if cfg.GraphBaseURL == "" {
		cfg.GraphBaseURL = "https://graph.facebook.com"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8081"
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		config:    cfg,
		responder: responder,
		client:    &http.Client{Timeout: 30 * time.Second},
		logger:    logger.With("component", "whatsapp"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", a.handleWebhook)
	a.server = &http.Server{Addr: cfg.ListenAddr, Handler: mux}
	return a
}

// Name implements channels.Adapter.
func (a *Adapter) Name() string { return "whatsapp" }

// Start serves the webhook until the listener fails or Stop is called.
func (a *Adapter) Start(ctx context.Context) error {
	a.logger.Info("whatsapp webhook listening", "addr", a.config.ListenAddr)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("whatsapp webhook: %w", err)
	}
	return nil
}

// Stop shuts the webhook server down.
func (a *Adapter) Stop(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}

func (a *Adapter) handleWebhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.handleVerification(w, r)
	case http.MethodPost:
		a.handleMessage(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleVerification answers Meta's subscription handshake: echo the
// challenge when the verify token matches, 403 otherwise.
func (a *Adapter) handleVerification(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == a.config.VerifyToken {
		a.logger.Info("webhook verified")
		fmt.Fprint(w, q.Get("hub.challenge"))
		return
	}
	a.logger.Warn("webhook verification rejected", "mode", q.Get("hub.mode"))
	w.WriteHeader(http.StatusForbidden)
}

// Inbound webhook payload, trimmed to the fields we read.
type webhookPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// handleMessage answers inbound text messages. The webhook always
// acknowledges with 200 so Meta does not retry; processing failures are
// logged only.
func (a *Adapter) handleMessage(w http.ResponseWriter, r *http.Request) {
	defer w.WriteHeader(http.StatusOK)

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		a.logger.Warn("undecodable webhook payload", "error", err)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, msg := range change.Value.Messages {
				if msg.Type != "text" || msg.Text.Body == "" {
					continue
				}
				a.respondTo(r.Context(), msg.From, msg.Text.Body)
			}
		}
	}
}

func (a *Adapter) respondTo(ctx context.Context, sender, text string) {
	start := time.Now()
	sessionID := "whatsapp:" + sender
	reply := a.responder.Respond(ctx, sessionID, text)
	if err := a.send(ctx, sender, reply); err != nil {
		a.logger.Error("reply delivery failed", "session", sessionID, "error", err)
		return
	}
	a.logger.Info("message handled", "session", sessionID, "duration", time.Since(start))
}

// send delivers a text message through the Graph API.
func (a *Adapter) send(ctx context.Context, to, text string) error {
	endpoint := fmt.Sprintf("%s/%s/%s/messages", a.config.GraphBaseURL, a.config.GraphAPIVersion, a.config.PhoneNumberID)
	payload, err := json.Marshal(map[string]any{
		"messaging_product": "whatsapp",
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": text},
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.config.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("graph API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("graph API returned %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}
