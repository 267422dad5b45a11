// Package web serves the browser chat: a websocket endpoint that streams
// replies, the embedded chat page, and Prometheus metrics.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed static
var staticFS embed.FS

// StreamResponder answers a query as a stream of reply fragments.
type StreamResponder interface {
	RespondStream(ctx context.Context, sessionID, query string) <-chan string
}

// Config holds the web server settings.
type Config struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Server is the HTTP server hosting the chat UI and websocket.
type Server struct {
	responder StreamResponder
	server    *http.Server
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// wsEvent is one websocket frame sent to the browser. A reply is a run
// of delta events closed by a done event.
type wsEvent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// NewServer creates the web server.
func NewServer(cfg Config, responder StreamResponder, logger *slog.Logger) *Server {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		responder: responder,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		logger: logger.With("component", "web"),
	}

	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("embedded static assets missing: %v", err))
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(static)))
	mux.HandleFunc("/ws", s.handleWS)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	s.server = &http.Server{
		Addr:              net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the server's root handler, for tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start serves HTTP until the listener fails or Stop is called.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("web server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleWS runs one chat connection. Every connection is its own
// session; messages are handled sequentially so replies never interleave.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	wsConnections.Inc()
	sessionID := "ws:" + uuid.New().String()
	s.logger.Info("chat connected", "session", sessionID, "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("chat closed unexpectedly", "session", sessionID, "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage || len(data) == 0 {
			continue
		}

		if err := s.streamReply(ctx, conn, sessionID, string(data)); err != nil {
			s.logger.Warn("reply stream aborted", "session", sessionID, "error", err)
			return
		}
	}
}

// streamReply forwards reply fragments to the socket as delta events and
// closes the reply with a done event. A write failure cancels the
// in-flight generation.
func (s *Server) streamReply(ctx context.Context, conn *websocket.Conn, sessionID, query string) error {
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for fragment := range s.responder.RespondStream(ctx, sessionID, query) {
		if err := writeEvent(conn, wsEvent{Type: "delta", Text: fragment}); err != nil {
			cancel()
			return err
		}
	}

	queriesHandled.WithLabelValues("websocket").Inc()
	responseDuration.Observe(time.Since(start).Seconds())
	return writeEvent(conn, wsEvent{Type: "done"})
}

func writeEvent(conn *websocket.Conn, ev wsEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
