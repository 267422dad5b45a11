package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

type stubStreamer struct {
	fragments []string
	sessions  chan string
}

func (s *stubStreamer) RespondStream(ctx context.Context, sessionID, query string) <-chan string {
	if s.sessions != nil {
		s.sessions <- sessionID
	}
	out := make(chan string)
	go func() {
		defer close(out)
		for _, f := range s.fragments {
			select {
			case out <- f:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func newTestServer(t *testing.T, streamer StreamResponder) *httptest.Server {
	t.Helper()
	s := NewServer(Config{}, streamer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	var ev wsEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return ev
}

func TestWebsocketStreamsReply(t *testing.T) {
	srv := newTestServer(t, &stubStreamer{fragments: []string{"Hello ", "world"}})
	conn := dialWS(t, srv)

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hi")); err != nil {
		t.Fatalf("write: %v", err)
	}

	var reply strings.Builder
	for {
		ev := readEvent(t, conn)
		if ev.Type == "done" {
			break
		}
		if ev.Type != "delta" {
			t.Fatalf("unexpected event type %q", ev.Type)
		}
		reply.WriteString(ev.Text)
	}
	if reply.String() != "Hello world" {
		t.Errorf("reply = %q, want Hello world", reply.String())
	}
}

func TestEachConnectionGetsOwnSession(t *testing.T) {
	sessions := make(chan string, 2)
	srv := newTestServer(t, &stubStreamer{fragments: []string{"ok"}, sessions: sessions})

	for i := 0; i < 2; i++ {
		conn := dialWS(t, srv)
		if err := conn.WriteMessage(websocket.TextMessage, []byte("hi")); err != nil {
			t.Fatalf("write: %v", err)
		}
		for ev := readEvent(t, conn); ev.Type != "done"; ev = readEvent(t, conn) {
		}
		conn.Close()
	}

	a, b := <-sessions, <-sessions
	if a == b {
		t.Errorf("connections shared session id %q", a)
	}
	if !strings.HasPrefix(a, "ws:") {
		t.Errorf("session id %q missing ws prefix", a)
	}
}

func TestRepliesDoNotInterleave(t *testing.T) {
	srv := newTestServer(t, &stubStreamer{fragments: []string{"a", "b"}})
	conn := dialWS(t, srv)

	// Two queries back to back: the first reply must fully finish before
	// the second one starts.
	conn.WriteMessage(websocket.TextMessage, []byte("one"))
	conn.WriteMessage(websocket.TextMessage, []byte("two"))

	var types []string
	for i := 0; i < 6; i++ {
		types = append(types, readEvent(t, conn).Type)
	}
	want := []string{"delta", "delta", "done", "delta", "delta", "done"}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("event sequence = %v, want %v", types, want)
		}
	}
}

func TestChatPageServed(t *testing.T) {
	srv := newTestServer(t, &stubStreamer{})
	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "Concierge") {
		t.Error("chat page not served at /")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubStreamer{})
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("metrics endpoint not serving Prometheus output")
	}
}
