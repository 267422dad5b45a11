package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOllamaComplete(t *testing.T) {
	var gotReq ollamaChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		lines := []string{
			`{"message":{"role":"assistant","content":"Hello"},"done":false}`,
			`{"message":{"role":"assistant","content":" world"},"done":false}`,
			`{"message":{"role":"assistant","content":""},"done":true}`,
		}
		for _, line := range lines {
			if _, err := w.Write([]byte(line + "\n")); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL, DefaultModel: "llama3.2"})

	text, err := CompleteText(context.Background(), p, &CompletionRequest{
		System:      "You are a personal assistant",
		Messages:    []CompletionMessage{{Role: "user", Content: "hi"}},
		Temperature: Deterministic(),
	})
	if err != nil {
		t.Fatalf("CompleteText() error = %v", err)
	}
	if text != "Hello world" {
		t.Errorf("text = %q, want %q", text, "Hello world")
	}

	if gotReq.Model != "llama3.2" {
		t.Errorf("model = %q, want llama3.2", gotReq.Model)
	}
	if !gotReq.Stream {
		t.Error("stream should be true")
	}
	if temp, ok := gotReq.Options["temperature"]; !ok || temp != float64(0) {
		t.Errorf("options.temperature = %v, want 0", temp)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Errorf("messages = %+v, want system prompt first", gotReq.Messages)
	}
}

func TestOllamaCompleteStreamingChunks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lines := []string{
			`{"message":{"content":"a"},"done":false}`,
			`{"message":{"content":"b"},"done":false}`,
			`{"done":true}`,
		}
		for _, line := range lines {
			w.Write([]byte(line + "\n"))
		}
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL, DefaultModel: "llama3.2"})
	chunks, err := p.Complete(context.Background(), &CompletionRequest{
		Messages: []CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	var texts []string
	var done bool
	for chunk := range chunks {
		if chunk.Error != nil {
			t.Fatalf("chunk error: %v", chunk.Error)
		}
		if chunk.Text != "" {
			texts = append(texts, chunk.Text)
		}
		if chunk.Done {
			done = true
		}
	}
	if strings.Join(texts, "") != "ab" {
		t.Errorf("fragments = %v, want a then b", texts)
	}
	if !done {
		t.Error("final chunk should carry Done")
	}
}

func TestOllamaCompleteServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL, DefaultModel: "llama3.2"})
	_, err := p.Complete(context.Background(), &CompletionRequest{
		Messages: []CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("Complete() = nil error, want provider error")
	}
	var provErr *ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("error %T, want *ProviderError", err)
	}
	if provErr.Status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", provErr.Status)
	}
}

func TestOllamaCompleteInlineError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"out of memory"}` + "\n"))
	}))
	defer srv.Close()

	p := NewOllamaProvider(OllamaConfig{BaseURL: srv.URL, DefaultModel: "llama3.2"})
	_, err := CompleteText(context.Background(), p, &CompletionRequest{
		Messages: []CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err == nil || !strings.Contains(err.Error(), "out of memory") {
		t.Errorf("error = %v, want inline ollama error surfaced", err)
	}
}

func TestOllamaRequiresModel(t *testing.T) {
	p := NewOllamaProvider(OllamaConfig{DefaultModel: ""})
	if _, err := p.Complete(context.Background(), &CompletionRequest{}); err == nil {
		t.Error("Complete() with no model should fail")
	}
}
