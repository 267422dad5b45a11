package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// sseBody writes chat completion deltas in the SSE format the OpenAI
// streaming API uses.
func sseBody(w http.ResponseWriter, deltas []string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, d := range deltas {
		payload := map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion.chunk",
			"choices": []map[string]any{{"index": 0, "delta": map[string]any{"content": d}}},
		}
		data, _ := json.Marshal(payload)
		w.Write([]byte("data: "))
		w.Write(data)
		w.Write([]byte("\n\n"))
	}
	w.Write([]byte("data: [DONE]\n\n"))
}

func TestOpenAIComplete(t *testing.T) {
	var gotTemp float32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model       string  `json:"model"`
			Temperature float32 `json:"temperature"`
			Stream      bool    `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		gotTemp = req.Temperature
		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %q", req.Model)
		}
		if !req.Stream {
			t.Error("stream should be true")
		}
		sseBody(w, []string{"Par", "is"})
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1", DefaultModel: "gpt-4o-mini"})
	text, err := CompleteText(context.Background(), p, &CompletionRequest{
		Messages:    []CompletionMessage{{Role: "user", Content: "capital of France?"}},
		Temperature: Deterministic(),
	})
	if err != nil {
		t.Fatalf("CompleteText() error = %v", err)
	}
	if text != "Paris" {
		t.Errorf("text = %q, want Paris", text)
	}
	if gotTemp == 0 {
		t.Error("deterministic temperature should survive serialization as a nonzero sentinel")
	}
}

func TestOpenAICompleteAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"quota exceeded"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "test", BaseURL: srv.URL + "/v1", DefaultModel: "gpt-4o-mini"})
	_, err := CompleteText(context.Background(), p, &CompletionRequest{
		Messages: []CompletionMessage{{Role: "user", Content: "hi"}},
	})
	if err == nil {
		t.Fatal("CompleteText() = nil error, want failure")
	}
}
