package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("default config", func(t *testing.T) {
		p, err := New(Config{})
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if p.baseURL != "http://localhost:11434" {
			t.Errorf("baseURL = %q", p.baseURL)
		}
		if p.model != "nomic-embed-text:v1.5" {
			t.Errorf("model = %q", p.model)
		}
		if p.Dimension() != 768 {
			t.Errorf("Dimension() = %d, want 768", p.Dimension())
		}
	})

	t.Run("custom model dimension", func(t *testing.T) {
		p, _ := New(Config{Model: "mxbai-embed-large"})
		if p.Dimension() != 1024 {
			t.Errorf("Dimension() = %d, want 1024", p.Dimension())
		}
	})
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Prompt != "hello" {
			t.Errorf("prompt = %q", req.Prompt)
		}
		json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	p, _ := New(Config{BaseURL: srv.URL})
	got, err := p.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(got) != 3 || got[0] != 0.1 {
		t.Errorf("embedding = %v", got)
	}
}

func TestEmbedBatch(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float32{float32(calls)}})
	}))
	defer srv.Close()

	p, _ := New(Config{BaseURL: srv.URL})
	got, err := p.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0][0] != 1 || got[1][0] != 2 {
		t.Errorf("embeddings out of order: %v", got)
	}
}

func TestEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model missing", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := New(Config{BaseURL: srv.URL})
	if _, err := p.Embed(context.Background(), "hello"); err == nil {
		t.Error("Embed() should surface server errors")
	}
}
