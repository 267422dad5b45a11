// Package llm defines the language model collaborator contract and its
// provider implementations.
package llm

import (
	"context"
	"strings"
)

// Provider defines the interface for language model backends.
//
// Implementations must be safe for concurrent use; multiple sessions may
// call Complete simultaneously.
type Provider interface {
	// Complete sends a chat request and returns a streaming response.
	// The returned channel is closed after the final chunk. Non-streaming
	// callers drain it with CompleteText.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error)

	// Name returns the provider name.
	Name() string
}

// CompletionMessage is a single message in a conversation.
type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest contains the parameters for a completion.
type CompletionRequest struct {
	// Model overrides the provider's default model when set.
	Model string `json:"model,omitempty"`

	// System is the system prompt, handled separately from messages.
	System string `json:"system,omitempty"`

	// Messages is the conversation history in chronological order,
	// ending with the current user prompt.
	Messages []CompletionMessage `json:"messages"`

	// Temperature pins the sampling temperature when non-nil. Classification
	// and extraction set it to zero for reproducible output; nil keeps the
	// provider default.
	Temperature *float32 `json:"temperature,omitempty"`

	// MaxTokens limits the response length. Zero uses the provider default.
	MaxTokens int `json:"max_tokens,omitempty"`
}

// CompletionChunk is a single fragment of a streaming response.
type CompletionChunk struct {
	// Text contains partial response text.
	Text string `json:"text,omitempty"`

	// Done is true on the final chunk of a successful stream.
	Done bool `json:"done,omitempty"`

	// Error terminates the stream when non-nil.
	Error error `json:"-"`
}

// Deterministic returns a temperature pointer pinned to zero.
func Deterministic() *float32 {
	t := float32(0)
	return &t
}

// CompleteText drains a completion into a single string. It is the
// non-streaming invocation mode: the first chunk error aborts and is
// returned with whatever text was already produced discarded.
func CompleteText(ctx context.Context, p Provider, req *CompletionRequest) (string, error) {
	chunks, err := p.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for chunk := range chunks {
		if chunk.Error != nil {
			return "", chunk.Error
		}
		sb.WriteString(chunk.Text)
	}
	return sb.String(), nil
}
