package llm

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	DefaultModel string
}

// OpenAIProvider implements Provider for OpenAI's chat models. Each
// Complete call creates an independent stream and goroutine, so the
// provider is safe for concurrent use.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientCfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	}
	return &OpenAIProvider{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: strings.TrimSpace(cfg.DefaultModel),
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Complete sends a streaming chat request to OpenAI.
func (p *OpenAIProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *CompletionChunk, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.defaultModel
	}
	if model == "" {
		return nil, NewProviderError("openai", req.Model, errors.New("model is required"))
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, msg := range req.Messages {
		role := msg.Role
		if role == "" {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   true,
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.Temperature != nil {
		temp := *req.Temperature
		if temp == 0 {
			// The SDK omits a zero temperature from the wire request, which
			// would fall back to the server default. Smallest-nonzero is the
			// documented workaround for pinning zero.
			temp = math.SmallestNonzeroFloat32
		}
		chatReq.Temperature = temp
	}

	stream, err := p.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, NewProviderError("openai", model, err)
	}

	chunks := make(chan *CompletionChunk)
	go p.processStream(ctx, stream, chunks, model)
	return chunks, nil
}

func (p *OpenAIProvider) processStream(ctx context.Context, stream *openai.ChatCompletionStream, out chan *CompletionChunk, model string) {
	defer close(out)
	defer stream.Close()

	for {
		select {
		case <-ctx.Done():
			out <- &CompletionChunk{Error: ctx.Err(), Done: true}
			return
		default:
		}

		response, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				out <- &CompletionChunk{Done: true}
				return
			}
			out <- &CompletionChunk{Error: NewProviderError("openai", model, err), Done: true}
			return
		}
		if len(response.Choices) == 0 {
			continue
		}
		if delta := response.Choices[0].Delta.Content; delta != "" {
			out <- &CompletionChunk{Text: delta}
		}
	}
}
