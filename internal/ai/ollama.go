package ai

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"glance/internal/config"
)

// OllamaClient implements Client against a local or remote Ollama server.
type OllamaClient struct {
	client *api.Client
	model  string
}

// NewOllamaClient creates an Ollama-backed client.
func NewOllamaClient(cfg *config.Config) (*OllamaClient, error) {
	baseURL, err := url.Parse(cfg.API.OllamaBaseURL)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: 10 * time.Minute}
	return &OllamaClient{
		client: api.NewClient(baseURL, httpClient),
		model:  cfg.Model.Name,
	}, nil
}

// Model returns the model name in use.
func (c *OllamaClient) Model() string {
	return c.model
}

// Close releases the client.
func (c *OllamaClient) Close() error {
	return nil
}

// Stream sends the prompt over the Ollama chat API.
func (c *OllamaClient) Stream(ctx context.Context, system, user string) (*StreamingResponse, error) {
	messages := make([]api.Message, 0, 2)
	if system != "" {
		messages = append(messages, api.Message{Role: "system", Content: system})
	}
	messages = append(messages, api.Message{Role: "user", Content: user})

	stream := true
	req := &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
	}

	chunks := make(chan Chunk, 16)
	go func() {
		defer close(chunks)

		err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				if !deliver(ctx, chunks, Chunk{Text: resp.Message.Content}) {
					return ctx.Err()
				}
			}
			return nil
		})
		if err != nil {
			deliver(ctx, chunks, Chunk{Err: err, Done: true})
			return
		}
		deliver(ctx, chunks, Chunk{Done: true})
	}()

	return &StreamingResponse{Chunks: chunks}, nil
}
