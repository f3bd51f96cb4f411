package ai

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"glance/internal/config"
	"glance/internal/logging"
)

// GeminiClient implements Client on the Gemini API.
type GeminiClient struct {
	client    *genai.Client
	model     string
	maxOutput int32
}

// NewGeminiClient creates a Gemini-backed client. A missing key is a fatal
// configuration error, detected before any request is made.
func NewGeminiClient(ctx context.Context, cfg *config.Config) (*GeminiClient, error) {
	if cfg.API.GeminiKey == "" {
		return nil, ErrBadCredentials
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.API.GeminiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	return &GeminiClient{
		client:    client,
		model:     cfg.Model.Name,
		maxOutput: int32(cfg.Model.MaxOutput),
	}, nil
}

// Model returns the model name in use.
func (c *GeminiClient) Model() string {
	return c.model
}

// Close releases the client. The genai client holds no persistent
// connection, so this is a no-op kept for interface symmetry.
func (c *GeminiClient) Close() error {
	return nil
}

// Stream sends the prompt and pumps response chunks onto a channel.
func (c *GeminiClient) Stream(ctx context.Context, system, user string) (*StreamingResponse, error) {
	genCfg := &genai.GenerateContentConfig{}
	if system != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if c.maxOutput > 0 {
		genCfg.MaxOutputTokens = c.maxOutput
	}

	iter := c.client.Models.GenerateContentStream(ctx, c.model, genai.Text(user), genCfg)

	chunks := make(chan Chunk, 16)
	go func() {
		defer close(chunks)

		for resp, err := range iter {
			if err != nil {
				deliver(ctx, chunks, Chunk{Err: classifyGenaiError(err), Done: true})
				return
			}
			if text := responseText(resp); text != "" {
				if !deliver(ctx, chunks, Chunk{Text: text}) {
					return
				}
			}
		}
		deliver(ctx, chunks, Chunk{Done: true})
	}()

	return &StreamingResponse{Chunks: chunks}, nil
}

// deliver sends a chunk unless the consumer is gone.
func deliver(ctx context.Context, chunks chan<- Chunk, c Chunk) bool {
	select {
	case chunks <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	text := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			text += part.Text
		}
	}
	return text
}

// classifyGenaiError maps SDK errors onto the local taxonomy so the retry
// policy can reason about them.
func classifyGenaiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == 401 || apiErr.Code == 403 {
			logging.Error("gemini auth failure", "code", apiErr.Code)
			return ErrBadCredentials
		}
		return &APIError{StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	return err
}
