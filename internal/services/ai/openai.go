// Package ai wraps the OpenAI API behind the two narrow operations the
// quest engine needs: free-form text generation and title embeddings.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/softdays/softdays/internal/config"
	"github.com/softdays/softdays/internal/logging"
)

// Completion carries the raw model output plus usage accounting for the
// generation audit log.
type Completion struct {
	Text         string
	Model        string
	TokensInput  int
	TokensOutput int
	Duration     time.Duration
}

type Client struct {
	client     openai.Client
	chatModel  string
	embedModel string
	embedDims  int
	timeout    time.Duration
	configured bool
}

func NewClient(cfg config.AIConfig) *Client {
	// The quest controller owns retry policy; the SDK must not retry
	// underneath it.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.OpenAIAPIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &Client{
		client:     openai.NewClient(opts...),
		chatModel:  cfg.ChatModel,
		embedModel: cfg.EmbedModel,
		embedDims:  cfg.EmbedDimensions,
		timeout:    cfg.RequestTimeout,
		configured: strings.TrimSpace(cfg.OpenAIAPIKey) != "" || cfg.BaseURL != "",
	}
}

// Generate sends a prompt and returns the model's free-form reply. There is
// no schema guarantee on the reply; callers parse it tolerantly. A timeout
// is treated the same as any other transport failure.
func (c *Client) Generate(ctx context.Context, prompt string) (Completion, error) {
	if !c.configured {
		logging.Warn("OpenAI API key missing; generation unavailable")
		return Completion{}, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.chatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return Completion{}, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("%w: empty response", ErrGenerationUnavailable)
	}

	return Completion{
		Text:         resp.Choices[0].Message.Content,
		Model:        c.chatModel,
		TokensInput:  int(resp.Usage.PromptTokens),
		TokensOutput: int(resp.Usage.CompletionTokens),
		Duration:     time.Since(start),
	}, nil
}

// Embed maps text to a fixed-length vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if !c.configured {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.embedModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", ErrEmbeddingUnavailable)
	}

	raw := resp.Data[0].Embedding
	embedding := make([]float32, len(raw))
	for i, v := range raw {
		embedding[i] = float32(v)
	}
	return embedding, nil
}

// Dimensions reports the vector length the configured embedding model emits.
func (c *Client) Dimensions() int {
	return c.embedDims
}
