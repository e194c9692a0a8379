// Package embedding wraps the hosted embedding API behind retry and
// error-classification policy.
package embedding

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"pdfrag/internal/config"
	"pdfrag/internal/faults"
)

// Client converts texts into fixed-dimension vectors via an
// OpenAI-compatible embeddings endpoint.
type Client struct {
	embedder   embeddings.Embedder
	timeout    time.Duration
	maxRetries uint64
}

// NewClient builds a client for the configured endpoint and model.
func NewClient(cfg *config.LLMConfig) (*Client, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.APIKey(), "Bearer ")),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	)
	if err != nil {
		return nil, faults.New(faults.KindFatal, "init embedder", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, faults.New(faults.KindFatal, "init embedder", err)
	}
	return newClient(embedder, cfg), nil
}

func newClient(embedder embeddings.Embedder, cfg *config.LLMConfig) *Client {
	return &Client{
		embedder:   embedder,
		timeout:    cfg.Timeout(),
		maxRetries: uint64(cfg.MaxRetries),
	}
}

// EmbedTexts returns one vector per input, in input order.
func (c *Client) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var vectors [][]float32
	err := faults.Do(ctx, "embed texts", c.maxRetries, c.timeout, func(ctx context.Context) error {
		v, err := c.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return err
		}
		vectors = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, faults.Newf(faults.KindTransient, "embed texts", "got %d embeddings for %d inputs", len(vectors), len(texts))
	}
	log.Debug().Int("texts", len(texts)).Msg("embedded texts")
	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := faults.Do(ctx, "embed query", c.maxRetries, c.timeout, func(ctx context.Context) error {
		v, err := c.embedder.EmbedQuery(ctx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}
