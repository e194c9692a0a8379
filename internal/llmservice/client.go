// Package llmservice generates grounded answers via a hosted
// chat-completion API.
package llmservice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"pdfrag/internal/config"
	"pdfrag/internal/faults"
	"pdfrag/internal/models"
)

// Generator builds a context-stuffed prompt from retrieved chunks and asks
// the chat model for an answer.
type Generator struct {
	llm          llms.Model
	temperature  float64
	timeout      time.Duration
	maxRetries   uint64
	historyTurns int
}

// NewGenerator builds a generator for the configured endpoint and model.
func NewGenerator(cfg *config.LLMConfig, historyTurns int) (*Generator, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.APIKey(), "Bearer ")),
		openai.WithModel(cfg.ChatModel),
	)
	if err != nil {
		return nil, faults.New(faults.KindFatal, "init generator", err)
	}
	return newGenerator(llm, cfg, historyTurns), nil
}

func newGenerator(llm llms.Model, cfg *config.LLMConfig, historyTurns int) *Generator {
	return &Generator{
		llm:          llm,
		temperature:  cfg.Temperature,
		timeout:      cfg.Timeout(),
		maxRetries:   uint64(cfg.MaxRetries),
		historyTurns: historyTurns,
	}
}

// Answer asks the model about question given the retrieved hits and recent
// conversation turns. The returned turn cites exactly the hits supplied, in
// retrieval order; the model never adds or removes citations.
func (g *Generator) Answer(ctx context.Context, question string, hits []models.Hit, history []models.Turn) (models.Turn, error) {
	messages := g.buildMessages(question, hits, history)

	var resp *llms.ContentResponse
	err := faults.Do(ctx, "generate answer", g.maxRetries, g.timeout, func(ctx context.Context) error {
		r, err := g.llm.GenerateContent(ctx, messages, llms.WithTemperature(g.temperature))
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return models.Turn{}, err
	}
	if len(resp.Choices) == 0 {
		return models.Turn{}, faults.Newf(faults.KindTransient, "generate answer", "model returned no choices")
	}
	log.Debug().Str("question", question).Int("sources", len(hits)).Msg("generated answer")
	return models.Turn{
		Question: question,
		Answer:   strings.TrimSpace(resp.Choices[0].Content),
		Sources:  hits,
	}, nil
}

func (g *Generator) buildMessages(question string, hits []models.Hit, history []models.Turn) []llms.MessageContent {
	messages := []llms.MessageContent{
		message(schema.ChatMessageTypeSystem, models.AnswerSystemPrompt),
	}
	for _, turn := range tail(history, g.historyTurns) {
		messages = append(messages,
			message(schema.ChatMessageTypeHuman, turn.Question),
			message(schema.ChatMessageTypeAI, turn.Answer),
		)
	}

	var contextBlock strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&contextBlock, "[page %d] %s\n\n", h.Chunk.Page, h.Chunk.Content)
	}
	prompt := fmt.Sprintf(models.AnswerPromptTemplate, contextBlock.String(), question)
	return append(messages, message(schema.ChatMessageTypeHuman, prompt))
}

func message(role schema.ChatMessageType, text string) llms.MessageContent {
	return llms.MessageContent{
		Role:  role,
		Parts: []llms.ContentPart{llms.TextContent{Text: text}},
	}
}

func tail(turns []models.Turn, n int) []models.Turn {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
