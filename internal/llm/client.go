package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/docmind/backend/internal/classify"
	"github.com/docmind/backend/internal/prompt"
	"github.com/docmind/backend/pkg/circuitbreaker"
	"github.com/docmind/backend/pkg/logger"
	"github.com/docmind/backend/pkg/retry"
)

type Client struct {
	client          *openai.Client
	model           string
	embeddingModel  string
	generateTimeout time.Duration
	cb              *circuitbreaker.CircuitBreaker
	retryConfig     retry.Config
}

func NewClient(apiKey, model, embeddingModel string, generateTimeout time.Duration) *Client {
	client := openai.NewClient(apiKey)

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	// Generation failures are surfaced to the user after at most one silent
	// retry.
	retryConfig := retry.Config{
		MaxAttempts:    2,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	if generateTimeout == 0 {
		generateTimeout = 60 * time.Second
	}

	logger.Info("LLM client initialized",
		zap.String("model", model),
		zap.String("embedding_model", embeddingModel),
	)

	return &Client{
		client:          client,
		model:           model,
		embeddingModel:  embeddingModel,
		generateTimeout: generateTimeout,
		cb:              cb,
		retryConfig:     retryConfig,
	}
}

// Generate runs one blocking completion for the composed spec.
func (c *Client) Generate(ctx context.Context, spec prompt.Spec) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.generateTimeout)
	defer cancel()

	var content string

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
				Model:       c.model,
				Messages:    messagesFor(spec),
				Temperature: spec.Params.Temperature,
				MaxTokens:   spec.Params.MaxTokens,
			})
			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}
			if len(resp.Choices) == 0 {
				return errors.New("completion returned no choices")
			}

			logger.Debug("Completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			content = resp.Choices[0].Message.Content
			return nil
		})
	})
	if err != nil {
		return "", err
	}

	return content, nil
}

// GenerateStream runs one streaming completion, invoking onChunk once per
// produced fragment in production order. The return value is the fully
// concatenated text. Once the first fragment has been forwarded no retry is
// attempted; a replayed prefix would corrupt the client's transcript.
func (c *Client) GenerateStream(ctx context.Context, spec prompt.Spec, onChunk func(string) error) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.generateTimeout)
	defer cancel()

	var full strings.Builder

	err := c.cb.Execute(ctx, func() error {
		stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messagesFor(spec),
			Temperature: spec.Params.Temperature,
			MaxTokens:   spec.Params.MaxTokens,
			Stream:      true,
		})
		if err != nil {
			return fmt.Errorf("failed to open completion stream: %w", err)
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("stream receive failed: %w", err)
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}

			full.WriteString(delta)
			if err := onChunk(delta); err != nil {
				return fmt.Errorf("chunk forward failed: %w", err)
			}
		}
	})
	if err != nil {
		return "", err
	}

	logger.Debug("Stream completed", zap.Int("response_length", full.Len()))

	return full.String(), nil
}

// Embed turns text into a vector via the embedding model.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: []string{text},
				Model: openai.EmbeddingModel(c.embeddingModel),
			})
			if err != nil {
				return fmt.Errorf("failed to generate embedding: %w", err)
			}
			if len(resp.Data) == 0 {
				return errors.New("embedding response is empty")
			}

			embedding = make([]float32, len(resp.Data[0].Embedding))
			copy(embedding, resp.Data[0].Embedding)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return embedding, nil
}

// EmbedBatch vectorizes several texts in one request, preserving order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	var embeddings [][]float32

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
				Input: texts,
				Model: openai.EmbeddingModel(c.embeddingModel),
			})
			if err != nil {
				return fmt.Errorf("failed to generate embeddings: %w", err)
			}
			if len(resp.Data) != len(texts) {
				return fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts))
			}

			embeddings = make([][]float32, len(resp.Data))
			for i, d := range resp.Data {
				embeddings[i] = make([]float32, len(d.Embedding))
				copy(embeddings[i], d.Embedding)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return embeddings, nil
}

const styleClassifyPrompt = `Classify the response shape the user needs. Reply with exactly one word:
fast_answer - a quick fact
mastery - a how-to procedure
clarity - a comparison
insight - a judgment or assessment
control - an exhaustive list`

// ClassifyStyle asks the model for the response shape behind a content
// question. The classifier absorbs errors and timeouts, so this call simply
// propagates them.
func (c *Client) ClassifyStyle(ctx context.Context, query string) (classify.Style, float64, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: styleClassifyPrompt},
			{Role: openai.ChatMessageRoleUser, Content: query},
		},
		Temperature: 0,
		MaxTokens:   8,
	})
	if err != nil {
		return "", 0, fmt.Errorf("style classification failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", 0, errors.New("style classification returned no choices")
	}

	label := strings.TrimSpace(strings.ToLower(resp.Choices[0].Message.Content))
	switch classify.Style(label) {
	case classify.StyleFastAnswer, classify.StyleMastery, classify.StyleClarity,
		classify.StyleInsight, classify.StyleControl:
		return classify.Style(label), 0.85, nil
	}

	return "", 0, fmt.Errorf("unrecognized style label %q", label)
}

func messagesFor(spec prompt.Spec) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: spec.System},
		{Role: openai.ChatMessageRoleUser, Content: spec.UserPrompt()},
	}
}
