package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const generateContentAction = "generateContent"

// ContentGenerator performs a single text-generation call against a model.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model, prompt string) (string, error)
}

// ModelCatalog lists the models that currently accept generation calls.
type ModelCatalog interface {
	ListGenerationModels(ctx context.Context) ([]string, error)
}

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type GeminiService interface {
	ContentGenerator
	ModelCatalog
	Embedder
}

type GeminiOptions struct {
	APIKey          string
	EmbeddingModel  string
	Temperature     float32
	MaxOutputTokens int32
}

type geminiService struct {
	client          *genai.Client
	embedModel      string
	temperature     float32
	maxOutputTokens int32
}

func NewGeminiService(opts GeminiOptions) (GeminiService, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is empty")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	embedModel := opts.EmbeddingModel
	if embedModel == "" {
		embedModel = "text-embedding-004"
	}

	return &geminiService{
		client:          client,
		embedModel:      embedModel,
		temperature:     opts.Temperature,
		maxOutputTokens: opts.MaxOutputTokens,
	}, nil
}

// ListGenerationModels implements ModelCatalog.
func (g *geminiService) ListGenerationModels(ctx context.Context) ([]string, error) {
	var names []string
	for model, err := range g.client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("failed to list models: %w", toProviderError(err))
		}
		if supportsAction(model.SupportedActions, generateContentAction) {
			names = append(names, NormalizeModelName(model.Name))
		}
	}

	return names, nil
}

// GenerateContent implements ContentGenerator.
func (g *geminiService) GenerateContent(ctx context.Context, model, prompt string) (string, error) {
	temperature := g.temperature
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: g.maxOutputTokens,
	}

	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), config)
	if err != nil {
		return "", toProviderError(err)
	}

	if resp == nil {
		return "", fmt.Errorf("%w: nil response", ErrEmptyResponse)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptyResponse, emptyReason(resp))
	}

	return text, nil
}

// GenerateEmbedding implements Embedder.
func (g *geminiService) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	// Truncate text if too long (max ~10000 tokens for embedding)
	text = TruncateRunes(text, 40000)

	result, err := g.client.Models.EmbedContent(ctx, g.embedModel, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: genai.Ptr[int32](EmbeddingDimensions),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", toProviderError(err))
	}

	if result == nil || len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}

	return result.Embeddings[0].Values, nil
}

// toProviderError maps the SDK's typed API error onto ProviderError so the
// retry loop never has to look at message text.
func toProviderError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Code: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message, Err: err}
	}

	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &ProviderError{Code: apiErrPtr.Code, Status: apiErrPtr.Status, Message: apiErrPtr.Message, Err: err}
	}

	return err
}

func emptyReason(resp *genai.GenerateContentResponse) string {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return fmt.Sprintf("prompt blocked (%s)", resp.PromptFeedback.BlockReason)
	}

	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != "" {
		reason := resp.Candidates[0].FinishReason
		log.Debug().Str("finish_reason", string(reason)).Msg("⚠️ Gemini returned a candidate without text")
		return fmt.Sprintf("finish reason %s, possibly suppressed by a safety filter", reason)
	}

	return "no candidates returned"
}

func supportsAction(actions []string, action string) bool {
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

// NormalizeModelName strips the "models/" resource prefix the list endpoint
// uses, so listed names compare equal to configured identifiers.
func NormalizeModelName(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "models/")
}
