package knowledge

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// GenAIEmbedder generates embeddings using the Gemini API
type GenAIEmbedder struct {
	client   *genai.Client
	model    string
	taskType string
	dims     int
}

// NewGenAIEmbedder creates an embedder for model. taskType is one of the
// Gemini task type names; unknown values fall back to RETRIEVAL_QUERY.
func NewGenAIEmbedder(ctx context.Context, apiKey, model, taskType string) (*GenAIEmbedder, error) {
	if apiKey == "" {
		return nil, errors.New("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIEmbedder{
		client:   client,
		model:    model,
		taskType: parseTaskType(taskType),
		dims:     768,
	}, nil
}

func parseTaskType(name string) string {
	switch name {
	case "SEMANTIC_SIMILARITY", "RETRIEVAL_DOCUMENT", "RETRIEVAL_QUERY", "QUESTION_ANSWERING", "CLUSTERING":
		return name
	default:
		return "RETRIEVAL_QUERY"
	}
}

// Embed generates an embedding for a single text
func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{
			TaskType:             e.taskType,
			OutputDimensionality: genai.Ptr(int32(e.dims)),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("GenAI embed failed: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, errors.New("no embeddings returned")
	}
	return result.Embeddings[0].Values, nil
}

func (e *GenAIEmbedder) Dimensions() int { return e.dims }

func (e *GenAIEmbedder) Name() string { return "genai:" + e.model }
