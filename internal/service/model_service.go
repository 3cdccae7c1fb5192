package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"foodieqa/internal/config"
	"foodieqa/internal/dataset"
	"foodieqa/internal/prompt"
)

// ModelService answers one composed prompt about one image
type ModelService interface {
	Complete(ctx context.Context, p prompt.Prompt, img *dataset.Image) (string, error)
	Name() string
}

// ServiceError wraps a failed model call
type ServiceError struct {
	Op    string
	Model string
	Err   error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Model, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// ErrEmptyResponse is returned when the model produced no text
var ErrEmptyResponse = errors.New("empty response from Gemini")

// GeminiService calls the Gemini API through google.golang.org/genai
type GeminiService struct {
	client *genai.Client
	model  string
	config *config.AIConfig
}

// NewGeminiService creates a service bound to modelName
func NewGeminiService(ctx context.Context, cfg *config.AIConfig, modelName string) (*GeminiService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is required for the gemini provider")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GeminiService{client: client, model: modelName, config: cfg}, nil
}

func (s *GeminiService) Name() string { return "gemini:" + s.model }

// Complete sends the system instruction plus the image and user text
func (s *GeminiService) Complete(ctx context.Context, p prompt.Prompt, img *dataset.Image) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout())
	defer cancel()

	parts := make([]*genai.Part, 0, 2)
	if img != nil && len(img.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}
	parts = append(parts, genai.NewPartFromText(p.User))

	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(s.config.Temperature),
		MaxOutputTokens: s.config.MaxOutputTokens,
	}
	if strings.TrimSpace(p.System) != "" {
		cfg.SystemInstruction = genai.NewContentFromText(p.System, genai.RoleUser)
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, cfg)
	if err != nil {
		return "", &ServiceError{Op: "generate", Model: s.model, Err: err}
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &ServiceError{Op: "generate", Model: s.model, Err: ErrEmptyResponse}
	}
	return text, nil
}

// NewModelService picks the provider from cfg. The mock is used when the
// Gemini provider has no key, matching the offline behavior of the tools.
func NewModelService(ctx context.Context, cfg *config.AIConfig, modelName string) (ModelService, error) {
	if cfg.Provider == config.ProviderMock || !cfg.IsEnabled() {
		return NewMockService(), nil
	}
	return NewGeminiService(ctx, cfg, modelName)
}
