package config

import "time"

// GeminiModels defines which Gemini models to use for different tasks
type GeminiModels struct {
	// Answer is for the per-question multiple-choice call
	Answer string `yaml:"answer" json:"answer"`

	// Identify is for the upstream dish-identification pass
	Identify string `yaml:"identify" json:"identify"`

	// Embed is for knowledge-store embeddings
	Embed string `yaml:"embed" json:"embed"`
}

const (
	ProviderGemini = "gemini"
	ProviderMock   = "mock"
)

// AIConfig holds all model-service configuration
type AIConfig struct {
	APIKey          string       `yaml:"-" json:"-"` // Never serialize
	Provider        string       `yaml:"provider" json:"provider"`
	Models          GeminiModels `yaml:"models" json:"models"`
	TimeoutMS       int          `yaml:"timeout_ms" json:"timeoutMs"`
	Temperature     float32      `yaml:"temperature" json:"temperature"`
	MaxOutputTokens int32        `yaml:"max_output_tokens" json:"maxOutputTokens"`
	EmbedTaskType   string       `yaml:"embed_task_type" json:"embedTaskType"`
}

// DefaultAIConfig returns the default AI configuration
func DefaultAIConfig() AIConfig {
	return AIConfig{
		Provider: ProviderGemini,
		Models: GeminiModels{
			Answer:   "gemini-2.0-flash",
			Identify: "gemini-2.0-flash",
			Embed:    "gemini-embedding-001",
		},
		TimeoutMS:       30000,
		Temperature:     0.7,
		MaxOutputTokens: 500,
		EmbedTaskType:   "RETRIEVAL_QUERY",
	}
}

// IsEnabled returns true if the hosted model API is configured
func (c *AIConfig) IsEnabled() bool {
	return c.Provider == ProviderGemini && c.APIKey != ""
}

// Timeout returns the per-call deadline
func (c *AIConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}
