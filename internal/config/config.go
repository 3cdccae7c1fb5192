package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"foodieqa/internal/model"
)

// DataConfig locates the benchmark inputs and outputs
type DataConfig struct {
	DataDir         string `yaml:"data_dir"`
	QuestionsFile   string `yaml:"questions_file"`    // sivqa_tidy.json
	CategoryMapFile string `yaml:"category_map_file"` // question_type_analysis.json, optional
	PredictionsFile string `yaml:"predictions_file"`  // dish_identification_results.jsonl
	DishCatalogFile string `yaml:"dish_catalog_file"` // dishes_data.json
	RecipesFile     string `yaml:"recipes_file"`      // all_recipes.json
	OutputDir       string `yaml:"output_dir"`
}

// RunConfig is the recognized per-run option surface
type RunConfig struct {
	TemplateVariant        int    `yaml:"template_variant"`
	ShowDishNameInQuestion bool   `yaml:"show_dish_name_in_question"`
	Language               string `yaml:"language"`
	UseWebImage            bool   `yaml:"use_web_image"`
	AugmentationMode       string `yaml:"augmentation_mode"` // Empty means the variant's default
	Adaptive               bool   `yaml:"adaptive"`          // Route variant by question category
	Workers                int    `yaml:"workers"`
	SnippetTopK            int    `yaml:"snippet_top_k"`
}

// StorageConfig configures the stores behind the resolver and the report API
type StorageConfig struct {
	MongoURI        string `yaml:"mongo_uri"`
	MongoDatabase   string `yaml:"mongo_database"`
	RedisAddr       string `yaml:"redis_addr"`
	KnowledgeDB     string `yaml:"knowledge_db"` // SQLite file for the knowledge store
	DishSource      string `yaml:"dish_source"`  // "file" or "mongo"
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

// ServerConfig configures foodieqa serve
type ServerConfig struct {
	Port      string `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"-"`
	JWTSecret string `yaml:"-"`
}

// Config is the full harness configuration. It is built once and passed
// explicitly to every component.
type Config struct {
	Data    DataConfig    `yaml:"data"`
	Run     RunConfig     `yaml:"run"`
	AI      AIConfig      `yaml:"ai"`
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
}

const (
	DishSourceFile  = "file"
	DishSourceMongo = "mongo"
)

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			DataDir:         "data_folder",
			QuestionsFile:   "sivqa_tidy.json",
			PredictionsFile: "dish_identification_results.jsonl",
			DishCatalogFile: "dishes_data.json",
			RecipesFile:     "all_recipes.json",
			OutputDir:       "output",
		},
		Run: RunConfig{
			TemplateVariant: 0,
			Language:        string(model.LanguageZH),
			Workers:         1,
			SnippetTopK:     3,
		},
		AI: DefaultAIConfig(),
		Storage: StorageConfig{
			MongoURI:        "mongodb://localhost:27017",
			MongoDatabase:   "foodieqa",
			KnowledgeDB:     "recipe_db.sqlite",
			DishSource:      DishSourceFile,
			CacheTTLSeconds: 86400,
		},
		Server: ServerConfig{
			Port:     "8080",
			Username: "admin",
			Password: "password123",
		},
	}
}

// Load reads the YAML file at path over the defaults and applies environment
// overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save writes the configuration as YAML. Secrets are never written.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnvOverrides() {
	c.AI.APIKey = getEnvOrDefault("GEMINI_API_KEY", c.AI.APIKey)
	c.AI.Models.Answer = getEnvOrDefault("GEMINI_MODEL_ANSWER", c.AI.Models.Answer)
	c.AI.Models.Identify = getEnvOrDefault("GEMINI_MODEL_IDENTIFY", c.AI.Models.Identify)
	c.AI.Models.Embed = getEnvOrDefault("GEMINI_MODEL_EMBED", c.AI.Models.Embed)
	c.AI.Provider = getEnvOrDefault("FOODIEQA_PROVIDER", c.AI.Provider)

	c.Storage.MongoURI = getEnvOrDefault("MONGO_URI", c.Storage.MongoURI)
	redisAddr := getEnvOrDefault("REDIS_URI", c.Storage.RedisAddr)
	// Remove redis:// prefix if present
	c.Storage.RedisAddr = strings.TrimPrefix(redisAddr, "redis://")

	c.Server.Port = getEnvOrDefault("PORT", c.Server.Port)
	c.Server.Username = getEnvOrDefault("HOST_USERNAME", c.Server.Username)
	c.Server.Password = getEnvOrDefault("HOST_PASSWORD", c.Server.Password)
	c.Server.JWTSecret = getEnvOrDefault("JWT_SECRET", c.Server.JWTSecret)
}

// Validate rejects option values no component can honor
func (c *Config) Validate() error {
	if !model.Language(c.Run.Language).Valid() {
		return fmt.Errorf("unsupported language %q (want zh or en)", c.Run.Language)
	}
	if m := c.Run.AugmentationMode; m != "" && !model.AugmentationMode(m).Valid() {
		return fmt.Errorf("unsupported augmentation_mode %q", m)
	}
	if c.Run.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Run.Workers)
	}
	if c.Run.SnippetTopK < 1 {
		return fmt.Errorf("snippet_top_k must be at least 1, got %d", c.Run.SnippetTopK)
	}
	switch c.AI.Provider {
	case ProviderGemini, ProviderMock:
	default:
		return fmt.Errorf("unsupported provider %q", c.AI.Provider)
	}
	switch c.Storage.DishSource {
	case DishSourceFile, DishSourceMongo:
	default:
		return fmt.Errorf("unsupported dish_source %q", c.Storage.DishSource)
	}
	return nil
}

// DataPath resolves a data file name against the data directory
func (c *Config) DataPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Data.DataDir, name)
}

// OutputPath resolves a file name against the output directory
func (c *Config) OutputPath(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Data.OutputDir, name)
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
