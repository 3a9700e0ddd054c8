// Package embedder provides implementations of the rag.Embedder interface.
// Ollama, OpenAI and Azure OpenAI are reached over their REST APIs; Gemini
// goes through the google.golang.org/genai client.
package embedder

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/54b3r/taskagent-go/internal/rag"
)

// Default embedding models per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"
	defaultGeminiModel = "text-embedding-004"

	// DefaultTimeout bounds a single embedding request.
	DefaultTimeout = 30 * time.Second
)

// Config is the resolved embedding configuration.
type Config struct {
	// Backend is ollama, openai, azure or gemini.
	Backend string
	// Model is the embedding model or Azure deployment.
	Model string
	// Endpoint is the API base URL (Ollama host, OpenAI base, Azure resource).
	Endpoint string
	// APIKey authenticates against the backend.
	APIKey string
	// APIVersion is the Azure REST API version.
	APIVersion string
	// Dimensions requests a specific vector length (0 = model default).
	Dimensions int
	// Timeout bounds each request. Defaults to DefaultTimeout if zero.
	Timeout time.Duration
}

// ConfigFromEnv resolves the embedding configuration, inheriting from the
// chat provider settings when embedding-specific overrides are not set.
//
// Resolution order:
//
//  1. EMBEDDING_PROVIDER, falling back to MODEL_PROVIDER, then "ollama"
//  2. EMBEDDING_MODEL overrides the default model for the resolved backend
//  3. EMBEDDING_API_KEY overrides the inherited API key
//  4. EMBEDDING_ENDPOINT overrides the inherited endpoint
//  5. EMBEDDING_DIMENSIONS and EMBEDDING_TIMEOUT are applied as given
func ConfigFromEnv() Config {
	cfg := Config{
		Backend:    getEnv("EMBEDDING_PROVIDER"),
		Model:      getEnv("EMBEDDING_MODEL"),
		Endpoint:   getEnv("EMBEDDING_ENDPOINT"),
		APIKey:     getEnv("EMBEDDING_API_KEY"),
		Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 0),
	}
	if cfg.Backend == "" {
		cfg.Backend = getEnvOrDefault("MODEL_PROVIDER", "ollama")
	}
	if d, err := time.ParseDuration(getEnv("EMBEDDING_TIMEOUT")); err == nil && d > 0 {
		cfg.Timeout = d
	}

	switch cfg.Backend {
	case "ollama":
		cfg.Endpoint = orDefault(cfg.Endpoint, getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434"))
		cfg.Model = orDefault(cfg.Model, defaultOllamaModel)
	case "openai":
		cfg.Endpoint = orDefault(cfg.Endpoint, "https://api.openai.com/v1")
		cfg.APIKey = orDefault(cfg.APIKey, getEnv("OPENAI_API_KEY"))
		cfg.Model = orDefault(cfg.Model, defaultOpenAIModel)
	case "azure":
		cfg.Endpoint = orDefault(cfg.Endpoint, getEnv("AZURE_OPENAI_ENDPOINT"))
		cfg.APIKey = orDefault(cfg.APIKey, getEnv("AZURE_OPENAI_API_KEY"))
		cfg.APIVersion = getEnvOrDefault("AZURE_OPENAI_API_VERSION", "2024-02-01")
		cfg.Model = orDefault(cfg.Model, defaultOpenAIModel)
	case "gemini":
		cfg.APIKey = orDefault(cfg.APIKey, getEnv("GOOGLE_API_KEY"))
		cfg.Model = orDefault(cfg.Model, defaultGeminiModel)
	}
	return cfg
}

// New constructs the embedder described by cfg.
func New(ctx context.Context, cfg Config) (rag.Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	switch cfg.Backend {
	case "ollama":
		return NewOllamaEmbedder(&OllamaConfig{Host: cfg.Endpoint, Model: cfg.Model, Timeout: cfg.Timeout}), nil
	case "openai":
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		}), nil
	case "azure":
		return NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    cfg.Endpoint + "/openai",
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Azure:      true,
			APIVersion: cfg.APIVersion,
			Timeout:    cfg.Timeout,
		}), nil
	case "gemini":
		return NewGeminiEmbedder(ctx, &GeminiConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
	}
	return nil, fmt.Errorf("embedder: unknown backend %q", cfg.Backend)
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
