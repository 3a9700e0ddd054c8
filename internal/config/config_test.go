package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("TASKAGENT_CONFIG", "")
	t.Chdir(dir)

	path, err := Load("", slog.Default())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "" {
		t.Errorf("expected empty path, got %q", path)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	if _, err := Load("/nonexistent/path/config.yaml", slog.Default()); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}

func TestLoad_ValidFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: azure
  max_tokens: 8192
  temperature: 0.3
  azure:
    endpoint: https://my-resource.openai.azure.com
    deployment: gpt-4o
    api_version: "2025-04-01-preview"
embedding:
  provider: ollama
  model: nomic-embed-text
index:
  backend: qdrant
qdrant:
  host: qdrant.internal
  port: 6334
  collection_prefix: tasks_
retrieval:
  top_k: 5
sap:
  token_url: https://auth.example.com/oauth/token
  client_id: taskagent
actions:
  timeout: 10s
domains:
  procurement:
    order_url: https://erp.example.com/orders
logging:
  level: debug
  format: text
`)

	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	checks := map[string]string{
		"MODEL_PROVIDER":           "azure",
		"MODEL_MAX_TOKENS":         "8192",
		"MODEL_TEMPERATURE":        "0.3",
		"AZURE_OPENAI_ENDPOINT":    "https://my-resource.openai.azure.com",
		"AZURE_OPENAI_DEPLOYMENT":  "gpt-4o",
		"AZURE_OPENAI_API_VERSION": "2025-04-01-preview",
		"EMBEDDING_PROVIDER":       "ollama",
		"EMBEDDING_MODEL":          "nomic-embed-text",
		"INDEX_BACKEND":            "qdrant",
		"QDRANT_HOST":              "qdrant.internal",
		"QDRANT_PORT":              "6334",
		"QDRANT_COLLECTION_PREFIX": "tasks_",
		"RETRIEVAL_TOP_K":          "5",
		"SAP_TOKEN_URL":            "https://auth.example.com/oauth/token",
		"SAP_CLIENT_ID":            "taskagent",
		"ACTION_TIMEOUT":           "10s",
		"PROCUREMENT_ORDER_URL":    "https://erp.example.com/orders",
		"LOG_LEVEL":                "debug",
		"LOG_FORMAT":               "text",
	}

	// Clear env vars that the YAML should set.
	for k := range checks {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	loaded, err := Load(cfgPath, slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}

	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s: got %q, want %q", k, got, want)
		}
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := []byte(`
model:
  provider: ollama
sap:
  token_url: https://yaml.example.com/token
`)
	if err := os.WriteFile(cfgPath, content, 0o644); err != nil {
		t.Fatal(err)
	}

	// Set env vars BEFORE loading; they must not be overwritten.
	t.Setenv("MODEL_PROVIDER", "azure")
	t.Setenv("SAP_TOKEN_URL", "https://env.example.com/token")

	if _, err := Load(cfgPath, slog.Default()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if got := os.Getenv("MODEL_PROVIDER"); got != "azure" {
		t.Errorf("MODEL_PROVIDER: expected env override %q, got %q", "azure", got)
	}
	if got := os.Getenv("SAP_TOKEN_URL"); got != "https://env.example.com/token" {
		t.Errorf("SAP_TOKEN_URL: expected env override, got %q", got)
	}
}

func TestLoad_ConfigEnvVar(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(cfgPath, []byte("index:\n  backend: flat\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("TASKAGENT_CONFIG", cfgPath)
	t.Setenv("INDEX_BACKEND", "")
	os.Unsetenv("INDEX_BACKEND")

	loaded, err := Load("", slog.Default())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != cfgPath {
		t.Errorf("loaded path: got %q, want %q", loaded, cfgPath)
	}
	if got := os.Getenv("INDEX_BACKEND"); got != "flat" {
		t.Errorf("INDEX_BACKEND: got %q, want flat", got)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(cfgPath, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(cfgPath, slog.Default()); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("SAP_CLIENT_ID=from-dotenv\nSAP_TOKEN_SCOPES=api\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SAP_CLIENT_ID", "from-env")
	t.Setenv("SAP_TOKEN_SCOPES", "")
	os.Unsetenv("SAP_TOKEN_SCOPES")

	if err := LoadDotEnv(envPath); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}
	if got := os.Getenv("SAP_CLIENT_ID"); got != "from-env" {
		t.Errorf("SAP_CLIENT_ID: got %q, want existing value preserved", got)
	}
	if got := os.Getenv("SAP_TOKEN_SCOPES"); got != "api" {
		t.Errorf("SAP_TOKEN_SCOPES: got %q, want api", got)
	}
}

func TestLoadDotEnv_MissingFile(t *testing.T) {
	t.Parallel()

	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("missing .env must not be an error, got %v", err)
	}
}

func TestFloat32Str(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   float32
		want string
	}{
		{0.0, ""},
		{0.2, "0.2"},
		{0.3, "0.3"},
		{1.0, "1"},
	}
	for _, tt := range tests {
		if got := float32Str(tt.in); got != tt.want {
			t.Errorf("float32Str(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
