package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OLLAMA_BASE_URL", "DATABASE_URL", "CHROMA_URL", "HF_TOKEN", "FILE1"} {
		t.Setenv(k, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)

	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
embedder:
  provider: "langchain"
  base_url: "http://localhost:11434"
  model: "nomic-embed-text"
  batch_size: 64

llm:
  provider: "exec"
  model: "llama2"
  command: ["ollama", "run"]
  max_tokens: 1000
  temperature: 0.5

store:
  backend: "pgvector"
  url: "postgres://localhost:5432/test"
  collection: "precedents"
  vector_dim: 768
  batch_size: 500

processor:
  chunk_size: 800

ingest:
  page_size: 200
  id_strategy: "deterministic"

retrieval:
  top_k: 5
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	// Test loading config
	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	// Verify loaded values
	assert.Equal(t, "langchain", config.Embedder.Provider)
	assert.Equal(t, "nomic-embed-text", config.Embedder.Model)
	assert.Equal(t, 64, config.Embedder.BatchSize)
	assert.Equal(t, "exec", config.LLM.Provider)
	assert.Equal(t, []string{"ollama", "run"}, config.LLM.Command)
	assert.Equal(t, 0.5, *config.LLM.Temperature)
	assert.Equal(t, "postgres://localhost:5432/test", config.Store.URL)
	assert.Equal(t, "precedents", config.Store.Collection)
	assert.Equal(t, 500, config.Store.BatchSize)
	assert.Equal(t, 800, config.Processor.ChunkSize)
	assert.Equal(t, "deterministic", config.Ingest.IDStrategy)
	assert.Equal(t, 5, config.Retrieval.TopK)

	// Defaults fill the rest
	assert.Equal(t, 500, config.Retrieval.PreviewLength)
	assert.Equal(t, "FILE1", config.Ingest.SourceEnv)
	assert.Equal(t, "joonhok-exo-ai/korean_law_open_data_precedents", config.Dataset.Name)
	assert.Empty(t, config.Validate())
}

func TestDefaultConfig(t *testing.T) {
	clearEnv(t)

	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, 1000, config.Processor.ChunkSize)
	assert.Equal(t, 41666, config.Store.BatchSize)
	assert.Equal(t, "legal_docs", config.Store.Collection)
	assert.Equal(t, "chroma", config.Store.Backend)
	assert.Equal(t, "http://localhost:8000", config.Store.URL)
	assert.Equal(t, 10000, config.Ingest.PageSize)
	assert.Equal(t, "random", config.Ingest.IDStrategy)
	assert.Equal(t, 3, config.Retrieval.TopK)
	assert.Equal(t, []string{"caseNumber", "case_id"}, config.Retrieval.IdentifierKeys)
	assert.Equal(t, "mistral", config.LLM.Model)
	assert.Empty(t, config.Validate())
}

func TestConfigValidation(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name          string
		mutate        func(c *Config)
		errorMessages []string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name: "invalid config",
			mutate: func(c *Config) {
				c.Embedder.BaseURL = "invalid-url"
				c.LLM.MaxTokens = 9000
				c.LLM.Temperature = ptr(3.0)
				c.Store.VectorDim = -1
				c.Processor.ChunkSize = 0
				c.Ingest.IDStrategy = "hash"
			},
			errorMessages: []string{
				"embedder.base_url: Ollama base URL is required",
				"llm.max_tokens: max_tokens must be between 1 and 8192",
				"llm.temperature: temperature must be between 0 and 2",
				"store.vector_dim: vector_dim must be positive",
				"processor.chunk_size: chunk_size must be positive",
				"ingest.id_strategy: id_strategy must be random or deterministic",
			},
		},
		{
			name: "unknown backends",
			mutate: func(c *Config) {
				c.Store.Backend = "sqlite"
				c.LLM.Provider = "openai"
			},
			errorMessages: []string{
				"llm.provider: unknown llm provider: openai",
				"store.backend: unknown store backend: sqlite",
			},
		},
		{
			name: "memory store needs no url",
			mutate: func(c *Config) {
				c.Store.Backend = "memory"
				c.Store.URL = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := getDefaultConfig()
			require.NoError(t, err)
			tt.mutate(config)

			errors := config.Validate()
			require.Len(t, errors, len(tt.errorMessages))

			for i, msg := range tt.errorMessages {
				assert.Contains(t, errors[i].Error(), msg)
			}
		})
	}
}

func TestExplicitZeroesAreKept(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
embedder:
  max_retries: 0
llm:
  temperature: 0
store:
  max_retries: 0
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0, *config.Embedder.MaxRetries)
	assert.Equal(t, 0.0, *config.LLM.Temperature)
	assert.Equal(t, 0, *config.Store.MaxRetries)
	assert.Empty(t, config.Validate())

	defaults, err := getDefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, 2, *defaults.Embedder.MaxRetries)
	assert.Equal(t, 0.7, *defaults.LLM.Temperature)
	assert.Equal(t, 2, *defaults.Store.MaxRetries)

	defaults.Store.MaxRetries = ptr(-1)
	errs := defaults.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "store.max_retries", errs[0].Field)
}

func TestEnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("HF_TOKEN", "hf_secret")

	config := &Config{Store: StoreConfig{Backend: "pgvector"}}
	mergeWithEnv(config)

	assert.Equal(t, "http://env-ollama:11434", config.Embedder.BaseURL)
	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Store.URL)
	assert.Equal(t, "hf_secret", config.Dataset.Token)
}

func TestSourcePath(t *testing.T) {
	clearEnv(t)
	t.Setenv("FILE1", "/data/precedents.json")

	config, err := getDefaultConfig()
	require.NoError(t, err)
	assert.Equal(t, "/data/precedents.json", config.SourcePath())

	config.Ingest.SourcePath = "/other.json"
	assert.Equal(t, "/other.json", config.SourcePath())
}
