package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Embedder  EmbedderConfig  `yaml:"embedder"`
	LLM       LLMConfig       `yaml:"llm"`
	Store     StoreConfig     `yaml:"store"`
	Processor ProcessorConfig `yaml:"processor"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Dataset   DatasetConfig   `yaml:"dataset"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
}

// EmbedderConfig selects the embedding binding. Ingest and query must use
// the same provider and model.
type EmbedderConfig struct {
	Provider   string  `yaml:"provider"` // langchain | ollama
	BaseURL    string  `yaml:"base_url"`
	Model      string  `yaml:"model"`
	BatchSize  int     `yaml:"batch_size"`
	RateLimit  float64 `yaml:"rate_limit"`  // requests per second, 0 = unlimited
	MaxRetries *int    `yaml:"max_retries"` // nil = default; 0 disables retries
}

type LLMConfig struct {
	Provider    string   `yaml:"provider"` // langchain | ollama | exec
	BaseURL     string   `yaml:"base_url"`
	Model       string   `yaml:"model"`
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
	Command     []string `yaml:"command"`
	CountTokens bool     `yaml:"count_tokens"`
}

type StoreConfig struct {
	Backend    string `yaml:"backend"` // pgvector | chroma | memory
	URL        string `yaml:"url"`
	Collection string `yaml:"collection"`
	VectorDim  int    `yaml:"vector_dim"`
	BatchSize  int    `yaml:"batch_size"`
	MaxRetries *int   `yaml:"max_retries"`
}

type ProcessorConfig struct {
	ChunkSize int `yaml:"chunk_size"`
}

type ExtractorConfig struct {
	URIFields   []string `yaml:"uri_fields"`
	FlatFields  []string `yaml:"flat_fields"`
	StripMarkup bool     `yaml:"strip_markup"`
}

type IngestConfig struct {
	SourceEnv  string `yaml:"source_env"`
	SourcePath string `yaml:"source_path"`
	PageSize   int    `yaml:"page_size"`
	IDStrategy string `yaml:"id_strategy"` // random | deterministic
}

type DatasetConfig struct {
	Endpoint       string  `yaml:"endpoint"`
	Name           string  `yaml:"name"`
	Config         string  `yaml:"config"`
	Split          string  `yaml:"split"`
	RowsPerRequest int     `yaml:"rows_per_request"`
	RateLimit      float64 `yaml:"rate_limit"`
	Token          string  `yaml:"token"`
}

type RetrievalConfig struct {
	TopK           int      `yaml:"top_k"`
	PreviewLength  int      `yaml:"preview_length"`
	IdentifierKeys []string `yaml:"identifier_keys"`
}

type ServerConfig struct {
	Addr                  string `yaml:"addr"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

func LoadConfig(path string) (*Config, error) {
	// .env is optional; a missing file is not an error
	_ = godotenv.Load()

	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/lawrag/config.yaml"),
			"/etc/lawrag/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Merge with environment variables
	mergeWithEnv(&config)

	// Apply defaults for unset values
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

// SourcePath resolves the single-file ingestion source: explicit path
// first, then the environment variable named by SourceEnv.
func (c *Config) SourcePath() string {
	if c.Ingest.SourcePath != "" {
		return c.Ingest.SourcePath
	}
	return os.Getenv(c.Ingest.SourceEnv)
}

func applyDefaults(config *Config) {
	if config.Embedder.Provider == "" {
		config.Embedder.Provider = "ollama"
	}
	if config.Embedder.BaseURL == "" {
		config.Embedder.BaseURL = "http://localhost:11434"
	}
	if config.Embedder.Model == "" {
		config.Embedder.Model = "all-minilm"
	}
	if config.Embedder.BatchSize == 0 {
		config.Embedder.BatchSize = 256
	}
	if config.Embedder.MaxRetries == nil {
		config.Embedder.MaxRetries = ptr(2)
	}

	if config.LLM.Provider == "" {
		config.LLM.Provider = "ollama"
	}
	if config.LLM.BaseURL == "" {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.Model == "" {
		config.LLM.Model = "mistral"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == nil {
		config.LLM.Temperature = ptr(0.7)
	}
	if len(config.LLM.Command) == 0 {
		config.LLM.Command = []string{"ollama", "run"}
	}

	if config.Store.Backend == "" {
		config.Store.Backend = "chroma"
	}
	if config.Store.URL == "" && config.Store.Backend == "chroma" {
		config.Store.URL = "http://localhost:8000"
	}
	if config.Store.Collection == "" {
		config.Store.Collection = "legal_docs"
	}
	if config.Store.VectorDim == 0 {
		config.Store.VectorDim = 384
	}
	if config.Store.BatchSize == 0 {
		config.Store.BatchSize = 41666
	}
	if config.Store.MaxRetries == nil {
		config.Store.MaxRetries = ptr(2)
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}

	if config.Ingest.SourceEnv == "" {
		config.Ingest.SourceEnv = "FILE1"
	}
	if config.Ingest.PageSize == 0 {
		config.Ingest.PageSize = 10000
	}
	if config.Ingest.IDStrategy == "" {
		config.Ingest.IDStrategy = "random"
	}

	if config.Dataset.Endpoint == "" {
		config.Dataset.Endpoint = "https://datasets-server.huggingface.co"
	}
	if config.Dataset.Name == "" {
		config.Dataset.Name = "joonhok-exo-ai/korean_law_open_data_precedents"
	}
	if config.Dataset.Config == "" {
		config.Dataset.Config = "default"
	}
	if config.Dataset.Split == "" {
		config.Dataset.Split = "train"
	}
	if config.Dataset.RowsPerRequest == 0 {
		config.Dataset.RowsPerRequest = 100
	}
	if config.Dataset.RateLimit == 0 {
		config.Dataset.RateLimit = 5
	}

	if config.Retrieval.TopK == 0 {
		config.Retrieval.TopK = 3
	}
	if config.Retrieval.PreviewLength == 0 {
		config.Retrieval.PreviewLength = 500
	}
	if len(config.Retrieval.IdentifierKeys) == 0 {
		config.Retrieval.IdentifierKeys = []string{"caseNumber", "case_id"}
	}

	if config.Server.Addr == "" {
		config.Server.Addr = ":8001"
	}
	if config.Server.RequestTimeoutSeconds == 0 {
		config.Server.RequestTimeoutSeconds = 120
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
}

func mergeWithEnv(config *Config) {
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.Embedder.BaseURL = baseURL
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" && config.Store.Backend == "pgvector" {
		config.Store.URL = dbURL
	}
	if chromaURL := os.Getenv("CHROMA_URL"); chromaURL != "" && config.Store.Backend != "pgvector" {
		config.Store.URL = chromaURL
	}
	if token := os.Getenv("HF_TOKEN"); token != "" {
		config.Dataset.Token = token
	}
}

func ptr[T any](v T) *T {
	return &v
}
