package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate embedder config
	if !oneOf(c.Embedder.Provider, "langchain", "ollama") {
		errors = append(errors, ValidationError{
			Field:   "embedder.provider",
			Message: fmt.Sprintf("unknown embedder provider: %s", c.Embedder.Provider),
		})
	}

	if !validHTTPURL(c.Embedder.BaseURL) {
		errors = append(errors, ValidationError{
			Field:   "embedder.base_url",
			Message: "Ollama base URL is required",
		})
	}

	if c.Embedder.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedder.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Embedder.MaxRetries != nil && *c.Embedder.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "embedder.max_retries",
			Message: "max_retries must not be negative",
		})
	}

	if c.Embedder.RateLimit < 0 {
		errors = append(errors, ValidationError{
			Field:   "embedder.rate_limit",
			Message: "rate_limit must not be negative",
		})
	}

	// Validate LLM config
	if !oneOf(c.LLM.Provider, "langchain", "ollama", "exec") {
		errors = append(errors, ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("unknown llm provider: %s", c.LLM.Provider),
		})
	}

	if c.LLM.Provider == "exec" && len(c.LLM.Command) == 0 {
		errors = append(errors, ValidationError{
			Field:   "llm.command",
			Message: "command is required for the exec provider",
		})
	}

	if c.LLM.Provider != "exec" && !validHTTPURL(c.LLM.BaseURL) {
		errors = append(errors, ValidationError{
			Field:   "llm.base_url",
			Message: "Ollama base URL is required",
		})
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if t := c.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate store config
	if c.Store.MaxRetries != nil && *c.Store.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "store.max_retries",
			Message: "max_retries must not be negative",
		})
	}

	if !oneOf(c.Store.Backend, "pgvector", "chroma", "memory") {
		errors = append(errors, ValidationError{
			Field:   "store.backend",
			Message: fmt.Sprintf("unknown store backend: %s", c.Store.Backend),
		})
	}

	if c.Store.Backend != "memory" {
		if _, err := url.Parse(c.Store.URL); err != nil || c.Store.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "store.url",
				Message: "invalid store URL",
			})
		}
	}

	if c.Store.Collection == "" {
		errors = append(errors, ValidationError{
			Field:   "store.collection",
			Message: "collection is required",
		})
	}

	if c.Store.VectorDim < 1 {
		errors = append(errors, ValidationError{
			Field:   "store.vector_dim",
			Message: "vector_dim must be positive",
		})
	}

	if c.Store.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "store.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate processor config
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	// Validate ingest config
	if c.Ingest.PageSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "ingest.page_size",
			Message: "page_size must be positive",
		})
	}

	if !oneOf(c.Ingest.IDStrategy, "random", "deterministic") {
		errors = append(errors, ValidationError{
			Field:   "ingest.id_strategy",
			Message: "id_strategy must be random or deterministic",
		})
	}

	if c.Dataset.RowsPerRequest < 1 || c.Dataset.RowsPerRequest > 100 {
		errors = append(errors, ValidationError{
			Field:   "dataset.rows_per_request",
			Message: "rows_per_request must be between 1 and 100",
		})
	}

	// Validate retrieval config
	if c.Retrieval.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Retrieval.PreviewLength < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.preview_length",
			Message: "preview_length must be positive",
		})
	}

	return errors
}

func validHTTPURL(s string) bool {
	if s == "" {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func oneOf(v string, options ...string) bool {
	for _, o := range options {
		if v == o {
			return true
		}
	}
	return false
}
