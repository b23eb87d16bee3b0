package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
	"github.com/tmc/langchaingo/llms/ollama"
	"golang.org/x/time/rate"

	"github.com/xhad/lawrag/internal/retry"
	"github.com/xhad/lawrag/internal/types"
)

// EmbedderConfig represents the configuration for an embedding binding.
type EmbedderConfig struct {
	Provider   string // langchain | ollama
	Model      string
	BaseURL    string // Ollama server URL
	BatchSize  int
	RateLimit  float64
	MaxRetries int
}

func (c *EmbedderConfig) setDefaults() {
	if c.Model == "" {
		c.Model = "all-minilm"
	}
	if c.BaseURL == "" {
		c.BaseURL = envconfig.Host().String()
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 256
	}
}

// NewEmbedderWithConfig builds the configured binding wrapped in a
// BatchEmbedder.
func NewEmbedderWithConfig(config EmbedderConfig) (*BatchEmbedder, error) {
	config.setDefaults()

	var inner types.Embedder
	var err error
	switch config.Provider {
	case "langchain":
		inner, err = NewLangchainEmbedder(config.BaseURL, config.Model)
	case "ollama", "":
		inner, err = NewOllamaEmbedder(config.BaseURL, config.Model)
	default:
		return nil, fmt.Errorf("unknown embedder provider %q", config.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewBatchEmbedder(inner, config), nil
}

// LangchainEmbedder embeds through langchaingo's Ollama client.
type LangchainEmbedder struct {
	llm *ollama.LLM
}

func NewLangchainEmbedder(baseURL, model string) (*LangchainEmbedder, error) {
	emb, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	return &LangchainEmbedder{llm: emb}, nil
}

func (e *LangchainEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	return e.llm.CreateEmbedding(ctx, texts)
}

// OllamaEmbedder calls the native /api/embed endpoint, which accepts a
// list of inputs per request.
type OllamaEmbedder struct {
	Client *api.Client
	Model  string
}

func NewOllamaEmbedder(baseURL, model string) (*OllamaEmbedder, error) {
	client, err := newOllamaClient(baseURL)
	if err != nil {
		return nil, err
	}
	return &OllamaEmbedder{Client: client, Model: model}, nil
}

func (e *OllamaEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.Client.Embed(ctx, &api.EmbedRequest{
		Model: e.Model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	return resp.Embeddings, nil
}

// BatchEmbedder splits large inputs into sub-requests, throttles and
// retries them, and checks that one vector comes back per text.
type BatchEmbedder struct {
	inner     types.Embedder
	batchSize int
	limiter   *rate.Limiter
	policy    retry.Policy
}

func NewBatchEmbedder(inner types.Embedder, config EmbedderConfig) *BatchEmbedder {
	config.setDefaults()

	limiter := rate.NewLimiter(rate.Inf, 1)
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), 1)
	}

	return &BatchEmbedder{
		inner:     inner,
		batchSize: config.BatchSize,
		limiter:   limiter,
		policy:    retry.Policy{MaxRetries: config.MaxRetries},
	}
}

// CreateEmbedding returns one vector per text in input order. Every error
// wraps types.ErrEmbedding.
func (b *BatchEmbedder) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += b.batchSize {
		end := min(start+b.batchSize, len(texts))
		part := texts[start:end]

		var vecs [][]float32
		err := retry.Do(ctx, b.policy, func(ctx context.Context) error {
			if err := b.limiter.Wait(ctx); err != nil {
				return err
			}
			var err error
			vecs, err = b.inner.CreateEmbedding(ctx, part)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("%w: texts %d-%d: %v", types.ErrEmbedding, start, end, err)
		}
		if len(vecs) != len(part) {
			return nil, fmt.Errorf("%w: got %d vectors for %d texts", types.ErrEmbedding, len(vecs), len(part))
		}
		out = append(out, vecs...)
	}

	return out, nil
}

func newOllamaClient(baseURL string) (*api.Client, error) {
	if baseURL == "" {
		return api.NewClient(envconfig.Host(), http.DefaultClient), nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, err)
	}
	return api.NewClient(u, http.DefaultClient), nil
}
