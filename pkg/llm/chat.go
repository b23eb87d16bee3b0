package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/xhad/lawrag/internal/types"
)

// ChatConfig represents the configuration for a completion binding.
type ChatConfig struct {
	Provider    string // langchain | ollama | exec
	Model       string
	Temperature float64
	MaxTokens   int
	BaseURL     string   // Ollama server URL
	Command     []string // exec only, e.g. ["ollama", "run"]
}

// NewWithConfig creates the configured Completer.
func NewWithConfig(config ChatConfig) (types.Completer, error) {
	// Validate and set default values for config fields if necessary
	if config.Model == "" {
		config.Model = "mistral" // Default Ollama model
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}

	switch config.Provider {
	case "langchain":
		return NewLangchainCompleter(config)
	case "ollama", "":
		return NewOllamaCompleter(config)
	case "exec":
		return NewExecCompleter(config)
	}
	return nil, fmt.Errorf("unknown llm provider %q", config.Provider)
}

// LangchainCompleter generates text through langchaingo.
type LangchainCompleter struct {
	config ChatConfig
	llm    llms.Model
}

func NewLangchainCompleter(config ChatConfig) (*LangchainCompleter, error) {
	llm, err := ollama.New(ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &LangchainCompleter{
		config: config,
		llm:    llm,
	}, nil
}

func (c *LangchainCompleter) Complete(ctx context.Context, prompt string, model string) (string, error) {
	if model == "" {
		model = c.config.Model
	}

	out, err := llms.GenerateFromSinglePrompt(ctx, c.llm, prompt,
		llms.WithModel(model),
		llms.WithTemperature(c.config.Temperature),
		llms.WithMaxTokens(c.config.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrCompletion, err)
	}

	return strings.TrimSpace(out), nil
}

// OllamaCompleter posts a single non-streaming /api/generate request.
type OllamaCompleter struct {
	Client *api.Client
	config ChatConfig
}

func NewOllamaCompleter(config ChatConfig) (*OllamaCompleter, error) {
	client, err := newOllamaClient(config.BaseURL)
	if err != nil {
		return nil, err
	}
	return &OllamaCompleter{Client: client, config: config}, nil
}

func (c *OllamaCompleter) Complete(ctx context.Context, prompt string, model string) (string, error) {
	if model == "" {
		model = c.config.Model
	}

	stream := false
	req := api.GenerateRequest{
		Model:  model,
		Prompt: prompt,
		Stream: &stream,
		Options: map[string]any{
			"temperature": c.config.Temperature,
			"num_predict": c.config.MaxTokens,
		},
	}

	var b strings.Builder
	err := c.Client.Generate(ctx, &req, func(resp api.GenerateResponse) error {
		_, err := b.WriteString(resp.Response)
		return err
	})
	if err != nil {
		var status api.StatusError
		if errors.As(err, &status) {
			return "", fmt.Errorf("%w: ollama returned %d: %s", types.ErrCompletion, status.StatusCode, status.ErrorMessage)
		}
		return "", fmt.Errorf("%w: %v", types.ErrCompletion, err)
	}

	return strings.TrimSpace(b.String()), nil
}

// ExecCompleter runs a local command as `<command...> <model> <prompt>`
// and returns its trimmed stdout.
type ExecCompleter struct {
	config ChatConfig
}

func NewExecCompleter(config ChatConfig) (*ExecCompleter, error) {
	if len(config.Command) == 0 {
		config.Command = []string{"ollama", "run"}
	}
	if _, err := exec.LookPath(config.Command[0]); err != nil {
		return nil, fmt.Errorf("completion command %q not found: %w", config.Command[0], err)
	}
	return &ExecCompleter{config: config}, nil
}

func (c *ExecCompleter) Complete(ctx context.Context, prompt string, model string) (string, error) {
	if model == "" {
		model = c.config.Model
	}

	args := append(append([]string{}, c.config.Command[1:]...), model, prompt)
	cmd := exec.CommandContext(ctx, c.config.Command[0], args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v: %s", types.ErrCompletion, c.config.Command[0], err, strings.TrimSpace(stderr.String()))
	}

	return strings.TrimSpace(string(out)), nil
}
