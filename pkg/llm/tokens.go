package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates prompt sizes. Ollama models use their own
// tokenizers, so the count is an approximation for logging only.
type TokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
	err  error
}

func NewTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

// Count returns the number of tokens in text. The encoding is loaded on
// first use.
func (t *TokenCounter) Count(text string) (int, error) {
	t.once.Do(func() {
		t.enc, t.err = tiktoken.EncodingForModel("gpt-3.5-turbo")
	})
	if t.err != nil {
		return 0, t.err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}
