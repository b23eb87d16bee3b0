package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xhad/lawrag/internal/models"
	"github.com/xhad/lawrag/internal/types"
)

// NoResultsAnswer is returned without calling the model when nothing was
// retrieved.
const NoResultsAnswer = "관련 판례를 찾을 수 없습니다."

const systemInstruction = "당신은 한국 법률 전문가 AI입니다. 반드시 **한국어로만 답변**해 주세요.\n" +
	"아래 판례들을 참고하여 사용자의 질문에 대해 정확하고 친절하게 설명해 주세요.\n\n"

// BuildPrompt renders the instruction, the numbered citations and the
// question, ending with the answer marker.
func BuildPrompt(citations []models.Citation, question string) string {
	var b strings.Builder

	b.WriteString(systemInstruction)
	for i, c := range citations {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "📜 사례 %d: 사건번호 %s\n\"%s...\"", i+1, c.Identifier, c.Preview)
	}
	fmt.Fprintf(&b, "\n\n[사용자 질문]\n\"%s\"\n\n[답변]\n", question)

	return b.String()
}

// Counter reports the token size of a prompt.
type Counter interface {
	Count(text string) (int, error)
}

type Option func(*Composer)

// WithTokenCounter logs the prompt size before each completion.
func WithTokenCounter(c Counter) Option {
	return func(a *Composer) {
		a.counter = c
	}
}

// WithModel overrides the completer's default model.
func WithModel(model string) Option {
	return func(a *Composer) {
		a.model = model
	}
}

type Composer struct {
	completer types.Completer
	model     string
	counter   Counter
	logger    *slog.Logger
}

func NewComposer(completer types.Completer, logger *slog.Logger, opts ...Option) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Composer{completer: completer, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Answer asks the model about question using citations as context.
func (a *Composer) Answer(ctx context.Context, citations []models.Citation, question string) (string, error) {
	if len(citations) == 0 {
		return NoResultsAnswer, nil
	}

	prompt := BuildPrompt(citations, question)

	if a.counter != nil {
		if n, err := a.counter.Count(prompt); err == nil {
			a.logger.Info("prompt built", "citations", len(citations), "tokens", n)
		} else {
			a.logger.Warn("token count unavailable", "error", err)
		}
	}

	out, err := a.completer.Complete(ctx, prompt, a.model)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrCompletion, err)
	}

	return strings.TrimSpace(out), nil
}

// Pipeline runs retrieval and composition for one question.
type Pipeline struct {
	Retriever *Retriever
	Composer  *Composer
}

func (p *Pipeline) Ask(ctx context.Context, question string, k int) (string, []models.Citation, error) {
	citations, err := p.Retriever.Retrieve(ctx, question, k)
	if err != nil {
		return "", nil, err
	}

	answer, err := p.Composer.Answer(ctx, citations, question)
	if err != nil {
		return "", citations, err
	}

	return answer, citations, nil
}
