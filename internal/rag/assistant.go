package rag

import (
	"context"
	"strings"
	"time"

	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

// Retriever finds the chunks that ground an answer.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) (*models.RetrievalResult, error)
}

// Assistant answers questions by retrieving context and prompting a generator.
type Assistant struct {
	retriever Retriever
	generator Generator
	options   GenerateOptions
	timeout   time.Duration
	logger    *zap.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assistant) {
		a.logger = l
	}
}

// WithGenerateOptions sets max tokens and temperature for every answer.
func WithGenerateOptions(o GenerateOptions) Option {
	return func(a *Assistant) {
		a.options = o
	}
}

// WithTimeout bounds each generation call. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Assistant) {
		a.timeout = d
	}
}

// NewAssistant returns an assistant over retriever and generator.
func NewAssistant(retriever Retriever, generator Generator, opts ...Option) *Assistant {
	a := &Assistant{
		retriever: retriever,
		generator: generator,
		options:   DefaultGenerateOptions,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = utils.LoggerOrNop(a.logger)
	return a
}

type askConfig struct {
	topK int
}

// AskOption tunes a single Ask call.
type AskOption func(*askConfig)

// WithTopK overrides the number of chunks retrieved for one question.
func WithTopK(k int) AskOption {
	return func(c *askConfig) {
		c.topK = k
	}
}

// Ask retrieves context for query and generates an answer from it.
//
// Retrieval errors are returned. Generation errors are not: the answer is marked
// Failed and its text explains what went wrong. When conv is non-nil its turns
// are included in the prompt and the question and answer are appended to it.
func (a *Assistant) Ask(ctx context.Context, query string, conv *models.Conversation, opts ...AskOption) (*models.Answer, error) {
	var cfg askConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()
	retrieved, err := a.retriever.Retrieve(ctx, query, cfg.topK)
	if err != nil {
		return nil, err
	}

	prompt := BuildConversationPrompt(conv, retrieved.Context, retrieved.Query)
	answer := &models.Answer{
		Query:   retrieved.Query,
		Sources: retrieved.Sources,
		Context: retrieved.Context,
		Model:   a.generator.ModelName(),
	}

	text, err := a.generate(ctx, prompt)
	if err != nil {
		genErr := &GenerationError{Model: answer.Model, Err: err}
		a.logger.Warn("generation failed", zap.String("model", answer.Model), zap.Error(err))
		answer.Failed = true
		answer.Error = err.Error()
		answer.Text = genErr.Message()
	} else {
		answer.Text = text
	}
	answer.QueryTime = time.Since(start).Milliseconds()

	if conv != nil {
		conv.Append(models.RoleUser, retrieved.Query)
		conv.Append(models.RoleAssistant, answer.Text)
	}

	a.logger.Info("answered question",
		zap.String("query", utils.Truncate(query, 80)),
		zap.Int("chunks", len(retrieved.Hits)),
		zap.Strings("sources", answer.Sources),
		zap.Bool("failed", answer.Failed),
		zap.Int64("query_time_ms", answer.QueryTime))
	return answer, nil
}

func (a *Assistant) generate(ctx context.Context, prompt string) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	text, err := a.generator.Generate(ctx, prompt, a.options)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
