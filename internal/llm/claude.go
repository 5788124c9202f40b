package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hyperjump/kotae/internal/rag"
)

// DefaultClaudeModel is used when no model is configured.
const DefaultClaudeModel = "claude-sonnet-4-20250514"

// ClaudeConfig holds configuration for the Anthropic generator.
type ClaudeConfig struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint; empty uses the SDK default.
	BaseURL    string
	MaxRetries int
}

// ClaudeGenerator answers through the Anthropic Messages API.
type ClaudeGenerator struct {
	client anthropic.Client
	model  string
}

// NewClaudeGenerator creates a Claude generator. An API key is required.
func NewClaudeGenerator(cfg ClaudeConfig) (*ClaudeGenerator, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("claude generator: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultClaudeModel
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &ClaudeGenerator{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

// Generate sends prompt as a single user message and joins the text blocks of the reply.
func (g *ClaudeGenerator) Generate(ctx context.Context, prompt string, opts rag.GenerateOptions) (string, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = rag.DefaultGenerateOptions.MaxTokens
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(opts.Temperature),
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// ModelName returns the Claude model id.
func (g *ClaudeGenerator) ModelName() string { return g.model }
