package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 1024
	defaultRetries   = 2

	systemPrompt = "You assess EU funding calls for companies. Respond with strict JSON only."
)

// Config holds the Anthropic generator settings.
type Config struct {
	Model      string `mapstructure:"model"`
	MaxTokens  int64  `mapstructure:"max-tokens"`
	MaxRetries int    `mapstructure:"max-retries"`
}

type messager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// Generator sends prompts to the Anthropic Messages API.
type Generator struct {
	messages  messager
	model     string
	maxTokens int64
	logger    *zap.Logger
}

// NewGenerator creates a Generator. The SDK retries transient failures itself.
func NewGenerator(apiKey string, cfg Config, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key is required")
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultRetries
	}

	c := anthropic.NewClient(option.WithAPIKey(apiKey), option.WithMaxRetries(cfg.MaxRetries))
	return newGenerator(&c.Messages, cfg, logger), nil
}

func newGenerator(m messager, cfg Config, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &Generator{messages: m, model: model, maxTokens: cfg.MaxTokens, logger: logger}
}

// GenerateContent returns the concatenated text blocks of the reply.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.messages == nil {
		return "", errors.New("anthropic generator is not initialized")
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	resp, err := g.messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   g.maxTokens,
		System:      []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("create message: %w", err)
	}

	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}

	output := strings.TrimSpace(sb.String())
	if output == "" {
		g.logger.Debug("anthropic returned no text", zap.String("stop_reason", string(resp.StopReason)))
		return "", errors.New("anthropic api returned empty response")
	}
	return output, nil
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}
