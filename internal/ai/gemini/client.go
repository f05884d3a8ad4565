package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/eu-call-finder/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	defaultModel        = "gemini-2.5-flash"
	defaultMaxRetries   = 3
	defaultRetryDelay   = 2 * time.Second
	defaultMaxQuotaWait = 10 * time.Second
)

// Config holds the Gemini generator settings.
type Config struct {
	Model      string        `mapstructure:"model"`
	MaxRetries int           `mapstructure:"max-retries"`
	RetryDelay time.Duration `mapstructure:"retry-delay"`
	// MaxQuotaWait is the longest server-requested delay worth waiting for.
	MaxQuotaWait time.Duration `mapstructure:"max-quota-wait"`
}

type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator wraps the Google GenAI client for single-prompt interactions.
type Generator struct {
	models       contentModels
	model        string
	maxRetries   int
	retryDelay   time.Duration
	maxQuotaWait time.Duration
	logger       *zap.Logger
}

// NewGenerator creates a Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey string, cfg Config, logger *zap.Logger) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, cfg, logger), nil
}

func newGenerator(models contentModels, cfg Config, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	} else if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.MaxQuotaWait <= 0 {
		cfg.MaxQuotaWait = defaultMaxQuotaWait
	}

	return &Generator{
		models:       models,
		model:        model,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		maxQuotaWait: cfg.MaxQuotaWait,
		logger:       logger,
	}
}

// GenerateContent sends the prompt to Gemini and returns the joined text parts.
// Server errors and short rate limits are retried.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	var (
		output  string
		attempt int
	)
	err := utils.Retry(ctx, g.maxRetries, g.retryDelay, g.retryable, func(ctx context.Context) error {
		attempt++
		resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
			Temperature:      genai.Ptr[float32](0),
			ResponseMIMEType: "application/json",
		})
		if err != nil {
			g.logger.Debug("gemini request failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		output, err = responseText(resp)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
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

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned no response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return output, nil
}

var retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*s`)

func (g *Generator) retryable(err error) bool {
	var apiErr genai.APIError
	if ptr := (*genai.APIError)(nil); errors.As(err, &ptr) && ptr != nil {
		apiErr = *ptr
	} else if !errors.As(err, &apiErr) {
		return false
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		if d, ok := requestedDelay(apiErr.Message); ok && d > g.maxQuotaWait {
			g.logger.Warn("gemini quota delay is too long; not retrying",
				zap.Duration("requested_delay", d),
				zap.Duration("max_wait", g.maxQuotaWait),
			)
			return false
		}
		return true
	case apiErr.Code >= http.StatusInternalServerError:
		return true
	default:
		return false
	}
}

func requestedDelay(message string) (time.Duration, bool) {
	m := retryAfterPattern.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	secs, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}
