package ai

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/invopop/jsonschema"
	"github.com/spigell/eu-call-finder/internal/logger"
	"go.uber.org/zap"
)

//go:embed prompt.md
var promptTemplate string

const defaultMaxLogLength = 200

// answer is the JSON document the model is asked to return.
type answer struct {
	DomainFit    float64 `json:"domain_fit" jsonschema:"minimum=0,maximum=10" jsonschema_description:"How well the company's domains match the call topic"`
	KeywordFit   float64 `json:"keyword_fit" jsonschema:"minimum=0,maximum=10" jsonschema_description:"How well the company's technologies match the call keywords"`
	StrategicFit float64 `json:"strategic_fit" jsonschema:"minimum=0,maximum=10" jsonschema_description:"How well the call fits the company's strategy and programme history"`
	Rationale    string  `json:"rationale" jsonschema_description:"Two or three sentences explaining the scores"`
}

// Schema returns the JSON schema of the expected answer.
func Schema() (string, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	data, err := json.MarshalIndent(reflector.Reflect(&answer{}), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal answer schema: %w", err)
	}
	return string(data), nil
}

// Critic asks a text generator to assess calls and parses its answers.
type Critic struct {
	generator Generator
	logger    *zap.Logger
	maxLogLen int
	schema    string
}

// NewCritic returns a critic backed by generator.
func NewCritic(generator Generator, log *zap.Logger, maxLogLength int) (*Critic, error) {
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	schema, err := Schema()
	if err != nil {
		return nil, err
	}

	return &Critic{
		generator: generator,
		logger:    logger.WithProvider(log, "", generator.Model()),
		maxLogLen: maxLogLength,
		schema:    schema,
	}, nil
}

// Assess implements Assessor.
func (c *Critic) Assess(ctx context.Context, req Request) (*Assessment, error) {
	if strings.TrimSpace(req.Profile) == "" {
		return nil, fmt.Errorf("profile summary is required")
	}
	if strings.TrimSpace(req.Candidate) == "" {
		return nil, fmt.Errorf("candidate text is required")
	}

	prompt := c.buildPrompt(req)

	c.logger.Debug("assessment request",
		zap.String(logger.FieldCallID, req.CallID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, c.maxLogLen)),
	)

	raw, err := c.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("assessment response",
		zap.String(logger.FieldCallID, req.CallID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, c.maxLogLen)),
	)

	assessment, err := parseAssessment(raw)
	if err != nil {
		return nil, err
	}
	assessment.Raw = raw
	return assessment, nil
}

func (c *Critic) buildPrompt(req Request) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Company:\n{{PROFILE}}\n\nCall:\n{{CANDIDATE}}\n\nSchema:\n{{SCHEMA}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{PROFILE}}", strings.TrimSpace(req.Profile))
	prompt = strings.ReplaceAll(prompt, "{{CANDIDATE}}", strings.TrimSpace(req.Candidate))
	prompt = strings.ReplaceAll(prompt, "{{SCHEMA}}", c.schema)
	return prompt
}
