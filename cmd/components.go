package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spigell/eu-call-finder/internal/ai"
	"github.com/spigell/eu-call-finder/internal/ai/anthropic"
	"github.com/spigell/eu-call-finder/internal/ai/gemini"
	"github.com/spigell/eu-call-finder/internal/eligibility"
	"github.com/spigell/eu-call-finder/internal/filtering"
	"github.com/spigell/eu-call-finder/internal/inflight"
	"github.com/spigell/eu-call-finder/internal/logger"
	"github.com/spigell/eu-call-finder/internal/planner"
	"github.com/spigell/eu-call-finder/internal/retrieval"
	"github.com/spigell/eu-call-finder/internal/retrieval/eu"
	"github.com/spigell/eu-call-finder/internal/secrets"
	"github.com/spigell/eu-call-finder/internal/service"
	"github.com/spigell/eu-call-finder/internal/telemetry"
	"github.com/spigell/eu-call-finder/internal/workflow"
	"go.uber.org/zap"
)

const (
	providerEU        = "eu"
	providerFile      = "file"
	providerGemini    = "gemini"
	providerAnthropic = "anthropic"
	backendLocal      = "local"
	backendRedis      = "redis"
)

// components holds everything a command needs to submit runs.
type components struct {
	service   *service.Service
	telemetry *telemetry.Telemetry
	redis     redis.UniversalClient
}

func (c *components) Close(ctx context.Context) error {
	var errs []error
	if err := c.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry shutdown: %w", err))
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

func buildComponents(ctx context.Context, config *Config, log *zap.Logger) (_ *components, err error) {
	tcfg := config.Telemetry
	if tcfg.ServiceName == "" {
		tcfg.ServiceName = app
	}
	if tcfg.ServiceVersion == "" {
		tcfg.ServiceVersion = version
	}
	tel, err := telemetry.Setup(ctx, tcfg)
	if err != nil {
		return nil, fmt.Errorf("setting up telemetry: %w", err)
	}
	c := &components{telemetry: tel}
	defer func() {
		if err != nil {
			_ = c.Close(context.WithoutCancel(ctx))
		}
	}()

	if needsRedis(config) {
		if config.Redis == nil || strings.TrimSpace(config.Redis.URL) == "" {
			return nil, errors.New("redis.url is required for the redis cache and in-flight backend (or set REDIS_URL)")
		}
		opts, err := redis.ParseURL(config.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		c.redis = redis.NewClient(opts)
	}

	adapter, err := newAdapter(config.Retrieval, c.redis, log)
	if err != nil {
		return nil, err
	}

	assessor, aiErr := newAssessor(ctx, config.AI, log)
	if aiErr != nil {
		log.Warn("running without the reasoning collaborator", zap.Error(aiErr))
	}

	orchestrator, err := workflow.New(config.Workflow, workflow.Deps{
		Planner:   planner.New(config.Planner, log.Named("planner")),
		Retrieval: adapter,
		Evaluator: eligibility.New(config.Eligibility),
		Assessor:  assessor,
	}, log.Named("workflow"))
	if err != nil {
		return nil, fmt.Errorf("building workflow: %w", err)
	}

	registry, err := newRegistry(config.Inflight, c.redis, log)
	if err != nil {
		return nil, err
	}

	c.service, err = service.New(config.Service, orchestrator, registry, log.Named("service"))
	if err != nil {
		return nil, fmt.Errorf("building service: %w", err)
	}

	return c, nil
}

func needsRedis(config *Config) bool {
	if config.Inflight != nil && strings.EqualFold(config.Inflight.Backend, backendRedis) {
		return true
	}
	return config.Retrieval != nil && config.Retrieval.Cache != nil && config.Retrieval.Cache.Enabled
}

func newAdapter(cfg *RetrievalConfig, client redis.UniversalClient, log *zap.Logger) (retrieval.Adapter, error) {
	if cfg == nil {
		cfg = &RetrievalConfig{}
	}

	var adapter retrieval.Adapter
	switch provider := strings.ToLower(strings.TrimSpace(cfg.Provider)); provider {
	case "", providerEU:
		portal := eu.New(cfg.EU, log.Named("eu"))
		portal.UserAgent = fmt.Sprintf("%s/%s", app, version)
		adapter = portal
	case providerFile:
		static, err := retrieval.LoadFile(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("loading calls file: %w", err)
		}
		adapter = static
	default:
		return nil, fmt.Errorf("unsupported retrieval provider: %s", cfg.Provider)
	}

	if cfg.Cache != nil && cfg.Cache.Enabled {
		adapter = retrieval.NewCached(adapter, client, cfg.Cache.TTL, log.Named("cache"))
	}

	// Filters run after the cache so exclude file changes apply to cached results too.
	f := filtering.New(filtering.Steps(cfg.Filters), log.Named("filtering"))
	for _, s := range f.Describe() {
		log.Debug("filter configured", zap.String("name", s.Name), zap.Bool("enabled", s.Enabled), zap.String("reason", s.Reason))
	}
	return filtering.NewAdapter(adapter, f), nil
}

// newAssessor returns nil without error when the collaborator is disabled.
func newAssessor(ctx context.Context, cfg *AIConfig, log *zap.Logger) (ai.Assessor, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	var generator ai.Generator
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case "", providerGemini:
		provider = providerGemini
		gcfg := cfg.Gemini
		if gcfg == nil {
			gcfg = &GeminiConfig{}
		}
		apiKey, err := secrets.Load(secrets.Source{Name: "gemini api key", File: gcfg.APIKeyFile, Env: "GEMINI_API_KEY"})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
		}
		g, err := gemini.NewGenerator(ctx, apiKey, gcfg.Config, logger.WithProvider(log, provider, gcfg.Model))
		if err != nil {
			return nil, err
		}
		generator = g
	case providerAnthropic:
		acfg := cfg.Anthropic
		if acfg == nil {
			acfg = &AnthropicConfig{}
		}
		apiKey, err := secrets.Load(secrets.Source{Name: "anthropic api key", File: acfg.APIKeyFile, Env: "ANTHROPIC_API_KEY"})
		if err != nil {
			return nil, fmt.Errorf("%w (set ai.anthropic.api-key-file or ANTHROPIC_API_KEY_FILE)", err)
		}
		g, err := anthropic.NewGenerator(apiKey, acfg.Config, logger.WithProvider(log, provider, acfg.Model))
		if err != nil {
			return nil, err
		}
		generator = g
	default:
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	critic, err := ai.NewCritic(generator, logger.WithProvider(log, provider, ""), cfg.MaxLogLength)
	if err != nil {
		return nil, fmt.Errorf("building ai critic: %w", err)
	}
	return critic, nil
}

func newRegistry(cfg *InflightConfig, client redis.UniversalClient, log *zap.Logger) (inflight.Registry, error) {
	if cfg == nil {
		return inflight.NewLocal(), nil
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", backendLocal:
		return inflight.NewLocal(), nil
	case backendRedis:
		return inflight.NewRedis(client, cfg.RedisConfig, log.Named("inflight")), nil
	default:
		return nil, fmt.Errorf("unsupported in-flight backend: %s", cfg.Backend)
	}
}
