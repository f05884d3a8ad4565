package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spigell/eu-call-finder/internal/ai/anthropic"
	"github.com/spigell/eu-call-finder/internal/ai/gemini"
	"github.com/spigell/eu-call-finder/internal/eligibility"
	"github.com/spigell/eu-call-finder/internal/filtering"
	"github.com/spigell/eu-call-finder/internal/inflight"
	"github.com/spigell/eu-call-finder/internal/planner"
	"github.com/spigell/eu-call-finder/internal/retrieval/eu"
	"github.com/spigell/eu-call-finder/internal/service"
	"github.com/spigell/eu-call-finder/internal/telemetry"
	"github.com/spigell/eu-call-finder/internal/workflow"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app       = "call-finder"
	envPrefix = "CALL_FINDER"
)

type Config struct {
	Profile     string             `mapstructure:"profile"`
	Workflow    workflow.Config    `mapstructure:"workflow"`
	Planner     planner.Config     `mapstructure:"planner"`
	Eligibility eligibility.Config `mapstructure:"eligibility"`
	Retrieval   *RetrievalConfig   `mapstructure:"retrieval"`
	AI          *AIConfig          `mapstructure:"ai"`
	Inflight    *InflightConfig    `mapstructure:"inflight"`
	Service     service.Config     `mapstructure:"service"`
	Telemetry   telemetry.Config   `mapstructure:"telemetry"`
	Redis       *RedisConfig       `mapstructure:"redis"`
}

type RetrievalConfig struct {
	// Provider is "eu" for the live portal or "file" for a local dump.
	Provider string           `mapstructure:"provider"`
	EU       eu.Config        `mapstructure:"eu"`
	File     string           `mapstructure:"file"`
	Cache    *CacheConfig     `mapstructure:"cache"`
	Filters  filtering.Config `mapstructure:"filters"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type AIConfig struct {
	Enabled      bool             `mapstructure:"enabled"`
	Provider     string           `mapstructure:"provider"`
	MaxLogLength int              `mapstructure:"max-log-length"`
	Gemini       *GeminiConfig    `mapstructure:"gemini"`
	Anthropic    *AnthropicConfig `mapstructure:"anthropic"`
}

type GeminiConfig struct {
	APIKeyFile    string `mapstructure:"api-key-file"`
	gemini.Config `mapstructure:",squash"`
}

type AnthropicConfig struct {
	APIKeyFile       string `mapstructure:"api-key-file"`
	anthropic.Config `mapstructure:",squash"`
}

type InflightConfig struct {
	// Backend is "local" or "redis".
	Backend              string `mapstructure:"backend"`
	inflight.RedisConfig `mapstructure:",squash"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "call-finder matches a company profile against EU funding calls and ranks them",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	// Unmarshal only sees bound keys, so the commonly overridden ones are bound explicitly.
	for _, key := range []string{"profile", "retrieval.provider", "retrieval.file", "retrieval.filters.exclude-file", "ai.enabled", "ai.provider", "inflight.backend", "service.workers"} {
		if err := viper.BindEnv(key); err != nil {
			log.Fatalf("binding %s environment variable: %v", key, err)
		}
	}
	for key, env := range map[string]string{
		"ai.gemini.api-key-file":    "GEMINI_API_KEY_FILE",
		"ai.anthropic.api-key-file": "ANTHROPIC_API_KEY_FILE",
		"redis.url":                 "REDIS_URL",
		"telemetry.endpoint":        "OTEL_EXPORTER_OTLP_ENDPOINT",
		"telemetry.headers":         "OTEL_EXPORTER_OTLP_HEADERS",
	} {
		if err := viper.BindEnv(key, envPrefix+"_"+envName(key), env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is call-finder.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Config is not needed to print the version.
	if versionCmd.CalledAs() != "" {
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env file: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal(err)
		}
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigName(app)
	viper.SetConfigType("yaml")

	// Without a config file every setting comes from flags, env and defaults.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}
	if config == nil {
		config = &Config{}
	}

	return config, nil
}

func envName(key string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}
