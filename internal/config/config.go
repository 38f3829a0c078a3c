package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"contentforge/pkg/domain"
)

// ConfigPath is the default config location relative to the working directory.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
// Defaults documented per field; env vars override file values.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL   string `yaml:"databaseURL"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	// Provider settings. The API key is kept encrypted at rest in the
	// settings store; the env var is only the bootstrap path.
	ProviderBaseURL    string  `yaml:"providerBaseURL"`    // default https://api.openai.com/v1
	ProviderAPIKey     string  `yaml:"providerAPIKey"`     // prefer PROVIDER_API_KEY env
	DefaultModel       string  `yaml:"defaultModel"`       // default gpt-3.5-turbo
	DefaultTemperature float64 `yaml:"defaultTemperature"` // default 0.7
	DefaultMaxTokens   int     `yaml:"defaultMaxTokens"`   // default 2000
	DefaultLanguage    string  `yaml:"defaultLanguage"`    // default en

	AuthJWTSecret string `yaml:"authJWTSecret"`

	SecretKeyPath string `yaml:"secretKeyPath"` // default secrets/contentforge.key

	// Sliding-window rate limits, requests per hour per user/IP.
	GenerateRateLimitPerHour  int `yaml:"generateRateLimitPerHour"`  // default 30
	BulkRateLimitPerHour      int `yaml:"bulkRateLimitPerHour"`      // default 5
	TemplatesRateLimitPerHour int `yaml:"templatesRateLimitPerHour"` // default 100
	DefaultRateLimitPerHour   int `yaml:"defaultRateLimitPerHour"`   // default 60

	// Bulk queue tuning.
	QueueBatchSize           int      `yaml:"queueBatchSize"`           // default 10
	QueueMaxAttempts         int      `yaml:"queueMaxAttempts"`         // default 3
	QueueRescheduleSeconds   int      `yaml:"queueRescheduleSeconds"`   // default 30
	QueueRetentionDays       int      `yaml:"queueRetentionDays"`       // default 30
	CacheCleanupIntervalMins int      `yaml:"cacheCleanupIntervalMins"` // default 60
	UsageRetentionDays       int      `yaml:"usageRetentionDays"`       // default 30
	MaxBatchOperations       int      `yaml:"maxBatchOperations"`       // default 50
	MaxPromptChars           int      `yaml:"maxPromptChars"`           // default 5000
	AlertWebhookURL          string   `yaml:"alertWebhookURL"`
	TrustedProxyCIDRs        []string `yaml:"trustedProxyCidrs"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("PROVIDER_BASE_URL"); v != "" {
		cfg.ProviderBaseURL = v
	}
	if v := os.Getenv("PROVIDER_API_KEY"); v != "" {
		cfg.ProviderAPIKey = v
	}
	if v := os.Getenv("CONTENTFORGE_DEFAULT_MODEL"); v != "" {
		cfg.DefaultModel = v
	}
	if v := os.Getenv("CONTENTFORGE_DEFAULT_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			cfg.DefaultTemperature = f
		}
	}
	if v := os.Getenv("CONTENTFORGE_DEFAULT_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.DefaultMaxTokens = n
		}
	}
	if v := os.Getenv("CONTENTFORGE_JWT_SECRET"); v != "" {
		cfg.AuthJWTSecret = v
	}
	if v := os.Getenv("CONTENTFORGE_ALERT_WEBHOOK_URL"); v != "" {
		cfg.AlertWebhookURL = v
	}
	if v := os.Getenv("CONTENTFORGE_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if strings.TrimSpace(cfg.ProviderBaseURL) == "" {
		cfg.ProviderBaseURL = "https://api.openai.com/v1"
	}
	if strings.TrimSpace(cfg.DefaultModel) == "" {
		cfg.DefaultModel = "gpt-3.5-turbo"
	}
	if cfg.DefaultTemperature == 0 {
		cfg.DefaultTemperature = 0.7
	}
	if cfg.DefaultMaxTokens <= 0 {
		cfg.DefaultMaxTokens = 2000
	}
	if strings.TrimSpace(cfg.DefaultLanguage) == "" {
		cfg.DefaultLanguage = "en"
	}
	if strings.TrimSpace(cfg.SecretKeyPath) == "" {
		cfg.SecretKeyPath = "secrets/contentforge.key"
	}
	if cfg.GenerateRateLimitPerHour <= 0 {
		cfg.GenerateRateLimitPerHour = 30
	}
	if cfg.BulkRateLimitPerHour <= 0 {
		cfg.BulkRateLimitPerHour = 5
	}
	if cfg.TemplatesRateLimitPerHour <= 0 {
		cfg.TemplatesRateLimitPerHour = 100
	}
	if cfg.DefaultRateLimitPerHour <= 0 {
		cfg.DefaultRateLimitPerHour = 60
	}
	if cfg.QueueBatchSize <= 0 {
		cfg.QueueBatchSize = 10
	}
	if cfg.QueueMaxAttempts <= 0 {
		cfg.QueueMaxAttempts = 3
	}
	if cfg.QueueRescheduleSeconds <= 0 {
		cfg.QueueRescheduleSeconds = 30
	}
	if cfg.QueueRetentionDays <= 0 {
		cfg.QueueRetentionDays = 30
	}
	if cfg.CacheCleanupIntervalMins <= 0 {
		cfg.CacheCleanupIntervalMins = 60
	}
	if cfg.UsageRetentionDays <= 0 {
		cfg.UsageRetentionDays = 30
	}
	if cfg.MaxBatchOperations <= 0 {
		cfg.MaxBatchOperations = 50
	}
	if cfg.MaxPromptChars <= 0 {
		cfg.MaxPromptChars = 5000
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required for rate limiting and the cache fast tier")
	}
	if strings.TrimSpace(cfg.AuthJWTSecret) == "" {
		return errors.New("config: authJWTSecret is required (set in config.yaml or CONTENTFORGE_JWT_SECRET)")
	}
	if cfg.DefaultTemperature < 0 || cfg.DefaultTemperature > 2 {
		return errors.New("config: defaultTemperature must be within [0, 2]")
	}
	return nil
}

// Defaults returns the generation defaults as a request skeleton,
// used to fill unset options before cache-key derivation.
func (cfg FileConfig) Defaults() domain.GenerationRequest {
	return domain.GenerationRequest{
		ContentType: domain.ContentPost,
		SEOEnabled:  true,
		Model:       cfg.DefaultModel,
		Temperature: cfg.DefaultTemperature,
		MaxTokens:   cfg.DefaultMaxTokens,
	}
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
