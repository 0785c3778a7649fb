// Package config loads the service configuration from YAML with
// environment-variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultReadTimeoutSeconds is the default read timeout in seconds.
	DefaultReadTimeoutSeconds = 30
	// DefaultWriteTimeoutSeconds is the default write timeout in seconds.
	DefaultWriteTimeoutSeconds = 60
	// DefaultShutdownTimeoutSeconds is the default shutdown timeout in seconds.
	DefaultShutdownTimeoutSeconds = 30
)

type Config struct {
	Debug     bool            `yaml:"debug"` // Application debug mode (controls log level and format)
	Server    ServerConfig    `yaml:"server"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DatabaseConfig  `yaml:"database"`
	Providers ProvidersConfig `yaml:"providers"`
	Search    SearchConfig    `yaml:"search"`
	WordPress WordPressConfig `yaml:"wordpress"`
	Images    ImagesConfig    `yaml:"images"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

type ServerConfig struct {
	Address         string        `yaml:"address"` // e.g., ":8080"
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"` // Off by default; an in-memory cache is used instead
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled"` // Off by default; run history is skipped without it
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"` // Optional override, defaults to the vendor endpoint
	Model   string `yaml:"model"`    // Optional override, defaults per provider
}

type OpenRouterConfig struct {
	APIKey  string   `yaml:"api_key"`
	BaseURL string   `yaml:"base_url"`
	Models  []string `yaml:"models"` // Free-tier model rotation order
}

type ProvidersConfig struct {
	Selected   string           `yaml:"selected"` // Preferred provider name, e.g. "gemini"
	Gemini     ProviderConfig   `yaml:"gemini"`
	OpenAI     ProviderConfig   `yaml:"openai"`
	Anthropic  ProviderConfig   `yaml:"anthropic"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	ImageModel string           `yaml:"image_model"` // Gemini image generation model
}

type SearchConfig struct {
	SerperAPIKey string `yaml:"serper_api_key"`
	BaseURL      string `yaml:"base_url"`
}

type WordPressConfig struct {
	URL         string `yaml:"url"`
	Username    string `yaml:"username"`
	AppPassword string `yaml:"app_password"`
}

type ImagesConfig struct {
	RelayEndpoint string `yaml:"relay_endpoint"` // PHP relay uploader, optional
	HostEndpoint  string `yaml:"host_endpoint"`  // External image host, optional
	HostAPIKey    string `yaml:"host_api_key"`
}

type PipelineConfig struct {
	NLPAnalysis         bool   `yaml:"nlp_analysis"` // Optional NLP term extraction stage
	SiteName            string `yaml:"site_name"`
	SiteURL             string `yaml:"site_url"`
	AuthorName          string `yaml:"author_name"`
	GenerateConcurrency int    `yaml:"generate_concurrency"`
	PublishConcurrency  int    `yaml:"publish_concurrency"`
}

// HasProvider reports whether at least one text provider is configured.
func (p *ProvidersConfig) HasProvider() bool {
	return p.Gemini.APIKey != "" || p.OpenAI.APIKey != "" ||
		p.Anthropic.APIKey != "" || p.OpenRouter.APIKey != ""
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if !c.Providers.HasProvider() {
		return errors.New("at least one provider api_key is required")
	}
	if c.Search.SerperAPIKey == "" {
		return errors.New("search.serper_api_key is required")
	}
	if c.WordPress.URL == "" {
		return errors.New("wordpress.url is required")
	}
	if c.WordPress.Username == "" || c.WordPress.AppPassword == "" {
		return errors.New("wordpress.username and wordpress.app_password are required")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when redis.enabled is true")
	}
	if c.Database.Enabled && (c.Database.Host == "" || c.Database.DBName == "") {
		return errors.New("database.host and database.dbname are required when database.enabled is true")
	}
	if c.Pipeline.GenerateConcurrency < 0 || c.Pipeline.PublishConcurrency < 0 {
		return fmt.Errorf("pipeline concurrency must not be negative, got generate=%d publish=%d",
			c.Pipeline.GenerateConcurrency, c.Pipeline.PublishConcurrency)
	}
	return nil
}

// setDefaults sets default values for configuration fields.
func setDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeoutSeconds * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeoutSeconds * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeoutSeconds * time.Second
	}
	if cfg.Providers.Selected == "" {
		cfg.Providers.Selected = "gemini"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Pipeline.SiteName == "" {
		cfg.Pipeline.SiteName = "ContentForge"
	}
}

// overrideWithEnvVars overrides configuration with environment variables.
func overrideWithEnvVars(cfg *Config) {
	if appDebug := os.Getenv("APP_DEBUG"); appDebug != "" {
		cfg.Debug = parseBool(appDebug)
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.Enabled = true
		cfg.Redis.Addr = redisURL
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Providers.Gemini.APIKey = key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.Providers.OpenAI.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.Providers.Anthropic.APIKey = key
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		cfg.Providers.OpenRouter.APIKey = key
	}
	if key := os.Getenv("SERPER_API_KEY"); key != "" {
		cfg.Search.SerperAPIKey = key
	}
	if url := os.Getenv("WP_URL"); url != "" {
		cfg.WordPress.URL = url
	}
	if user := os.Getenv("WP_USERNAME"); user != "" {
		cfg.WordPress.Username = user
	}
	if pass := os.Getenv("WP_APP_PASSWORD"); pass != "" {
		cfg.WordPress.AppPassword = pass
	}
	if pass := os.Getenv("DB_PASSWORD"); pass != "" {
		cfg.Database.Password = pass
	}
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)
	overrideWithEnvVars(&cfg)

	// Override server address with environment variable if present
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Address = ":" + port
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
