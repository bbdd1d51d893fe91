package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v2"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "JIRA_ASSISTANT_"

// Generator backends
const (
	BackendKeyword   = "keyword"
	BackendAnthropic = "anthropic"
)

// Publish modes
const (
	PublishLog    = "log"
	PublishJira   = "jira"
	PublishDryRun = "dry-run"
)

// Config represents the application configuration
type Config struct {
	Generator GeneratorConfig `yaml:"generator" envPrefix:"GENERATOR_"`
	Anthropic AnthropicConfig `yaml:"anthropic" envPrefix:"ANTHROPIC_"`
	Jira      JiraConfig      `yaml:"jira" envPrefix:"JIRA_"`
	Publish   PublishConfig   `yaml:"publish" envPrefix:"PUBLISH_"`
	Server    ServerConfig    `yaml:"server" envPrefix:"SERVER_"`
	Logging   LoggingConfig   `yaml:"logging" envPrefix:"LOG_"`
}

// GeneratorConfig selects how project structures are generated
type GeneratorConfig struct {
	Backend   string `yaml:"backend" env:"BACKEND"`
	LatencyMS int    `yaml:"latency_ms" env:"LATENCY_MS"`
}

// AnthropicConfig represents Anthropic API configuration
type AnthropicConfig struct {
	APIKey            string `yaml:"api_key" env:"API_KEY"`
	BaseURL           string `yaml:"base_url" env:"BASE_URL"`
	Model             string `yaml:"model" env:"MODEL"`
	TimeoutSeconds    int    `yaml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
	MaxTokens         int    `yaml:"max_tokens" env:"MAX_TOKENS"`
	RetryCount        int    `yaml:"retry_count" env:"RETRY_COUNT"`
	RetryDelaySeconds int    `yaml:"retry_delay_seconds" env:"RETRY_DELAY_SECONDS"`
}

// JiraConfig represents JIRA API configuration
type JiraConfig struct {
	BaseURL           string `yaml:"base_url" env:"BASE_URL"`
	Username          string `yaml:"username" env:"USERNAME"`
	APIToken          string `yaml:"api_token" env:"API_TOKEN"`
	ProjectKey        string `yaml:"project_key" env:"PROJECT_KEY"`
	Timeout           int    `yaml:"timeout_seconds" env:"TIMEOUT_SECONDS"`
	CreateProject     bool   `yaml:"create_project" env:"CREATE_PROJECT"`
	LeadAccountID     string `yaml:"lead_account_id" env:"LEAD_ACCOUNT_ID"`
	SetPriority       bool   `yaml:"set_priority" env:"SET_PRIORITY"`
	RetryCount        int    `yaml:"retry_count" env:"RETRY_COUNT"`
	RetryDelaySeconds int    `yaml:"retry_delay_seconds" env:"RETRY_DELAY_SECONDS"`
}

// PublishConfig selects where finished projects are sent
type PublishConfig struct {
	Mode      string `yaml:"mode" env:"MODE"`
	LatencyMS int    `yaml:"latency_ms" env:"LATENCY_MS"`
}

// ServerConfig represents the HTTP API configuration
type ServerConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`

	// Sessions idle for longer than this are dropped; 0 keeps them forever
	SessionTTLMinutes int `yaml:"session_ttl_minutes" env:"SESSION_TTL_MINUTES"`
}

// LoggingConfig represents structured log configuration
type LoggingConfig struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

// Default returns the configuration used when a field is left unset
func Default() *Config {
	return &Config{
		Generator: GeneratorConfig{Backend: BackendKeyword, LatencyMS: 2000},
		Anthropic: AnthropicConfig{
			BaseURL:           "https://api.anthropic.com",
			Model:             "claude-3-5-sonnet-20241022",
			TimeoutSeconds:    120,
			MaxTokens:         4096,
			RetryCount:        3,
			RetryDelaySeconds: 5,
		},
		Jira: JiraConfig{
			Timeout:           30,
			RetryCount:        3,
			RetryDelaySeconds: 2,
		},
		Publish: PublishConfig{Mode: PublishLog, LatencyMS: 3000},
		Server:  ServerConfig{Addr: ":8080", SessionTTLMinutes: 60},
		Logging: LoggingConfig{Level: "info"},
	}
}

// LoadConfig loads configuration from a YAML file on top of the defaults,
// then applies environment overrides
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides fields from JIRA_ASSISTANT_* environment variables
func (c *Config) ApplyEnv() error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Generator.Backend {
	case BackendKeyword:
	case BackendAnthropic:
		if c.Anthropic.APIKey == "" {
			return fmt.Errorf("anthropic API key is required")
		}
		if c.Anthropic.Model == "" {
			return fmt.Errorf("anthropic model is required")
		}
	default:
		return fmt.Errorf("unknown generator backend %q", c.Generator.Backend)
	}

	switch c.Publish.Mode {
	case PublishLog, PublishDryRun:
	case PublishJira:
		if err := c.Jira.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown publish mode %q", c.Publish.Mode)
	}

	if c.Generator.LatencyMS < 0 || c.Publish.LatencyMS < 0 {
		return fmt.Errorf("latency must not be negative")
	}

	if c.Server.SessionTTLMinutes < 0 {
		return fmt.Errorf("session TTL must not be negative")
	}

	return nil
}

// Validate checks the credentials needed to talk to JIRA
func (c *JiraConfig) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("JIRA base URL is required")
	}

	if c.Username == "" {
		return fmt.Errorf("JIRA username is required")
	}

	if c.APIToken == "" {
		return fmt.Errorf("JIRA API token is required")
	}

	if c.CreateProject && c.LeadAccountID == "" {
		return fmt.Errorf("JIRA lead account id is required to create projects")
	}

	return nil
}

// Save writes the configuration as YAML
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
