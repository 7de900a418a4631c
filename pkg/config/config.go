package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig                 `json:"app" yaml:"app"`
	Server    ServerConfig              `json:"server" yaml:"server"`
	Gateways  map[string]GatewayConfig  `json:"gateways" yaml:"gateways"`
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Agents    AgentsConfig              `json:"agents" yaml:"agents"`
	Memory    MemoryConfig              `json:"memory" yaml:"memory"`
	Notify    NotifyConfig              `json:"notify" yaml:"notify"`
	Policy    PolicyConfig              `json:"policy" yaml:"policy"`
}

type AppConfig struct {
	Name      string `json:"name" yaml:"name"`
	Dashboard bool   `json:"dashboard" yaml:"dashboard"`
	LogDir    string `json:"log_dir" yaml:"log_dir"`
	PromptDir string `json:"prompt_dir" yaml:"prompt_dir"`
}

type ServerConfig struct {
	Addr         string   `json:"addr" yaml:"addr"`
	AllowOrigins []string `json:"allow_origins" yaml:"allow_origins"`
}

type GatewayConfig struct {
	Token   string `json:"token" yaml:"token"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	Model   string `json:"model" yaml:"model"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// AgentsConfig describes how the four pipeline agents are reached.
// Transport is "orchestrate" (default) or "llm".
type AgentsConfig struct {
	Transport       string `json:"transport" yaml:"transport"`
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	HostURL         string `json:"host_url" yaml:"host_url"`
	OrchestrationID string `json:"orchestration_id" yaml:"orchestration_id"`
	TimeoutSeconds  int    `json:"timeout_seconds" yaml:"timeout_seconds"`

	IAMURL    string `json:"iam_url" yaml:"iam_url"`
	IAMAPIKey string `json:"iam_api_key" yaml:"iam_api_key"`

	AssessmentID string `json:"assessment_id" yaml:"assessment_id"`
	LeanCoachID  string `json:"lean_coach_id" yaml:"lean_coach_id"`
	ExecutionID  string `json:"execution_id" yaml:"execution_id"`
	ValidationID string `json:"validation_id" yaml:"validation_id"`
}

type MemoryConfig struct {
	Type string `json:"type" yaml:"type"`
	Path string `json:"path" yaml:"path"`
	DSN  string `json:"dsn" yaml:"dsn"`
}

type NotifyConfig struct {
	WebhookURL  string `json:"webhook_url" yaml:"webhook_url"`
	RedisURL    string `json:"redis_url" yaml:"redis_url"`
	RedisStream string `json:"redis_stream" yaml:"redis_stream"`
}

type PolicyConfig struct {
	DenyPatterns []string `json:"deny_patterns" yaml:"deny_patterns"`
	MaxTextLen   int      `json:"max_text_len" yaml:"max_text_len"`
}

const (
	DefaultIAMURL       = "https://iam.cloud.ibm.com/identity/token"
	DefaultAgentTimeout = 60
	DefaultRedisStream  = "digibiz.missions"
	DefaultMaxTextLen   = 10000
)

// Load reads a JSON or YAML config file (by extension), then applies
// environment overrides and defaults. A missing file yields defaults plus
// environment values.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to decode config file: %w", err)
			}
		default:
			if err := json.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to decode config file: %w", err)
			}
		}
	case os.IsNotExist(err):
		log.Printf("config file %s not found, using environment only", path)
	default:
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// LoadConfig is Load for process startup: any error is fatal.
func LoadConfig(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

func (c *Config) applyEnv() {
	setFromEnv(&c.Agents.IAMAPIKey, "WATSONX_API_KEY", "WATSONX_IAM_APIKEY", "WXO_ATM_API_KEY")
	setFromEnv(&c.Agents.Endpoint, "WATSONX_ENDPOINT", "WATSONX_URL")
	setFromEnv(&c.Agents.HostURL, "WATSONX_HOST_URL")
	setFromEnv(&c.Agents.OrchestrationID, "ORCHESTRATION_ID")
	setFromEnv(&c.Agents.AssessmentID, "ASSESSMENT_AGENT_ID")
	setFromEnv(&c.Agents.LeanCoachID, "LEAN_COACH_AGENT_ID")
	setFromEnv(&c.Agents.ExecutionID, "EXECUTION_AGENT_ID")
	setFromEnv(&c.Agents.ValidationID, "VALIDATION_AGENT_ID")
	setFromEnv(&c.Notify.WebhookURL, "N8N_WEBHOOK")
	setFromEnv(&c.Notify.RedisURL, "REDIS_URL")
	setFromEnv(&c.Memory.DSN, "MYSQL_DSN")

	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
}

// setFromEnv overwrites dst with the first non-empty variable in keys.
func setFromEnv(dst *string, keys ...string) {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			*dst = v
			return
		}
	}
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "digibiz"
	}
	if c.App.LogDir == "" {
		c.App.LogDir = "logs"
	}
	if c.App.PromptDir == "" {
		c.App.PromptDir = "./prompts"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":3000"
	}
	if len(c.Server.AllowOrigins) == 0 {
		c.Server.AllowOrigins = []string{"http://localhost:5173"}
	}
	if c.Agents.Transport == "" {
		c.Agents.Transport = "orchestrate"
	}
	if c.Agents.TimeoutSeconds <= 0 || c.Agents.TimeoutSeconds > DefaultAgentTimeout {
		c.Agents.TimeoutSeconds = DefaultAgentTimeout
	}
	if c.Agents.IAMURL == "" {
		c.Agents.IAMURL = DefaultIAMURL
	}
	if c.Memory.Type == "" {
		c.Memory.Type = "sqlite"
	}
	if c.Memory.Path == "" {
		c.Memory.Path = "digibiz.db"
	}
	if c.Notify.RedisStream == "" {
		c.Notify.RedisStream = DefaultRedisStream
	}
	if c.Policy.MaxTextLen <= 0 {
		c.Policy.MaxTextLen = DefaultMaxTextLen
	}
}

// GetDefaultProvider returns the first enabled provider
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	for name, p := range c.Providers {
		if p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	tg, ok := c.Gateways["telegram"]
	if ok && tg.Enabled && tg.Token != "" {
		return tg, true
	}
	return GatewayConfig{}, false
}
