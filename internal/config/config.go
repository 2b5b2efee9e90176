package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// Server
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Environment string `json:"environment"`
	LogLevel    string `json:"log_level"`

	// CORS
	CORSOrigins []string `json:"cors_origins"`

	// Auth
	APIKeyHeader string   `json:"api_key_header"`
	APIKeys      []string `json:"api_keys"`
	EnableAuth   bool     `json:"enable_auth"`

	// Rate Limiting
	RateLimitPerMinute int `json:"rate_limit_per_minute"`

	// Tool execution
	ToolTimeoutSeconds int    `json:"tool_timeout_seconds"`
	SandboxRoot        string `json:"sandbox_root"` // empty = filesystem tools delegate legality to the OS
	EnableAuditLogging bool   `json:"enable_audit_logging"`
	DefaultTargetLang  string `json:"default_target_lang"`
	DailyPlanRoot      string `json:"daily_plan_root"`

	// Upstream completion backend (OpenAI-compatible), used by translate_text
	UpstreamBaseURL string `json:"upstream_base_url"`
	UpstreamAPIKey  string `json:"upstream_api_key"`
	UpstreamModel   string `json:"upstream_model"`

	// Weather backend; empty = deterministic offline table
	WeatherBaseURL string `json:"weather_base_url"`

	// AI agent (optional second round against an LLM)
	AnthropicAPIKey  string `json:"anthropic_api_key"`
	AnthropicBaseURL string `json:"anthropic_base_url"` // override for compatible proxies
	AgentModel       string `json:"agent_model"`
	AgentTimeout     int    `json:"agent_timeout"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Host:               DefaultHost,
		Port:               DefaultPort,
		Environment:        DefaultEnvironment,
		LogLevel:           DefaultLogLevel,
		CORSOrigins:        DefaultCORSOrigins,
		APIKeyHeader:       "X-API-Key",
		EnableAuth:         true,
		RateLimitPerMinute: DefaultRateLimitPerMinute,
		ToolTimeoutSeconds: DefaultToolTimeoutSeconds,
		EnableAuditLogging: true,
		DefaultTargetLang:  DefaultTargetLang,
		DailyPlanRoot:      DefaultDailyPlanRoot,
		UpstreamModel:      DefaultUpstreamModel,
		AgentTimeout:       DefaultAgentTimeout,
	}

	// Load from JSON config file if specified
	if path := getEnv("TOOLBRIDGE_CONFIG", ""); path != "" {
		if err := loadJSON(path, cfg); err != nil {
			return nil, err
		}
	}

	// Environment overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

func loadJSON(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := getEnv("TOOLBRIDGE_HOST", ""); v != "" {
		cfg.Host = v
	}
	if v := getEnv("TOOLBRIDGE_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := getEnv("TOOLBRIDGE_ENV", ""); v != "" {
		cfg.Environment = v
	}
	if v := getEnv("TOOLBRIDGE_LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("TOOLBRIDGE_API_KEYS", ""); v != "" {
		cfg.APIKeys = strings.Split(v, ",")
	}
	if v := getEnv("ENABLE_AUTH", ""); v != "" {
		cfg.EnableAuth = v == "true" || v == "1"
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		if r, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = r
		}
	}
	if v := getEnv("TOOL_TIMEOUT_SECONDS", ""); v != "" {
		if t, err := strconv.Atoi(v); err == nil && t > 0 {
			cfg.ToolTimeoutSeconds = t
		}
	}
	if v := getEnv("SANDBOX_ROOT", ""); v != "" {
		cfg.SandboxRoot = v
	}
	if v := getEnv("ENABLE_AUDIT_LOGGING", ""); v != "" {
		cfg.EnableAuditLogging = v == "true" || v == "1"
	}
	if v := getEnv("DEFAULT_TARGET_LANG", ""); v != "" {
		cfg.DefaultTargetLang = v
	}
	if v := getEnv("DAILY_PLAN_ROOT", ""); v != "" {
		cfg.DailyPlanRoot = v
	}
	if v := getEnv("UPSTREAM_BASE_URL", ""); v != "" {
		cfg.UpstreamBaseURL = v
	}
	if v := getEnv("UPSTREAM_API_KEY", ""); v != "" {
		cfg.UpstreamAPIKey = v
	}
	if v := getEnv("UPSTREAM_MODEL", ""); v != "" {
		cfg.UpstreamModel = v
	}
	if v := getEnv("WEATHER_BASE_URL", ""); v != "" {
		cfg.WeatherBaseURL = v
	}
	if v := getEnv("ANTHROPIC_API_KEY", ""); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := getEnv("ANTHROPIC_BASE_URL", ""); v != "" {
		cfg.AnthropicBaseURL = v
	}
	if v := getEnv("AGENT_MODEL", ""); v != "" {
		cfg.AgentModel = v
	}
	if v := getEnv("AGENT_TIMEOUT", ""); v != "" {
		if t, err := strconv.Atoi(v); err == nil && t > 0 {
			cfg.AgentTimeout = t
		}
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
