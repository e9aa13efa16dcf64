package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Auth      AuthConfig      `toml:"auth"`
	LLM       LLMConfig       `toml:"llm"`
	Paper     PaperConfig     `toml:"paper"`
	Roles     RolesConfig     `toml:"roles"`
	Instance  InstanceConfig  `toml:"instance"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type DatabaseConfig struct {
	Path string `toml:"path"`
}

type TelemetryConfig struct {
	LogDir string `toml:"log_dir"`
}

type AuthConfig struct {
	JWTSecret      string `toml:"jwt_secret"`
	TokenExpiryMin int    `toml:"token_expiry_min"`
}

type LLMConfig struct {
	Ollama    OllamaConfig     `toml:"ollama"`
	Endpoints []EndpointConfig `toml:"endpoints"`
}

// OllamaConfig points at a local Ollama instance. An empty BaseURL disables it.
type OllamaConfig struct {
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// EndpointConfig describes one OpenAI-compatible chat endpoint.
type EndpointConfig struct {
	Name    string `toml:"name"`
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
}

// PaperConfig bounds the information-collection dialogue and generation loop.
type PaperConfig struct {
	MinRounds      int `toml:"min_rounds"`
	MaxRounds      int `toml:"max_rounds"`
	Iterations     int `toml:"iterations"`
	SessionTTLDays int `toml:"session_ttl_days"`
}

// RoleConfig tunes a single collaboration role.
type RoleConfig struct {
	Description string  `toml:"description"`
	Temperature float64 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

type RolesConfig struct {
	Collector RoleConfig `toml:"collector"`
	Generator RoleConfig `toml:"generator"`
	Reviewer  RoleConfig `toml:"reviewer"`
	Optimizer RoleConfig `toml:"optimizer"`
}

type InstanceConfig struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8080",
		},
		Database: DatabaseConfig{
			Path: "data/paperforge.db",
		},
		Telemetry: TelemetryConfig{
			LogDir: "logs",
		},
		Auth: AuthConfig{
			JWTSecret:      "change-me-in-production",
			TokenExpiryMin: 1440, // 24h
		},
		LLM: LLMConfig{
			Ollama: OllamaConfig{
				BaseURL: "http://localhost:11434",
				Model:   "llama3",
			},
		},
		Paper: PaperConfig{
			MinRounds:      5,
			MaxRounds:      15,
			Iterations:     1,
			SessionTTLDays: 30,
		},
		Roles: RolesConfig{
			Collector: RoleConfig{
				Description: "You are an information collection specialist for academic writing. You analyze what has been gathered so far, identify missing pieces, and ask targeted follow-up questions.",
				Temperature: 0.7,
				MaxTokens:   2000,
			},
			Generator: RoleConfig{
				Description: "You are an academic content generation specialist. You produce rigorous, well-structured paper sections from collected research information.",
				Temperature: 0.8,
				MaxTokens:   4000,
			},
			Reviewer: RoleConfig{
				Description: "You are a strict academic quality reviewer. You find logical gaps, informal language, and violations of scholarly convention, and give concrete fixes.",
				Temperature: 0.3,
				MaxTokens:   3000,
			},
			Optimizer: RoleConfig{
				Description: "You are a paper structure specialist. You reorganize content for logical flow, clear transitions, and emphasis on key points.",
				Temperature: 0.5,
				MaxTokens:   4000,
			},
		},
		Instance: InstanceConfig{
			ID:   "local",
			Name: "paperforge-local",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}
