// Package config loads service configuration from an optional config.yaml
// plus CHATPROXY_-prefixed environment variables, with env taking
// precedence. Secret-bearing fields support ${VAR} substitution so the yaml
// file can be committed without credentials.
package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	OpenAI   OpenAIConfig   `koanf:"openai"`
	Database DatabaseConfig `koanf:"database"`
	Admin    AdminConfig    `koanf:"admin"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type OpenAIConfig struct {
	APIKey    string `koanf:"api_key"`
	Model     string `koanf:"model"`
	BaseURL   string `koanf:"base_url"`
	MaxTokens int    `koanf:"max_tokens"`
}

// DatabaseConfig points the audit logger at its store. An empty,
// placeholder, or loopback DSN routes audit logging to the degraded
// variant.
type DatabaseConfig struct {
	Driver string `koanf:"driver"` // sqlite or postgres
	DSN    string `koanf:"dsn"`
}

// AdminConfig gates the read-only log and statistics endpoints.
type AdminConfig struct {
	Key string `koanf:"key"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads config.yaml when present, overlays environment variables
// (CHATPROXY_ prefix, double underscore as the key separator), applies
// defaults, and substitutes ${VAR} references in secret fields.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider("config.yaml"), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider("CHATPROXY_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "CHATPROXY_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("openai.model") {
		k.Set("openai.model", "gpt-3.5-turbo")
	}
	if !k.Exists("openai.max_tokens") {
		k.Set("openai.max_tokens", 250)
	}
	if !k.Exists("database.driver") {
		k.Set("database.driver", "sqlite")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.OpenAI.APIKey = substituteEnvVars(cfg.OpenAI.APIKey)
	cfg.Database.DSN = substituteEnvVars(cfg.Database.DSN)
	cfg.Admin.Key = substituteEnvVars(cfg.Admin.Key)

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
