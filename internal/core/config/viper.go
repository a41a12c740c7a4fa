package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// secretKeys may only come from the environment.
var secretKeys = []string{"hmac_secret", "decision_api.hmac_secret", "database.password"}

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence; flags are
// applied by the command after loading.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		DecisionAPI: DecisionAPIConfig{
			Host:           v.GetString("decision_api.host"),
			Port:           v.GetInt("decision_api.port"),
			MaxConnections: v.GetInt("decision_api.max_connections"),
			RequestTimeout: v.GetDuration("decision_api.request_timeout"),
			MaxTreeBytes:   v.GetInt("decision_api.max_tree_bytes"),
		},
		Engine: EngineConfig{
			MinResultNodes: v.GetInt("engine.min_result_nodes"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log.level")),
			Format: strings.ToLower(v.GetString("log.format")),
		},
		Database: DatabaseConfig{
			URL: v.GetString("database.url"),
		},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("decision_api.host", d.DecisionAPI.Host)
	v.SetDefault("decision_api.port", d.DecisionAPI.Port)
	v.SetDefault("decision_api.max_connections", d.DecisionAPI.MaxConnections)
	v.SetDefault("decision_api.request_timeout", d.DecisionAPI.RequestTimeout.String())
	v.SetDefault("decision_api.max_tree_bytes", d.DecisionAPI.MaxTreeBytes)
	v.SetDefault("engine.min_result_nodes", d.Engine.MinResultNodes)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("database.url", d.Database.URL)
}

// Validate checks ranges and enumerations. Commands call it again after
// applying flag overrides.
func Validate(cfg *Config) error {
	api := cfg.DecisionAPI
	if api.Port <= 0 || api.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", api.Port)
	}
	if api.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", api.MaxConnections)
	}
	if api.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", api.RequestTimeout)
	}
	if api.MaxTreeBytes <= 0 {
		return fmt.Errorf("max_tree_bytes must be positive, got %d", api.MaxTreeBytes)
	}
	if cfg.Engine.MinResultNodes < 1 {
		return fmt.Errorf("min_result_nodes must be at least 1, got %d", cfg.Engine.MinResultNodes)
	}
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", cfg.Log.Format)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("database.url must not be empty")
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets.
func validateNoSecretsInConfig(v *viper.Viper) error {
	for _, key := range secretKeys {
		if v.InConfig(key) {
			return fmt.Errorf("secrets not allowed in config files (%s; use %s_HMAC_SECRET environment variable)", key, EnvPrefix)
		}
	}
	return nil
}
