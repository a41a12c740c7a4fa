// Package config provides configuration management for decisionkeeper.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kaannakiin/decisionkeeper/internal/types"
)

// EnvPrefix prefixes every environment variable the service reads.
const EnvPrefix = "DK"

// Config is the full service configuration.
type Config struct {
	DecisionAPI DecisionAPIConfig
	Engine      EngineConfig
	Log         LogConfig
	Database    DatabaseConfig
}

// DecisionAPIConfig holds configuration for the gRPC decision API.
type DecisionAPIConfig struct {
	Host           string
	Port           int
	MaxConnections int
	RequestTimeout time.Duration
	MaxTreeBytes   int
}

// EngineConfig tunes domain registration.
type EngineConfig struct {
	// MinResultNodes is applied to every built-in domain.
	MinResultNodes int
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

// DatabaseConfig locates the tree store.
type DatabaseConfig struct {
	URL string // sqlite path or postgres:// URL
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		DecisionAPI: DecisionAPIConfig{
			Host:           "0.0.0.0",
			Port:           50061,
			MaxConnections: 1000,
			RequestTimeout: 10 * time.Second,
			MaxTreeBytes:   types.MaxTreeBytes,
		},
		Engine: EngineConfig{
			MinResultNodes: types.DefaultMinResultNodes,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Database: DatabaseConfig{
			URL: "./data/decisionkeeper.db",
		},
	}
}

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports DK_HMAC_SECRET (single) and DK_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	add := func(key, val string) error {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if _, exists := secrets[secretID]; exists {
			return fmt.Errorf("duplicate secret_id '%s' in %s (check %s_HMAC_SECRET and %s_HMAC_SECRET_* for conflicts)",
				secretID, key, EnvPrefix, EnvPrefix)
		}
		secrets[secretID] = decoded
		return nil
	}

	single := EnvPrefix + "_HMAC_SECRET"
	if val := os.Getenv(single); val != "" {
		if err := add(single, val); err != nil {
			return nil, err
		}
	}

	// Numbered secrets keep old and new keys valid during rotation.
	// The sequence stops at the first gap.
	for i := 1; ; i++ {
		key := fmt.Sprintf("%s_%d", single, i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		if err := add(key, val); err != nil {
			return nil, err
		}
	}

	return secrets, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 lowercase hex chars (UUIDv7 without hyphens).
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	id, encoded, ok := strings.Cut(strings.TrimSpace(envValue), ":")
	if !ok {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	if len(id) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars (UUIDv7 without hyphens)")
	}
	for _, c := range id {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(secret) < 32 {
		return "", nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(secret))
	}

	return id, secret, nil
}
