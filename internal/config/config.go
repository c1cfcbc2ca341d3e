// Package config provides configuration loading from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
)

// DefaultHost is the Hydra instance used when none is configured.
const DefaultHost = "https://hydra.nixos.org"

// ToolConfig holds the defaults for hydractl. Command-line flags override it.
type ToolConfig struct {
	Host           string
	User           string
	Password       string
	PasswordFile   string // Read only when no password is given directly
	Timeout        time.Duration // Per-request HTTP timeout (0 disables it)
	StrictStatus   bool          // Treat non-2xx responses as failures
	LogLevel       string
	LogFormat      string
	PushgatewayURL string // Optional; metrics are pushed here after a run
}

// LoadDotEnv loads variables from the given .env files without overriding
// the ones already set. A missing file is not an error.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// LoadToolConfig loads tool configuration from environment variables.
// HYDRA_PASSWORD_FILE is only recorded here; it is read when the
// credentials are resolved so that read errors reach the caller.
func LoadToolConfig() *ToolConfig {
	return &ToolConfig{
		Host:           GetEnv("HYDRA_HOST", DefaultHost),
		User:           GetEnv("HYDRA_USER", ""),
		Password:       GetEnv("HYDRA_PASSWORD", ""),
		PasswordFile:   GetEnv("HYDRA_PASSWORD_FILE", ""),
		Timeout:        GetDurationEnv("HYDRA_HTTP_TIMEOUT", 30*time.Second),
		StrictStatus:   GetBoolEnv("HYDRA_STRICT_STATUS", true),
		LogLevel:       GetEnv("LOG_LEVEL", "info"),
		LogFormat:      GetEnv("LOG_FORMAT", "text"),
		PushgatewayURL: GetEnv("PUSHGATEWAY_URL", ""),
	}
}
