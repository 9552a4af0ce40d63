// Package config resolves process configuration from the environment, the
// way hermes's simplified/zero-config serve mode resolves a workspace path
// from args and cwd (spec §6 "Environment").
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/hashicorp/go-hclog"
)

const defaultPort = 3847

// Config is the engine's process configuration, loaded once at startup.
type Config struct {
	// Port the HTTP/WebSocket server listens on.
	Port int

	// OrgRoot is the workspace root the Document Index is built against.
	OrgRoot string

	// TLSCertPath and TLSKeyPath are optional; when both are set the
	// server listens with TLS instead of plaintext.
	TLSCertPath string
	TLSKeyPath  string

	// LogLevel controls the root logger's verbosity.
	LogLevel string
}

// Load reads PORT, ORG_ROOT, VITRUM_TLS_CERT, VITRUM_TLS_KEY and
// VITRUM_LOG_LEVEL from the environment, defaulting PORT to 3847 and
// ORG_ROOT to the current working directory.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        defaultPort,
		TLSCertPath: os.Getenv("VITRUM_TLS_CERT"),
		TLSKeyPath:  os.Getenv("VITRUM_TLS_KEY"),
		LogLevel:    os.Getenv("VITRUM_LOG_LEVEL"),
	}

	if raw := os.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", raw, err)
		}
		cfg.Port = port
	}

	if root := os.Getenv("ORG_ROOT"); root != "" {
		cfg.OrgRoot = root
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve cwd: %w", err)
		}
		cfg.OrgRoot = cwd
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// TLSEnabled reports whether both TLS cert and key paths are configured.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertPath != "" && c.TLSKeyPath != ""
}

// NewLogger builds the root hclog.Logger for the process, named "vitrum"
// the way hermes names its root logger after the CLI binary.
func NewLogger(cfg *Config) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:  "vitrum",
		Level: hclog.LevelFromString(cfg.LogLevel),
	})
}
