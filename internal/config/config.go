// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config loads the ipcd TOML configuration.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/luxfi/ipc"
)

//go:embed sample_config.toml
var sampleConfig string

// Config encapsulates all configuration values for ipcd.
type Config struct {
	Server  Server  `toml:"server"`
	Logging Logging `toml:"logging"`
	Metrics Metrics `toml:"metrics"`
}

// Server contains listener settings shared by serve and the client commands.
type Server struct {
	Transport          string    `toml:"transport"`
	Address            string    `toml:"address"`
	Codec              string    `toml:"codec"`
	CallTimeoutSeconds int       `toml:"call_timeout_seconds"`
	RateLimit          RateLimit `toml:"rate_limit"`
}

// RateLimit contains per-connection request limits.
type RateLimit struct {
	Enabled bool    `toml:"enabled"`
	RPS     float64 `toml:"rps"`
	Burst   int     `toml:"burst"`
}

// Logging contains logger settings.
type Logging struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// Metrics contains the prometheus endpoint settings.
type Metrics struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Transport:          ipc.DefaultTransport,
			Address:            "127.0.0.1:7640",
			Codec:              ipc.CodecJSON,
			CallTimeoutSeconds: 30,
			RateLimit: RateLimit{
				RPS:   100,
				Burst: 200,
			},
		},
		Logging: Logging{
			Level: "info",
		},
		Metrics: Metrics{
			Address: "127.0.0.1:7641",
		},
	}
}

// Load reads configuration from disk, applying defaults when the file is
// absent. It returns the resolved path and whether the file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func (c *Config) normalize() {
	c.Server.Transport = strings.ToLower(strings.TrimSpace(c.Server.Transport))
	c.Server.Address = strings.TrimSpace(c.Server.Address)
	c.Server.Codec = strings.ToLower(strings.TrimSpace(c.Server.Codec))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Metrics.Address = strings.TrimSpace(c.Metrics.Address)
	if c.Server.Transport == "" {
		c.Server.Transport = ipc.DefaultTransport
	}
	if c.Server.Codec == "" {
		c.Server.Codec = ipc.CodecJSON
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// CallTimeout returns the configured per-call deadline. Zero disables it.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Server.CallTimeoutSeconds) * time.Second
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ipcd/config.toml")
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		info, err := os.Stat(expanded)
		switch {
		case err == nil:
			if info.IsDir() {
				return "", false, fmt.Errorf("config path %q is a directory", expanded)
			}
			return expanded, true, nil
		case errors.Is(err, fs.ErrNotExist):
			return expanded, false, nil
		default:
			return "", false, fmt.Errorf("stat config %q: %w", expanded, err)
		}
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("ipcd.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
