// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/ironsheep/scene-compose-mcp/internal/detection"
	"github.com/ironsheep/scene-compose-mcp/internal/render"
	"github.com/ironsheep/scene-compose-mcp/internal/selection"
)

// Environment variables read by Load.
const (
	EnvLogLevel         = "SCENE_MCP_LOG_LEVEL"
	EnvScene            = "SCENE_MCP_SCENE"
	EnvHTTPAddr         = "SCENE_MCP_HTTP_ADDR"
	EnvTiePolicy        = "SCENE_MCP_TIE_POLICY"
	EnvMaxColorDistance = "SCENE_MCP_MAX_COLOR_DISTANCE"
	EnvRenderSize       = "SCENE_MCP_RENDER_SIZE"
	EnvDotenv           = "SCENE_MCP_ENV_FILE"
)

// Config holds the settings shared by both binaries.
type Config struct {
	LogLevel         string
	Scene            string
	HTTPAddr         string
	TiePolicy        selection.TiePolicy
	MaxColorDistance float64
	RenderSize       int
}

// Debug reports whether debug logging is on.
func (c *Config) Debug() bool {
	return c.LogLevel == "debug"
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel:         "info",
		Scene:            detection.DemoSceneName,
		HTTPAddr:         "127.0.0.1:8080",
		TiePolicy:        selection.TieFirst,
		MaxColorDistance: detection.DefaultMaxColorDistance,
		RenderSize:       render.DefaultSize,
	}
}

// Load reads the .env file named by SCENE_MCP_ENV_FILE (default ".env"), if
// present, then the environment. Variables already set in the environment
// win over the file.
func Load() (*Config, error) {
	path := getEnv(EnvDotenv, ".env")
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables alone.
func FromEnv() (*Config, error) {
	def := Default()
	cfg := &Config{
		LogLevel: getEnv(EnvLogLevel, def.LogLevel),
		Scene:    getEnv(EnvScene, def.Scene),
		HTTPAddr: getEnv(EnvHTTPAddr, def.HTTPAddr),
	}

	policy, err := selection.ParseTiePolicy(getEnv(EnvTiePolicy, def.TiePolicy.String()))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", EnvTiePolicy, err)
	}
	cfg.TiePolicy = policy

	if cfg.MaxColorDistance, err = getEnvFloat(EnvMaxColorDistance, def.MaxColorDistance); err != nil {
		return nil, err
	}
	if cfg.MaxColorDistance <= 0 {
		return nil, fmt.Errorf("%s must be positive, got %v", EnvMaxColorDistance, cfg.MaxColorDistance)
	}

	if cfg.RenderSize, err = getEnvInt(EnvRenderSize, def.RenderSize); err != nil {
		return nil, err
	}
	if cfg.RenderSize < render.MinSize || cfg.RenderSize > render.MaxSize {
		return nil, fmt.Errorf("%s must be between %d and %d, got %d", EnvRenderSize, render.MinSize, render.MaxSize, cfg.RenderSize)
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, val)
	}
	return f, nil
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, val)
	}
	return n, nil
}
