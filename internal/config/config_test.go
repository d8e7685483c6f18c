package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/scene-compose-mcp/internal/selection"
)

// clearEnv unsets every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{EnvLogLevel, EnvScene, EnvHTTPAddr, EnvTiePolicy, EnvMaxColorDistance, EnvRenderSize, EnvDotenv} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.False(t, cfg.Debug())
	assert.Equal(t, "demo", cfg.Scene)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvScene, "kitchen.db#morning")
	t.Setenv(EnvHTTPAddr, ":9090")
	t.Setenv(EnvTiePolicy, "strict")
	t.Setenv(EnvMaxColorDistance, "0.15")
	t.Setenv(EnvRenderSize, "256")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.Debug())
	assert.Equal(t, "kitchen.db#morning", cfg.Scene)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, selection.TieStrict, cfg.TiePolicy)
	assert.Equal(t, 0.15, cfg.MaxColorDistance)
	assert.Equal(t, 256, cfg.RenderSize)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, val string
	}{
		{EnvTiePolicy, "random"},
		{EnvMaxColorDistance, "far"},
		{EnvMaxColorDistance, "-1"},
		{EnvRenderSize, "big"},
		{EnvRenderSize, "8"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.val, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestLoad_Dotenv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "scene.env")
	require.NoError(t, os.WriteFile(path, []byte("SCENE_MCP_SCENE=from-file.json\nSCENE_MCP_RENDER_SIZE=128\n"), 0o644))
	t.Setenv(EnvDotenv, path)
	t.Setenv(EnvRenderSize, "64")
	t.Cleanup(func() { os.Unsetenv(EnvScene) })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file.json", cfg.Scene)
	assert.Equal(t, 64, cfg.RenderSize, "environment should win over the file")
}

func TestLoad_MissingDotenv(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDotenv, filepath.Join(t.TempDir(), "absent.env"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Scene)
}
