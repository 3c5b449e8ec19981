package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/orian/querybuilder/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "./static", cfg.Server.StaticDir)
	assert.Equal(t, models.DefaultSearchURL, cfg.Search.DefaultURL)
	assert.Equal(t, 30*time.Second, cfg.Search.Timeout)
	assert.Empty(t, cfg.History.Path)
	assert.Equal(t, 100, cfg.History.Limit)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("QB_SERVER_PORT", "9999")
	t.Setenv("QB_SEARCH_DEFAULT_URL", "http://search.internal:8080/search/")
	t.Setenv("QB_SEARCH_TIMEOUT", "5s")
	t.Setenv("QB_METRICS_ENABLED", "false")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "9999", cfg.Server.Port)
	assert.Equal(t, "http://search.internal:8080/search/", cfg.Search.DefaultURL)
	assert.Equal(t, 5*time.Second, cfg.Search.Timeout)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "querybuilder.yaml")
	content := `
server:
  port: "7070"
history:
  path: /tmp/querybuilder.db
  limit: 25
log:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "/tmp/querybuilder.db", cfg.History.Path)
	assert.Equal(t, 25, cfg.History.Limit)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfigErrors(t *testing.T) {
	t.Run("missing explicit file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"unknown log format", "QB_LOG_FORMAT", "xml"},
		{"non positive timeout", "QB_SEARCH_TIMEOUT", "0s"},
		{"non positive limit", "QB_HISTORY_LIMIT", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.env, tt.val)
			_, err := LoadConfig("")
			assert.Error(t, err)
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "debug", parseLevel("DEBUG").String())
	assert.Equal(t, "warn", parseLevel("warning").String())
	assert.Equal(t, "error", parseLevel("error").String())
	assert.Equal(t, "info", parseLevel("nonsense").String())
}
