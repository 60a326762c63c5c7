package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoader(env map[string]string) *Loader {
	l := NewLoader(nil)
	l.getenv = func(name string) string { return env[name] }
	return l
}

func TestNewLoader(t *testing.T) {
	loader := NewLoader(nil)
	assert.NotNil(t, loader)
	assert.NotNil(t, loader.logger)
}

func TestLoader_LoadFromString_EmptySource(t *testing.T) {
	loader := newTestLoader(nil)
	result, err := loader.LoadFromString("")

	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Equal(t, DefaultConfig(), result.Config)
}

func TestLoader_LoadFromString_Values(t *testing.T) {
	source := `
repo: /src/project
interval: 2m
host: http://gpu-box:11434
model: qwen2.5-coder:7b
maxDiffBytes: 1000
reviewOnStart: false
searchRoots:
  - /src
logLevel: debug
timeout: 45
`
	loader := newTestLoader(nil)
	result, err := loader.LoadFromString(source)

	require.NoError(t, err)
	assert.Empty(t, result.Errors)

	cfg := result.Config
	assert.Equal(t, "/src/project", cfg.Repo)
	assert.Equal(t, 2*time.Minute, cfg.PollInterval())
	assert.Equal(t, "http://gpu-box:11434", cfg.Host)
	assert.Equal(t, "qwen2.5-coder:7b", cfg.Model)
	assert.Equal(t, 1000, cfg.MaxDiffBytes)
	assert.False(t, cfg.ReviewOnStart)
	assert.True(t, cfg.FetchOnRefresh, "unset keys keep their defaults")
	assert.Equal(t, []string{"/src"}, cfg.SearchRoots)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout())
}

func TestLoader_LoadFromString_ParseErrorKeepsDefaults(t *testing.T) {
	loader := newTestLoader(nil)
	result, err := loader.LoadFromString("interval: [not, a, duration]")

	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error(), "parse error")
	assert.Equal(t, DefaultConfig().Interval, result.Config.Interval)
}

func TestLoader_EnvOverrides(t *testing.T) {
	loader := newTestLoader(map[string]string{
		EnvOllama:   "127.0.0.1:11434",
		EnvModel:    "mistral",
		EnvInterval: "10s",
		EnvRepo:     "/work/repo",
		EnvLogLevel: "warn",
	})
	result, err := loader.LoadFromString("model: llama3.2\n")

	require.NoError(t, err)
	assert.Empty(t, result.Errors)
	assert.Equal(t, "http://127.0.0.1:11434", result.Config.Host)
	assert.Equal(t, "mistral", result.Config.Model)
	assert.Equal(t, 10*time.Second, result.Config.PollInterval())
	assert.Equal(t, "/work/repo", result.Config.Repo)
	assert.Equal(t, "warn", result.Config.LogLevel)
}

func TestLoader_HostEnvWinsOverOllamaHost(t *testing.T) {
	loader := newTestLoader(map[string]string{
		EnvOllama: "11434",
		EnvHost:   "https://llm.internal/",
	})
	result, err := loader.LoadFromString("")

	require.NoError(t, err)
	assert.Equal(t, "https://llm.internal", result.Config.Host)
}

func TestLoader_InvalidIntervalEnv(t *testing.T) {
	loader := newTestLoader(map[string]string{EnvInterval: "whenever"})
	result, err := loader.LoadFromString("")

	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error(), EnvInterval)
	assert.Equal(t, DefaultConfig().Interval, result.Config.Interval)
}

func TestLoader_ExpandPath(t *testing.T) {
	loader := newTestLoader(map[string]string{
		"HOME":    "/home/dev",
		"PROJECT": "api",
	})

	got, err := loader.ExpandPath("~/code/$PROJECT")
	require.NoError(t, err)
	assert.Equal(t, "/home/dev/code/api", got)

	got, err = loader.ExpandPath("~")
	require.NoError(t, err)
	assert.Equal(t, "/home/dev", got)

	got, err = loader.ExpandPath("/abs/${PROJECT}/")
	require.NoError(t, err)
	assert.Equal(t, "/abs/api", got)
}

func TestLoader_LoadFromFile(t *testing.T) {
	t.Run("missing file returns defaults", func(t *testing.T) {
		loader := newTestLoader(nil)
		result, err := loader.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))

		require.NoError(t, err)
		assert.Empty(t, result.Errors)
		assert.Equal(t, DefaultConfig(), result.Config)
	})

	t.Run("reads and expands", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("searchRoots: [\"~/src\"]\n"), 0644))

		loader := newTestLoader(map[string]string{"HOME": "/home/dev"})
		result, err := loader.LoadFromFile(path)

		require.NoError(t, err)
		assert.Equal(t, []string{"/home/dev/src"}, result.Config.SearchRoots)
	})
}
