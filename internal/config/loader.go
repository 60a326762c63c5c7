package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"mvdan.cc/sh/v3/shell"
)

// Environment variables consulted after the config file.
const (
	EnvRepo     = "COMMITREVIEW_REPO"
	EnvInterval = "COMMITREVIEW_INTERVAL"
	EnvHost     = "COMMITREVIEW_HOST"
	EnvModel    = "COMMITREVIEW_MODEL"
	EnvLogLevel = "COMMITREVIEW_LOG_LEVEL"
	EnvOllama   = "OLLAMA_HOST"
)

// Loader handles loading and parsing of config.yaml files.
type Loader struct {
	logger *zap.Logger
	getenv func(string) string
}

// NewLoader creates a new configuration loader.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		logger: logger,
		getenv: os.Getenv,
	}
}

// LoadResult contains the result of loading a configuration file.
type LoadResult struct {
	Config *Config
	Errors []error
}

// LoadFromFile loads configuration from a YAML file.
// If the file doesn't exist, returns default configuration with no error.
func (l *Loader) LoadFromFile(path string) (*LoadResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Debug("config file not found, using defaults", zap.String("path", path))
			return l.finish(&LoadResult{Config: DefaultConfig(), Errors: []error{}}), nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return l.LoadFromString(string(content))
}

// LoadFromString loads configuration from YAML source.
// Parse errors are non-fatal: they are reported in Errors and defaults are kept.
func (l *Loader) LoadFromString(source string) (*LoadResult, error) {
	result := &LoadResult{
		Config: DefaultConfig(),
		Errors: []error{},
	}

	if strings.TrimSpace(source) != "" {
		parsed := DefaultConfig()
		if err := yaml.Unmarshal([]byte(source), parsed); err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("parse error: %w", err))
		} else {
			result.Config = parsed
		}
	}

	return l.finish(result), nil
}

func (l *Loader) finish(result *LoadResult) *LoadResult {
	l.applyEnv(result)
	l.expandPaths(result)
	return result
}

func (l *Loader) applyEnv(result *LoadResult) {
	cfg := result.Config

	if v := l.getenv(EnvOllama); v != "" {
		cfg.Host = NormalizeHost(v)
	}
	if v := l.getenv(EnvHost); v != "" {
		cfg.Host = NormalizeHost(v)
	}
	if v := l.getenv(EnvRepo); v != "" {
		cfg.Repo = v
	}
	if v := l.getenv(EnvModel); v != "" {
		cfg.Model = v
	}
	if v := l.getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := l.getenv(EnvInterval); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", EnvInterval, err))
		} else {
			cfg.Interval = Duration(d)
		}
	}
}

func (l *Loader) expandPaths(result *LoadResult) {
	cfg := result.Config

	if cfg.Repo != "" {
		expanded, err := l.ExpandPath(cfg.Repo)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("repo: %w", err))
		} else {
			cfg.Repo = expanded
		}
	}

	if len(cfg.SearchRoots) == 0 {
		return
	}

	roots := make([]string, 0, len(cfg.SearchRoots))
	for _, root := range cfg.SearchRoots {
		expanded, err := l.ExpandPath(root)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Errorf("searchRoots: %w", err))
			continue
		}
		roots = append(roots, expanded)
	}
	cfg.SearchRoots = roots
}

// ExpandPath resolves a leading ~ and $VARIABLES in a configured path.
func (l *Loader) ExpandPath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		path = "$HOME" + path[1:]
	}
	expanded, err := shell.Expand(path, l.getenv)
	if err != nil {
		return "", fmt.Errorf("failed to expand %q: %w", path, err)
	}
	return filepath.Clean(expanded), nil
}

// NormalizeHost accepts OLLAMA_HOST style values such as "127.0.0.1:11434".
func NormalizeHost(v string) string {
	v = strings.TrimSpace(v)
	if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
		return strings.TrimSuffix(v, "/")
	}
	if _, err := strconv.Atoi(v); err == nil {
		return "http://localhost:" + v
	}
	return "http://" + strings.TrimSuffix(v, "/")
}
