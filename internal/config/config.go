// Package config provides configuration management for commitreview.
// Values come from ~/.commitreview/config.yaml, then COMMITREVIEW_*
// environment variables, then command-line flags (applied by the caller).
package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	DefaultHost         = "http://localhost:11434"
	DefaultModel        = "llama3.2"
	DefaultInterval     = 30 * time.Second
	DefaultTimeout      = 5 * time.Minute
	DefaultMaxDiffBytes = 32 * 1024
)

// Duration is a time.Duration that reads from YAML strings such as "30s" or "2m".
type Duration time.Duration

// UnmarshalYAML accepts Go duration strings and bare integers (seconds).
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration in Go notation.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// ParseDuration parses a Go duration, treating a bare number as seconds.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		return parsed, nil
	}
	if seconds, err := strconv.Atoi(raw); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	return 0, fmt.Errorf("invalid duration %q", raw)
}

// Config holds everything the watcher, the reviewer and the window need.
type Config struct {
	// Repo is the repository watched at startup. Empty means the repository
	// containing the working directory; outside one the window asks.
	Repo string `yaml:"repo"`

	// Interval between two HEAD checks.
	Interval Duration `yaml:"interval"`

	// Host is the base URL of the Ollama daemon (without the /v1 suffix).
	Host string `yaml:"host"`

	// Model is the Ollama model tag used for reviews.
	Model string `yaml:"model"`

	// SystemPrompt replaces the built-in reviewer persona when set.
	SystemPrompt string `yaml:"systemPrompt"`

	// MaxDiffBytes caps the diff sent to the model. Zero disables the cap.
	MaxDiffBytes int `yaml:"maxDiffBytes"`

	// ReviewOnStart reviews the current HEAD as soon as a repository is selected.
	ReviewOnStart bool `yaml:"reviewOnStart"`

	// FetchOnRefresh runs `git fetch origin` when the repository is refreshed.
	FetchOnRefresh bool `yaml:"fetchOnRefresh"`

	// SearchRoots are scanned for repositories offered by the selector.
	SearchRoots []string `yaml:"searchRoots"`

	LogLevel string `yaml:"logLevel"`

	// Timeout bounds a single review request.
	Timeout Duration `yaml:"timeout"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Interval:       Duration(DefaultInterval),
		Host:           DefaultHost,
		Model:          DefaultModel,
		MaxDiffBytes:   DefaultMaxDiffBytes,
		ReviewOnStart:  true,
		FetchOnRefresh: true,
		LogLevel:       "info",
		Timeout:        Duration(DefaultTimeout),
	}
}

// PollInterval returns Interval as a time.Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Interval)
}

// RequestTimeout returns Timeout as a time.Duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout)
}

// ZapLevel converts LogLevel, falling back to info for unknown values.
func (c *Config) ZapLevel() zap.AtomicLevel {
	level, err := zap.ParseAtomicLevel(strings.ToLower(strings.TrimSpace(c.LogLevel)))
	if err != nil {
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return level
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", time.Duration(c.Interval))
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", time.Duration(c.Timeout))
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("model must not be empty")
	}
	if c.MaxDiffBytes < 0 {
		return fmt.Errorf("maxDiffBytes must not be negative, got %d", c.MaxDiffBytes)
	}
	u, err := url.Parse(c.Host)
	if err != nil {
		return fmt.Errorf("invalid host %q: %w", c.Host, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("host %q must use http or https", c.Host)
	}
	if u.Host == "" {
		return fmt.Errorf("host %q has no address", c.Host)
	}
	return nil
}

// OpenAIBaseURL is the OpenAI-compatible endpoint exposed by Ollama.
func (c *Config) OpenAIBaseURL() string {
	return strings.TrimSuffix(strings.TrimSuffix(c.Host, "/"), "/v1") + "/v1"
}
