package rewrite

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPrefix is the path segment that marks a URL as routed through the proxy.
const DefaultPrefix = "/p/"

// ErrConfigNotFound is returned by LoadConfig when the file does not exist.
var ErrConfigNotFound = errors.New("rewrite config not found")

// Config holds the values the hosting page supplies before hooks are installed.
// It is read once when a Rewriter is built and never changes afterwards.
type Config struct {
	// Prefix is the proxy path prefix, e.g. "/p/".
	Prefix string `yaml:"prefix" json:"prefix"`
	// BaseURL resolves relative URLs.
	BaseURL string `yaml:"base_url" json:"base_url"`
	// TargetOrigin is the real origin being proxied, e.g. "https://example.com".
	TargetOrigin string `yaml:"target_origin" json:"target_origin"`
	// PageHost is the host the page is served from (the proxy's own host).
	PageHost string `yaml:"page_host" json:"page_host"`
}

// ConfigFromEnv populates a Config from PAGEHOOK_* environment variables.
func ConfigFromEnv() Config {
	return Config{
		Prefix:       strings.TrimSpace(os.Getenv("PAGEHOOK_PREFIX")),
		BaseURL:      strings.TrimSpace(os.Getenv("PAGEHOOK_BASE")),
		TargetOrigin: strings.TrimSpace(os.Getenv("PAGEHOOK_ORIGIN")),
		PageHost:     strings.TrimSpace(os.Getenv("PAGEHOOK_PAGE_HOST")),
	}
}

// LoadConfig reads a YAML rewriter configuration.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, ErrConfigNotFound
		}
		return Config{}, fmt.Errorf("read rewrite config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse rewrite config %s: %w", path, err)
	}
	return cfg, nil
}

// withDefaults fills empty fields.
func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	c.TargetOrigin = strings.TrimRight(c.TargetOrigin, "/")
	return c
}
