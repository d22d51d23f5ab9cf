package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Config represents the wikibridge configuration
type Config struct {
	// DocsDir is the root of the local Markdown tree.
	DocsDir string `json:"docs_dir"`

	// BaseURL is the wiki base URL, e.g. https://example.atlassian.net.
	BaseURL string `json:"base_url"`

	// SpaceKey identifies the wiki space documents sync into.
	SpaceKey string `json:"space_key"`

	// RootPageID is the remote page all synced content nests under.
	RootPageID string `json:"root_page_id"`

	// DocRootPrefixes are path prefixes stripped from absolute link tokens,
	// e.g. "docs" so "/docs/guide" resolves to "guide.md".
	DocRootPrefixes []string `json:"doc_root_prefixes,omitempty"`

	// DiagramLanguages are fence language tags rendered to images.
	DiagramLanguages []string `json:"diagram_languages,omitempty"`

	// Concurrency bounds the per-document worker pool.
	Concurrency int `json:"concurrency,omitempty"`

	// RendererURL is a Kroki-compatible diagram rendering service.
	RendererURL string `json:"renderer_url,omitempty"`

	// DiagramFormat is the image format diagrams render to, "png" or "svg".
	DiagramFormat string `json:"diagram_format,omitempty"`

	LogFile         string        `json:"log_file"`
	Interval        time.Duration `json:"-"` // Custom JSON handling below
	ExcludePatterns []string      `json:"exclude_patterns,omitempty"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DocsDir:          filepath.Join(home, "docs"),
		DocRootPrefixes:  []string{"docs"},
		DiagramLanguages: []string{"mermaid", "plantuml", "graphviz", "d2"},
		Concurrency:      4,
		RendererURL:      "https://kroki.io",
		DiagramFormat:    "png",
		LogFile:          "/tmp/wikibridge.log",
		Interval:         5 * time.Minute,
		ExcludePatterns:  []string{},
	}
}

// ConfigPath returns the path to the config file
// Uses ~/.config on all platforms for consistency
// Can be overridden for testing
var ConfigPath = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to XDG if home dir unavailable
		return filepath.Join(xdg.ConfigHome, "wikibridge", "config.json")
	}
	return filepath.Join(home, ".config", "wikibridge", "config.json")
}

// StateFilePath returns the path to the sync ledger
// Uses platform-specific XDG data directory
// Can be overridden for testing
var StateFilePath = func() string {
	return filepath.Join(xdg.DataHome, "wikibridge", "state.json")
}

// LegacyStateFilePath is the pre-XDG ledger location, migrated once at
// startup before the store initializes.
var LegacyStateFilePath = func() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".wikibridge", "state.json")
}

// Load reads configuration from the XDG config directory
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads configuration from an explicit path
func LoadFrom(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		// Return default config if file doesn't exist
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	// Use custom struct for JSON parsing to handle duration as string
	var raw struct {
		DocsDir          string   `json:"docs_dir"`
		BaseURL          string   `json:"base_url"`
		SpaceKey         string   `json:"space_key"`
		RootPageID       string   `json:"root_page_id"`
		DocRootPrefixes  []string `json:"doc_root_prefixes"`
		DiagramLanguages []string `json:"diagram_languages"`
		Concurrency      int      `json:"concurrency"`
		RendererURL      string   `json:"renderer_url"`
		DiagramFormat    string   `json:"diagram_format"`
		LogFile          string   `json:"log_file"`
		Interval         string   `json:"interval"`
		ExcludePatterns  []string `json:"exclude_patterns"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	defaults := DefaultConfig()

	interval := defaults.Interval
	if raw.Interval != "" {
		interval, err = time.ParseDuration(raw.Interval)
		if err != nil {
			return nil, fmt.Errorf("invalid interval format '%s': %w", raw.Interval, err)
		}
	}

	if raw.DocRootPrefixes == nil {
		raw.DocRootPrefixes = defaults.DocRootPrefixes
	}
	if raw.DiagramLanguages == nil {
		raw.DiagramLanguages = defaults.DiagramLanguages
	}
	if raw.Concurrency == 0 {
		raw.Concurrency = defaults.Concurrency
	}
	if raw.RendererURL == "" {
		raw.RendererURL = defaults.RendererURL
	}
	if raw.DiagramFormat == "" {
		raw.DiagramFormat = defaults.DiagramFormat
	}
	if raw.LogFile == "" {
		raw.LogFile = defaults.LogFile
	}
	if raw.ExcludePatterns == nil {
		raw.ExcludePatterns = []string{}
	}

	cfg := &Config{
		DocsDir:          raw.DocsDir,
		BaseURL:          raw.BaseURL,
		SpaceKey:         raw.SpaceKey,
		RootPageID:       raw.RootPageID,
		DocRootPrefixes:  raw.DocRootPrefixes,
		DiagramLanguages: raw.DiagramLanguages,
		Concurrency:      raw.Concurrency,
		RendererURL:      raw.RendererURL,
		DiagramFormat:    raw.DiagramFormat,
		LogFile:          raw.LogFile,
		Interval:         interval,
		ExcludePatterns:  raw.ExcludePatterns,
	}

	// Validate config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Expand paths
	if err := cfg.ExpandPaths(); err != nil {
		return nil, fmt.Errorf("failed to expand paths: %w", err)
	}

	return cfg, nil
}

// Save writes configuration to the XDG config directory
func (c *Config) Save() error {
	configPath := ConfigPath()
	configDir := filepath.Dir(configPath)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Use custom struct for JSON to handle duration as string
	raw := struct {
		DocsDir          string   `json:"docs_dir"`
		BaseURL          string   `json:"base_url"`
		SpaceKey         string   `json:"space_key"`
		RootPageID       string   `json:"root_page_id"`
		DocRootPrefixes  []string `json:"doc_root_prefixes,omitempty"`
		DiagramLanguages []string `json:"diagram_languages,omitempty"`
		Concurrency      int      `json:"concurrency,omitempty"`
		RendererURL      string   `json:"renderer_url,omitempty"`
		DiagramFormat    string   `json:"diagram_format,omitempty"`
		LogFile          string   `json:"log_file"`
		Interval         string   `json:"interval"`
		ExcludePatterns  []string `json:"exclude_patterns,omitempty"`
	}{
		DocsDir:          c.DocsDir,
		BaseURL:          c.BaseURL,
		SpaceKey:         c.SpaceKey,
		RootPageID:       c.RootPageID,
		DocRootPrefixes:  c.DocRootPrefixes,
		DiagramLanguages: c.DiagramLanguages,
		Concurrency:      c.Concurrency,
		RendererURL:      c.RendererURL,
		DiagramFormat:    c.DiagramFormat,
		LogFile:          c.LogFile,
		Interval:         c.Interval.String(),
		ExcludePatterns:  c.ExcludePatterns,
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DocsDir == "" {
		return fmt.Errorf("docs_dir cannot be empty")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url cannot be empty")
	}
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("base_url must be an http(s) URL, got '%s'", c.BaseURL)
	}
	if c.SpaceKey == "" {
		return fmt.Errorf("space_key cannot be empty")
	}
	if c.RootPageID == "" {
		return fmt.Errorf("root_page_id cannot be empty")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive")
	}
	if c.DiagramFormat != "" && c.DiagramFormat != "png" && c.DiagramFormat != "svg" {
		return fmt.Errorf("diagram_format must be 'png' or 'svg', got '%s'", c.DiagramFormat)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	return nil
}

// ExpandPaths expands any ~ or relative paths to absolute paths
func (c *Config) ExpandPaths() error {
	var err error

	c.DocsDir, err = expandPath(c.DocsDir)
	if err != nil {
		return fmt.Errorf("failed to expand docs_dir: %w", err)
	}

	c.LogFile, err = expandPath(c.LogFile)
	if err != nil {
		return fmt.Errorf("failed to expand log_file: %w", err)
	}

	return nil
}

// expandPath expands ~ to home directory and converts to absolute path
func expandPath(path string) (string, error) {
	if path == "" {
		return path, nil
	}

	// Expand ~ to home directory
	if path[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if len(path) == 1 {
			return homeDir, nil
		}
		path = filepath.Join(homeDir, path[1:])
	}

	// Convert to absolute path
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	return absPath, nil
}
