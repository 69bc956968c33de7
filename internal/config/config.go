package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// editModeEnv overrides tools.edit.mode when set ("replace" or "patch").
const editModeEnv = "STITCH_EDIT_MODE"

type Config struct {
	LLM struct {
		BaseURL     string  `yaml:"base_url"`
		APIKey      string  `yaml:"api_key"`
		APIKeyEnv   string  `yaml:"api_key_env"`
		Model       string  `yaml:"model"`
		Temperature float32 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_output_tokens"`
		Verbose     int     `yaml:"verbose"` // 0 = off, >0 = show tool output up to N lines
	} `yaml:"llm"`

	Workspace struct {
		Root        string   `yaml:"root"`
		DeniedPaths []string `yaml:"denied_paths"`
	} `yaml:"workspace"`

	Agent struct {
		MaxIterations int    `yaml:"max_tool_iterations"`
		LogFile       string `yaml:"log_file"`
		SubAgents     int    `yaml:"sub_agents"` // parallel sub-agent workers (default: 1)
	} `yaml:"agent"`

	Session struct {
		Dir string `yaml:"dir"` // session transcripts (default: .stitch/sessions)
	} `yaml:"session"`

	Tools ToolsConfig `yaml:"tools"`
}

// ToolsConfig holds per-tool configuration with explicit enable/disable
type ToolsConfig struct {
	Read  ReadToolConfig  `yaml:"read"`
	Edit  EditToolConfig  `yaml:"edit"`
	Shell ShellToolConfig `yaml:"shell"`
}

// ReadToolConfig configures the read tool
type ReadToolConfig struct {
	Enabled         bool `yaml:"enabled"`
	MaxFileSizeKB   int  `yaml:"max_file_size_kb"`
	MaxPartialLines int  `yaml:"max_partial_lines"`
}

// EditToolConfig configures the edit tool
type EditToolConfig struct {
	Enabled             bool    `yaml:"enabled"`
	Mode                string  `yaml:"mode"`            // "patch" (default) or "replace"
	MaxFileSizeKB       int     `yaml:"max_file_size_kb"`
	AllowFuzzy          bool    `yaml:"allow_fuzzy"`     // permit near matches when exact context fails
	FuzzyThreshold      float64 `yaml:"fuzzy_threshold"` // 0 = engine default
	AllowMissingContext bool    `yaml:"allow_missing_context"`
}

// ShellToolConfig configures the shell tool
type ShellToolConfig struct {
	Enabled            bool     `yaml:"enabled"`
	TimeoutSeconds     int      `yaml:"timeout_seconds"`     // per-command wall clock limit (default: 120)
	MaxOutputKB        int      `yaml:"max_output_kb"`       // truncate combined output above this (default: 48)
	AllowedCommands    []string `yaml:"allowed_commands"`    // allowlist (empty = allow all)
	DisallowedCommands []string `yaml:"disallowed_commands"` // blocklist (checked after allowlist)
}

// ResolveMode returns the effective edit mode. The environment variable
// wins over the config file; anything unrecognized falls back to "patch".
func (e *EditToolConfig) ResolveMode() string {
	mode := os.Getenv(editModeEnv)
	if mode == "" {
		mode = e.Mode
	}
	switch mode {
	case "replace", "patch":
		return mode
	}
	return "patch"
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Apply environment overrides
	if cfg.LLM.APIKeyEnv != "" {
		if key := os.Getenv(cfg.LLM.APIKeyEnv); key != "" {
			cfg.LLM.APIKey = key
		}
	}

	// Convert workspace root to absolute path
	if cfg.Workspace.Root != "" {
		absRoot, err := filepath.Abs(cfg.Workspace.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
		}
		cfg.Workspace.Root = absRoot
	}

	// Set default limits for the read tool
	if cfg.Tools.Read.MaxFileSizeKB == 0 {
		cfg.Tools.Read.MaxFileSizeKB = 128
	}
	if cfg.Tools.Read.MaxPartialLines == 0 {
		cfg.Tools.Read.MaxPartialLines = 150
	}

	// Set default limits for the edit tool
	if cfg.Tools.Edit.MaxFileSizeKB == 0 {
		cfg.Tools.Edit.MaxFileSizeKB = 128
	}

	// Set default limits for the shell tool
	if cfg.Tools.Shell.TimeoutSeconds == 0 {
		cfg.Tools.Shell.TimeoutSeconds = 120
	}
	if cfg.Tools.Shell.MaxOutputKB == 0 {
		cfg.Tools.Shell.MaxOutputKB = 48
	}

	// Set default agent settings
	if cfg.Agent.MaxIterations == 0 {
		cfg.Agent.MaxIterations = 40
	}
	if cfg.Agent.SubAgents == 0 {
		cfg.Agent.SubAgents = 1
	}

	if cfg.Session.Dir == "" {
		cfg.Session.Dir = filepath.Join(".stitch", "sessions")
	}

	return &cfg, nil
}

// IsToolEnabled returns true if the tool is enabled in config
func (c *Config) IsToolEnabled(toolName string) bool {
	switch toolName {
	case "read":
		return c.Tools.Read.Enabled
	case "edit":
		return c.Tools.Edit.Enabled
	case "shell":
		return c.Tools.Shell.Enabled
	default:
		return false
	}
}

// IsPathDenied reports whether path falls under one of the configured
// denied prefixes. Paths are compared after Clean so "./secrets/" and
// "secrets" match the same subtree.
func (c *Config) IsPathDenied(path string) bool {
	cleaned := filepath.Clean(path)
	for _, denied := range c.Workspace.DeniedPaths {
		d := filepath.Clean(denied)
		if cleaned == d || strings.HasPrefix(cleaned, d+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
