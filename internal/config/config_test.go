package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `llm:
  base_url: "http://localhost:8080/v1"
  api_key: "test-key"
  model: "test-model"
  temperature: 0.5
  max_output_tokens: 1024

workspace:
  root: "/tmp/workspace"
  denied_paths:
    - ".git"
    - "secrets"

agent:
  max_tool_iterations: 5

tools:
  shell:
    enabled: true
    allowed_commands:
      - "go"
      - "git"
  read:
    enabled: true
  edit:
    enabled: true
    mode: "replace"
    allow_fuzzy: true
    fuzzy_threshold: 0.9
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LLM.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("LLM.BaseURL = %q, want %q", cfg.LLM.BaseURL, "http://localhost:8080/v1")
	}
	if cfg.LLM.Model != "test-model" {
		t.Errorf("LLM.Model = %q, want %q", cfg.LLM.Model, "test-model")
	}
	if cfg.LLM.MaxTokens != 1024 {
		t.Errorf("LLM.MaxTokens = %d, want %d", cfg.LLM.MaxTokens, 1024)
	}

	if cfg.Workspace.Root != "/tmp/workspace" {
		t.Errorf("Workspace.Root = %q, want %q", cfg.Workspace.Root, "/tmp/workspace")
	}

	if cfg.Agent.MaxIterations != 5 {
		t.Errorf("Agent.MaxIterations = %d, want %d", cfg.Agent.MaxIterations, 5)
	}

	if !cfg.Tools.Shell.Enabled {
		t.Error("Tools.Shell.Enabled = false, want true")
	}
	if len(cfg.Tools.Shell.AllowedCommands) != 2 {
		t.Errorf("Tools.Shell.AllowedCommands = %v, want 2 entries", cfg.Tools.Shell.AllowedCommands)
	}
	if cfg.Tools.Edit.Mode != "replace" {
		t.Errorf("Tools.Edit.Mode = %q, want %q", cfg.Tools.Edit.Mode, "replace")
	}
	if !cfg.Tools.Edit.AllowFuzzy {
		t.Error("Tools.Edit.AllowFuzzy = false, want true")
	}
	if cfg.Tools.Edit.FuzzyThreshold != 0.9 {
		t.Errorf("Tools.Edit.FuzzyThreshold = %f, want 0.9", cfg.Tools.Edit.FuzzyThreshold)
	}
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "minimal.yaml")

	if err := os.WriteFile(configPath, []byte("llm:\n  model: m\n"), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Tools.Read.MaxFileSizeKB != 128 {
		t.Errorf("Read.MaxFileSizeKB = %d, want 128", cfg.Tools.Read.MaxFileSizeKB)
	}
	if cfg.Tools.Edit.MaxFileSizeKB != 128 {
		t.Errorf("Edit.MaxFileSizeKB = %d, want 128", cfg.Tools.Edit.MaxFileSizeKB)
	}
	if cfg.Tools.Shell.TimeoutSeconds != 120 {
		t.Errorf("Shell.TimeoutSeconds = %d, want 120", cfg.Tools.Shell.TimeoutSeconds)
	}
	if cfg.Agent.MaxIterations != 40 {
		t.Errorf("Agent.MaxIterations = %d, want 40", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.SubAgents != 1 {
		t.Errorf("Agent.SubAgents = %d, want 1", cfg.Agent.SubAgents)
	}
	if cfg.Session.Dir != filepath.Join(".stitch", "sessions") {
		t.Errorf("Session.Dir = %q, want default", cfg.Session.Dir)
	}
}

func TestLoadAPIKeyEnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "env.yaml")

	configContent := `llm:
  api_key: "file-key"
  api_key_env: "STITCH_TEST_API_KEY"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}

	t.Setenv("STITCH_TEST_API_KEY", "env-key")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("LLM.APIKey = %q, want %q", cfg.LLM.APIKey, "env-key")
	}
}

func TestResolveMode(t *testing.T) {
	tests := []struct {
		name   string
		mode   string
		envVal string
		want   string
	}{
		{"default when empty", "", "", "patch"},
		{"config replace", "replace", "", "replace"},
		{"config patch", "patch", "", "patch"},
		{"env wins over config", "patch", "replace", "replace"},
		{"unknown falls back", "lines", "", "patch"},
		{"unknown env falls back", "replace", "bogus", "patch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(editModeEnv, tt.envVal)
			e := &EditToolConfig{Mode: tt.mode}
			if got := e.ResolveMode(); got != tt.want {
				t.Errorf("ResolveMode() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsPathDenied(t *testing.T) {
	cfg := &Config{}
	cfg.Workspace.DeniedPaths = []string{".git", "secrets/"}

	tests := []struct {
		path string
		want bool
	}{
		{".git", true},
		{".git/config", true},
		{"secrets/key.pem", true},
		{"./secrets", true},
		{"src/main.go", false},
		{".gitignore", false},
	}

	for _, tt := range tests {
		if got := cfg.IsPathDenied(tt.path); got != tt.want {
			t.Errorf("IsPathDenied(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
