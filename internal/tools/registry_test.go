package tools

import (
	"strings"
	"testing"
)

func TestRegistry_EnableAndSpecs(t *testing.T) {
	root := t.TempDir()
	cfg := newTestConfig(root)

	registry := NewRegistry()
	registry.Enable(NewReadFileTool(cfg))
	registry.Enable(NewPatchEditTool(cfg))
	registry.Enable(NewShellTool(cfg))

	if !registry.IsEnabled("Edit") {
		t.Error("Edit not enabled")
	}
	if registry.Get("Read") == nil {
		t.Error("Get(Read) = nil")
	}

	specs := registry.Specs()
	if len(specs) != 3 {
		t.Fatalf("Specs() = %d entries, want 3", len(specs))
	}
	// Sorted for deterministic prompt caching
	if specs[0].Function.Name != "Edit" || specs[1].Function.Name != "Read" || specs[2].Function.Name != "Shell" {
		t.Errorf("spec order = %s, %s, %s", specs[0].Function.Name, specs[1].Function.Name, specs[2].Function.Name)
	}
}

func TestRegistry_GenerateToolPrompt(t *testing.T) {
	root := t.TempDir()
	cfg := newTestConfig(root)

	registry := NewRegistry()
	registry.Enable(NewReadFileTool(cfg))
	registry.Enable(NewShellTool(cfg))

	prompt := registry.GenerateToolPrompt()
	fileIdx := strings.Index(prompt, "## File Tools Reference")
	shellIdx := strings.Index(prompt, "## Shell Tool")
	if fileIdx == -1 || shellIdx == -1 {
		t.Fatalf("prompt missing category headers:\n%s", prompt)
	}
	if fileIdx > shellIdx {
		t.Error("filesystem section should precede shell section")
	}
}

func TestSetupRegistry_ModeSelection(t *testing.T) {
	root := t.TempDir()

	t.Run("patch default", func(t *testing.T) {
		cfg := newTestConfig(root)
		registry := SetupRegistry(SetupConfig{Cfg: cfg})
		if _, ok := registry.Get("Edit").(*PatchEditTool); !ok {
			t.Errorf("Edit tool = %T, want *PatchEditTool", registry.Get("Edit"))
		}
	})

	t.Run("replace mode", func(t *testing.T) {
		cfg := newTestConfig(root)
		cfg.Tools.Edit.Mode = "replace"
		registry := SetupRegistry(SetupConfig{Cfg: cfg})
		if _, ok := registry.Get("Edit").(*ReplaceEditTool); !ok {
			t.Errorf("Edit tool = %T, want *ReplaceEditTool", registry.Get("Edit"))
		}
	})

	t.Run("disabled tools absent", func(t *testing.T) {
		cfg := newTestConfig(root)
		cfg.Tools.Shell.Enabled = false
		registry := SetupRegistry(SetupConfig{Cfg: cfg})
		if registry.IsEnabled("Shell") {
			t.Error("Shell enabled despite config")
		}
	})
}

func TestNormalizeAndValidatePath(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name        string
		path        string
		wantOutside bool
	}{
		{"relative inside", "src/main.go", false},
		{"dot", ".", false},
		{"parent escape", "../elsewhere", true},
		{"absolute outside", "/etc/passwd", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, outside, err := NormalizeAndValidatePath(root, tt.path)
			if err != nil {
				t.Fatalf("NormalizeAndValidatePath() error = %v", err)
			}
			if outside != tt.wantOutside {
				t.Errorf("outside = %v, want %v", outside, tt.wantOutside)
			}
		})
	}
}
