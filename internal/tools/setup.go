package tools

import (
	"fmt"

	"github.com/stitchagent/stitch/internal/config"
	"github.com/stitchagent/stitch/internal/patch"
)

// DebugLogger is an interface for debug logging to avoid import cycles
type DebugLogger interface {
	Debug(msg string)
}

// SetupConfig contains the dependencies needed to set up the tool registry
type SetupConfig struct {
	Cfg          *config.Config
	Logger       DebugLogger        // Optional debug logger (can be nil)
	Writethrough patch.Writethrough // Optional post-write hook for edit tools (can be nil)
}

// SetupRegistry creates and configures the tool registry based on config.
// It enables all tools according to the configuration and returns the populated registry.
func SetupRegistry(sc SetupConfig) *Registry {
	registry := NewRegistry()
	cfg := sc.Cfg

	debug := func(msg string) {
		if sc.Logger != nil {
			sc.Logger.Debug(msg)
		}
	}

	if cfg.Tools.Read.Enabled {
		readFileTool := NewReadFileTool(cfg)
		registry.Enable(readFileTool)
		debug(fmt.Sprintf("Enabled tool: %s", readFileTool.Name()))
	}

	if cfg.Tools.Edit.Enabled {
		mode := cfg.Tools.Edit.ResolveMode()
		switch mode {
		case "replace":
			editTool := NewReplaceEditTool(cfg)
			editTool.SetWritethrough(sc.Writethrough)
			registry.Enable(editTool)
			debug(fmt.Sprintf("Enabled tool: %s (mode: replace)", editTool.Name()))
		default:
			editTool := NewPatchEditTool(cfg)
			editTool.SetWritethrough(sc.Writethrough)
			registry.Enable(editTool)
			debug(fmt.Sprintf("Enabled tool: %s (mode: patch)", editTool.Name()))
		}
	}

	if cfg.Tools.Shell.Enabled {
		shellTool := NewShellTool(cfg)
		registry.Enable(shellTool)
		debug(fmt.Sprintf("Enabled tool: %s", shellTool.Name()))
	}

	return registry
}
