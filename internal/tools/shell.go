package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/stitchagent/stitch/internal/config"
)

// ShellTool executes shell commands in the workspace
type ShellTool struct {
	cfg           *config.Config
	workspaceRoot string
}

func NewShellTool(cfg *config.Config) *ShellTool {
	return &ShellTool{
		cfg:           cfg,
		workspaceRoot: cfg.Workspace.Root,
	}
}

func (t *ShellTool) Name() string {
	return "Shell"
}

func (t *ShellTool) Description() string {
	return "Execute a shell command in the workspace. Supports working_dir and timeout options."
}

func (t *ShellTool) JSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{
				"type":        "string",
				"description": "The shell command to execute",
			},
			"working_dir": map[string]any{
				"type":        "string",
				"description": "Working directory (relative to workspace root or absolute)",
			},
			"timeout": map[string]any{
				"type":        "integer",
				"description": "Timeout in seconds (capped by config)",
			},
		},
		"required": []string{"command"},
	}
}

func (t *ShellTool) PromptCategory() string { return "shell" }
func (t *ShellTool) PromptOrder() int       { return 10 }
func (t *ShellTool) PromptSection() string {
	var warnings []string
	if t.cfg.Tools.Read.Enabled {
		warnings = append(warnings, "Do NOT use cat/head/tail - use Read tool")
	}
	if t.cfg.Tools.Edit.Enabled {
		warnings = append(warnings, "Do NOT use sed/awk - use Edit tool")
	}
	var warningLine string
	if len(warnings) > 0 {
		warningLine = "\n\n" + strings.Join(warnings, ". ") + "."
	}

	return fmt.Sprintf(`### Shell - Execute Shell Commands

Shell({"command": "pytest -q"})

Examples: "go build ./...", "npm test", "git status", "ls -la"

Runs in workspace root (%s). Pass working_dir to run elsewhere.%s`, t.workspaceRoot, warningLine)
}

type shellArgs struct {
	Command    string `json:"command"`
	WorkingDir string `json:"working_dir,omitempty"`
	Timeout    int    `json:"timeout,omitempty"`
}

func (t *ShellTool) Check(ctx context.Context, args json.RawMessage) error {
	var params shellArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return SemanticErrorf("invalid arguments: %v", err)
	}
	if strings.TrimSpace(params.Command) == "" {
		return SemanticError("command is required")
	}
	return t.validateCommand(params.Command)
}

func (t *ShellTool) Call(ctx context.Context, args json.RawMessage) (any, error) {
	var params shellArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, SemanticErrorf("invalid arguments: %v", err)
	}

	workDir := t.workspaceRoot
	if params.WorkingDir != "" {
		resolved, err := t.validateWorkingDir(params.WorkingDir)
		if err != nil {
			return nil, SemanticErrorf("invalid working_dir: %v", err)
		}
		workDir = resolved
	}

	maxTimeout := time.Duration(t.cfg.Tools.Shell.TimeoutSeconds) * time.Second
	timeout := maxTimeout
	if params.Timeout > 0 {
		timeout = time.Duration(params.Timeout) * time.Second
		if timeout > maxTimeout {
			timeout = maxTimeout
		}
	}

	return t.executeCommand(ctx, params.Command, workDir, timeout)
}

// cappedBuffer collects combined output up to a byte limit, dropping the rest
// so runaway commands cannot flood the conversation.
type cappedBuffer struct {
	mu      sync.Mutex
	buf     bytes.Buffer
	limit   int
	dropped int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room := b.limit - b.buf.Len()
	if room <= 0 {
		b.dropped += len(p)
		return len(p), nil
	}
	if len(p) > room {
		b.dropped += len(p) - room
		b.buf.Write(p[:room])
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() (string, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String(), b.dropped
}

func (t *ShellTool) executeCommand(ctx context.Context, command, workDir string, timeout time.Duration) (any, error) {
	output := &cappedBuffer{limit: t.cfg.Tools.Shell.MaxOutputKB * 1024}

	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = workDir
	cmd.Stdout = output
	cmd.Stderr = output
	// New process group so children die with the parent on timeout
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, RuntimeErrorf("failed to start command: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var timedOut bool
	var cmdErr error

	select {
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-done
		timedOut = true
	case <-timer.C:
		killProcessGroup(cmd)
		<-done
		timedOut = true
	case cmdErr = <-done:
	}

	text, dropped := output.String()
	if timedOut {
		return map[string]any{
			"stdout":    text,
			"exit_code": -1,
			"error":     "timeout",
			"hint":      fmt.Sprintf("Command killed after %ds. Pass a larger timeout or run a narrower command.", int(timeout.Seconds())),
		}, nil
	}

	exitCode := 0
	if cmdErr != nil {
		if exitErr, ok := cmdErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, RuntimeErrorf("execution failed: %v", cmdErr)
		}
	}

	result := map[string]any{
		"stdout":    text,
		"exit_code": exitCode,
	}
	if dropped > 0 {
		result["truncated_bytes"] = dropped
		result["hint"] = "Output truncated. Re-run with a filter (grep, head) to see the relevant part."
	}
	return result, nil
}

// killProcessGroup kills the entire process group of the command
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err == nil {
		syscall.Kill(-pgid, syscall.SIGKILL)
	} else {
		cmd.Process.Kill()
	}
}

// validateCommand rejects obviously destructive commands and applies the
// configured allow/deny lists.
func (t *ShellTool) validateCommand(cmd string) error {
	cmdLower := strings.ToLower(cmd)

	blocked := []string{
		"sudo ", "sudo\t",
		"rm -rf /", "rm -rf ~",
		"shutdown", "reboot",
		"mkfs", "dd if=",
	}
	for _, danger := range blocked {
		if strings.Contains(cmdLower, danger) {
			return SemanticErrorf("blocked dangerous command containing '%s'", strings.TrimSpace(danger))
		}
	}

	// Steer edits to the Edit tool when it is available
	if t.cfg.Tools.Edit.Enabled && strings.Contains(cmdLower, "sed -i") {
		return SemanticError("do not edit files through Shell - use the Edit tool")
	}

	if allowed := t.cfg.Tools.Shell.AllowedCommands; len(allowed) > 0 {
		ok := false
		for _, prefix := range allowed {
			if strings.HasPrefix(cmd, prefix) {
				ok = true
				break
			}
		}
		if !ok {
			return SemanticErrorf("command not in allowlist: %s", cmd)
		}
	}

	for _, prefix := range t.cfg.Tools.Shell.DisallowedCommands {
		if strings.HasPrefix(cmd, prefix) {
			return SemanticErrorf("command in blocklist: %s", prefix)
		}
	}

	return nil
}

// validateWorkingDir validates and resolves a working directory path
func (t *ShellTool) validateWorkingDir(dir string) (string, error) {
	absDir, outside, err := NormalizeAndValidatePath(t.workspaceRoot, dir)
	if err != nil {
		return "", err
	}
	if outside {
		return "", fmt.Errorf("working_dir is outside the workspace: %s", absDir)
	}

	info, err := os.Stat(absDir)
	if err != nil {
		return "", fmt.Errorf("directory does not exist: %s", absDir)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", absDir)
	}
	return absDir, nil
}
