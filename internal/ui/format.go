package ui

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// MakePrompt renders white-on-gray prompt text.
func MakePrompt(text string) string {
	return "\033[97;100m" + text + "\033[0m"
}

// FormatToolArgs renders tool arguments for compact single-line display.
func FormatToolArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}

	var parts []string
	for key, val := range args {
		var valStr string
		switch v := val.(type) {
		case string:
			if len(v) > 50 {
				valStr = fmt.Sprintf("%q", v[:47]+"...")
			} else {
				valStr = fmt.Sprintf("%q", v)
			}
		case float64, int, bool:
			valStr = fmt.Sprintf("%v", v)
		default:
			jsonBytes, _ := json.Marshal(v)
			valStr = string(jsonBytes)
		}
		parts = append(parts, fmt.Sprintf("%s=%s", key, valStr))
	}
	return strings.Join(parts, ", ")
}

// FormatShellDisplay renders a shell command with its working directory
// shown relative to the workspace when inside it.
func FormatShellDisplay(cmd, workingDir, workspaceRoot string) string {
	root := workspaceRoot
	if root == "" {
		if cwd, err := os.Getwd(); err == nil {
			root = cwd
		}
	}
	root = filepath.Clean(root)

	resolvedDir := root
	if workingDir != "" {
		wd := workingDir
		if strings.HasPrefix(wd, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				wd = filepath.Join(home, wd[2:])
			}
		}
		if filepath.IsAbs(wd) {
			resolvedDir = wd
		} else {
			resolvedDir = filepath.Join(root, wd)
		}
		resolvedDir = filepath.Clean(resolvedDir)
	}

	if rel, err := filepath.Rel(root, resolvedDir); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		return fmt.Sprintf("%s@%s", cmd, rel)
	}
	if resolvedDir != "" && resolvedDir != root {
		return fmt.Sprintf("%s@%s", cmd, resolvedDir)
	}
	return cmd
}

// FormatDuration formats a duration compactly, omitting zero components.
func FormatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, " ")
}

// FormatChars renders a character count like "1.5k".
func FormatChars(chars int) string {
	if chars < 1000 {
		return fmt.Sprintf("%d", chars)
	}
	k := float64(chars) / 1000.0
	if k < 10 {
		return fmt.Sprintf("%.1fk", k)
	}
	return fmt.Sprintf("%.0fk", k)
}

// GetResultSummary extracts a one-line summary from a tool result map.
func GetResultSummary(result any) string {
	if resultMap, ok := result.(map[string]any); ok {
		if success, ok := resultMap["success"].(bool); ok && !success {
			if errMsg, ok := resultMap["error"].(string); ok {
				return fmt.Sprintf("failed: %s", firstLine(errMsg))
			}
			return "failed"
		}

		// Edit results: replacement count or patched op.
		if replacements, ok := intValue(resultMap["replacements"]); ok {
			if replacements == 1 {
				return "1 replacement"
			}
			return fmt.Sprintf("%d replacements", replacements)
		}
		if op, ok := resultMap["op"].(string); ok {
			if path, ok := resultMap["path"].(string); ok {
				return fmt.Sprintf("%s %s", op, path)
			}
			return op
		}

		// Read results.
		if linesRead, ok := intValue(resultMap["lines_read"]); ok {
			if content, ok := resultMap["content"].(string); ok {
				return fmt.Sprintf("%d lines, %s chars", linesRead, FormatChars(len(content)))
			}
			return fmt.Sprintf("%d lines", linesRead)
		}

		if content, ok := resultMap["content"].(string); ok {
			return sizeSummary(content)
		}

		// Shell results.
		if stdout, ok := resultMap["stdout"].(string); ok {
			if stdout == "" {
				return "empty output"
			}
			return sizeSummary(stdout)
		}

		if count, ok := intValue(resultMap["count"]); ok {
			return fmt.Sprintf("%d items", count)
		}
	}

	jsonBytes, _ := json.MarshalIndent(result, "", "  ")
	return sizeSummary(string(jsonBytes))
}

func sizeSummary(s string) string {
	lineCount := strings.Count(s, "\n")
	if lineCount == 0 && len(s) > 0 {
		lineCount = 1
	}
	return fmt.Sprintf("%d lines, %s chars", lineCount, FormatChars(len(s)))
}

func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}

func firstLine(s string) string {
	if idx := strings.Index(s, "\n"); idx != -1 {
		return s[:idx]
	}
	return s
}

// FormatContextStr renders token usage for display, e.g. "12.3k/128k".
func FormatContextStr(totalTokens, contextLimit int) string {
	if totalTokens <= 0 {
		return "0k"
	}
	tokensK := float64(totalTokens) / 1000.0
	if contextLimit > 0 {
		return fmt.Sprintf("%.1fk/%.0fk", tokensK, float64(contextLimit)/1000.0)
	}
	return fmt.Sprintf("%.1fk", tokensK)
}
