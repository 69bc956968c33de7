package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/stitchagent/stitch/internal/config"
)

// maxDirEntries caps directory listings in read results.
const maxDirEntries = 50

// ReadFileTool reads file contents or lists directories
type ReadFileTool struct {
	cfg           *config.Config
	workspaceRoot string
	maxFileSizeKB int
	maxLines      int
}

func NewReadFileTool(cfg *config.Config) *ReadFileTool {
	return &ReadFileTool{
		cfg:           cfg,
		workspaceRoot: cfg.Workspace.Root,
		maxFileSizeKB: cfg.Tools.Read.MaxFileSizeKB,
		maxLines:      cfg.Tools.Read.MaxPartialLines,
	}
}

func (t *ReadFileTool) Name() string {
	return "Read"
}

func (t *ReadFileTool) Description() string {
	return "Read file contents with line numbers, or list directory contents when path is a directory. Use start/limit to read large files in chunks."
}

func (t *ReadFileTool) JSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path to file (relative to workspace or absolute)",
			},
			"start": map[string]any{
				"type":        "integer",
				"description": "Starting line, 1-based. Negative counts from the end (-50 = last 50 lines). Default: 1",
			},
			"limit": map[string]any{
				"type":        "integer",
				"description": "Maximum lines to read",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) PromptCategory() string { return "filesystem" }
func (t *ReadFileTool) PromptOrder() int       { return 10 }
func (t *ReadFileTool) PromptSection() string {
	return `### Read - Read Files/Directories

**Usage:** ` + "`" + `Read {"path": "<file or directory>"}` + "`" + `

Examples:
- ` + "`" + `Read {"path": "file.py"}` + "`" + ` - read entire file
- ` + "`" + `Read {"path": "file.py", "start": 10, "limit": 20}` + "`" + ` - read lines 10-29
- ` + "`" + `Read {"path": "file.py", "start": -50}` + "`" + ` - read last 50 lines
- ` + "`" + `Read {"path": "src/"}` + "`" + ` - list directory contents

Line numbers (e.g. '  42│') are display-only prefixes, NOT part of the file.
Always Read a file before editing it.`
}

func (t *ReadFileTool) Check(ctx context.Context, args json.RawMessage) error {
	var params struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return SemanticErrorf("invalid arguments: %v", err)
	}
	if params.Path == "" {
		return SemanticError("path is required")
	}
	if t.cfg.IsPathDenied(params.Path) {
		return SemanticErrorf("access to %s is denied by config", params.Path)
	}
	return nil
}

func (t *ReadFileTool) Call(ctx context.Context, args json.RawMessage) (any, error) {
	var params struct {
		Path  string `json:"path"`
		Start *int   `json:"start"`
		Limit *int   `json:"limit"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, SemanticErrorf("invalid arguments: %v", err)
	}

	fullPath, _, err := NormalizeAndValidatePath(t.workspaceRoot, params.Path)
	if err != nil {
		return nil, SemanticErrorf("invalid path: %v", err)
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			result := map[string]any{
				"success": false,
				"error":   "file_not_found",
				"path":    params.Path,
				"message": fmt.Sprintf("File not found: %s", params.Path),
			}
			if suggestions := findSimilarFiles(t.workspaceRoot, params.Path); len(suggestions) > 0 {
				result["did_you_mean"] = suggestions
			}
			return result, nil
		}
		return nil, WrapAsRuntime(err)
	}

	if info.IsDir() {
		return t.readDirectory(fullPath, params.Path)
	}

	if max := int64(t.maxFileSizeKB) * 1024; info.Size() > max {
		return nil, RuntimeErrorf("file too large to read: %s (%d KB, limit %d KB). Use start/limit on a smaller file or Shell for binary inspection.",
			params.Path, info.Size()/1024, t.maxFileSizeKB)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, WrapAsRuntime(err)
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	totalLines := len(lines)
	if len(data) == 0 {
		totalLines = 0
	}

	if totalLines == 0 {
		return map[string]any{
			"success":     true,
			"path":        params.Path,
			"content":     "",
			"total_lines": 0,
			"hint":        "File is empty.",
		}, nil
	}

	startLine, endLine, err := t.resolveRange(params.Start, params.Limit, totalLines)
	if err != nil {
		return nil, err
	}
	if startLine > totalLines {
		return map[string]any{
			"success":     true,
			"path":        params.Path,
			"content":     "",
			"total_lines": totalLines,
			"hint":        fmt.Sprintf("start=%d is beyond end of file (%d lines).", startLine, totalLines),
		}, nil
	}
	if endLine > totalLines {
		endLine = totalLines
	}

	var sb strings.Builder
	for i := startLine; i <= endLine; i++ {
		fmt.Fprintf(&sb, "%4d│%s\n", i, lines[i-1])
	}

	response := map[string]any{
		"success":         true,
		"path":            params.Path,
		"content":         sb.String(),
		"first_read_line": startLine,
		"last_read_line":  endLine,
		"total_lines":     totalLines,
		"format_note":     "Line numbers (e.g. '  42│') are display-only prefixes - NOT part of file content. Never include them in edits.",
	}
	if endLine < totalLines {
		response["hint"] = fmt.Sprintf("%d more lines available. Read {\"path\": %q, \"start\": %d} to continue.",
			totalLines-endLine, params.Path, endLine+1)
	}
	return response, nil
}

// resolveRange converts start/limit parameters into a 1-based inclusive line
// range, capped at maxLines.
func (t *ReadFileTool) resolveRange(start, limit *int, totalLines int) (int, int, error) {
	window := t.maxLines
	if limit != nil {
		if *limit <= 0 {
			return 0, 0, SemanticError("limit must be positive")
		}
		if *limit < window {
			window = *limit
		}
	}

	startLine := 1
	if start != nil {
		switch {
		case *start == 0:
			return 0, 0, SemanticError("start cannot be 0 (use 1 for first line, -1 for last line)")
		case *start < 0:
			// Negative start reads the tail of the file.
			n := -*start
			if n > window {
				n = window
			}
			startLine = totalLines - n + 1
			if startLine < 1 {
				startLine = 1
			}
			return startLine, totalLines, nil
		default:
			startLine = *start
		}
	}
	return startLine, startLine + window - 1, nil
}

// readDirectory lists directory contents when read is called on a directory
func (t *ReadFileTool) readDirectory(fullPath, displayPath string) (any, error) {
	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, WrapAsRuntime(err)
	}

	var result []map[string]any
	for _, entry := range entries {
		item := map[string]any{
			"name": entry.Name(),
			"type": "file",
		}
		if entry.IsDir() {
			item["name"] = entry.Name() + "/"
			item["type"] = "dir"
		} else if info, err := entry.Info(); err == nil {
			item["size"] = info.Size()
		}
		result = append(result, item)
	}

	total := len(result)
	shown := total
	if shown > maxDirEntries {
		result = result[:maxDirEntries]
		shown = maxDirEntries
	}

	response := map[string]any{
		"success":       true,
		"path":          displayPath,
		"type":          "directory",
		"entries":       result,
		"shown_entries": shown,
		"total_entries": total,
	}
	if shown < total {
		response["hint"] = fmt.Sprintf("Showing %d of %d entries.", shown, total)
	}
	return response, nil
}

// findSimilarFiles searches the workspace for files with names similar to the
// target, for did-you-mean suggestions on missing files.
func findSimilarFiles(workspaceRoot, targetPath string) []string {
	targetBase := strings.ToLower(filepath.Base(targetPath))
	targetName := strings.TrimSuffix(targetBase, filepath.Ext(targetBase))

	var exact []string
	var partial []string

	filepath.WalkDir(workspaceRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if strings.HasPrefix(name, ".") || name == "node_modules" || name == "__pycache__" {
				if path != workspaceRoot {
					return filepath.SkipDir
				}
			}
			return nil
		}

		base := strings.ToLower(filepath.Base(path))
		if base == targetBase {
			exact = append(exact, path)
			return nil
		}
		name := strings.TrimSuffix(base, filepath.Ext(base))
		if targetName != "" && (strings.Contains(name, targetName) || strings.Contains(targetName, name)) {
			partial = append(partial, path)
		}
		return nil
	})

	results := append(exact, partial...)
	if len(results) > 5 {
		results = results[:5]
	}
	return results
}
