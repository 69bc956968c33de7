package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/stitchagent/stitch/internal/config"
	"github.com/stitchagent/stitch/internal/patch"
)

// ReplaceEditTool edits files by exact or fuzzy text replacement.
// Enabled when tools.edit.mode is "replace".
type ReplaceEditTool struct {
	cfg           *config.Config
	workspaceRoot string
	writethrough  patch.Writethrough
}

func NewReplaceEditTool(cfg *config.Config) *ReplaceEditTool {
	return &ReplaceEditTool{
		cfg:           cfg,
		workspaceRoot: cfg.Workspace.Root,
	}
}

// SetWritethrough installs a hook invoked once after each successful write.
// Its diagnostics are advisory and surface as warnings in the result.
func (t *ReplaceEditTool) SetWritethrough(wt patch.Writethrough) {
	t.writethrough = wt
}

func (t *ReplaceEditTool) Name() string {
	return "Edit"
}

func (t *ReplaceEditTool) Description() string {
	return "Replace text in a file. old_text must match the file exactly (whitespace-tolerant fuzzy matching kicks in when an exact match fails). Set all=true to replace every occurrence."
}

func (t *ReplaceEditTool) JSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path to file (relative to workspace or absolute)",
			},
			"old_text": map[string]any{
				"type":        "string",
				"description": "Text to find. Must be non-empty and unique in the file unless all=true.",
			},
			"new_text": map[string]any{
				"type":        "string",
				"description": "Replacement text",
			},
			"all": map[string]any{
				"type":        "boolean",
				"description": "Replace all occurrences instead of requiring a unique match",
			},
		},
		"required": []string{"path", "old_text", "new_text"},
	}
}

func (t *ReplaceEditTool) PromptCategory() string { return "filesystem" }
func (t *ReplaceEditTool) PromptOrder() int       { return 20 }
func (t *ReplaceEditTool) PromptSection() string {
	return `### Edit - Replace Text

**Usage:** ` + "`" + `Edit {"path": "<file>", "old_text": "<exact text>", "new_text": "<replacement>"}` + "`" + `

- old_text must match the file content exactly, including indentation
- If old_text occurs more than once the edit is rejected with previews of each occurrence; add more surrounding lines to make it unique, or pass "all": true to replace every occurrence
- The result includes a diff of what changed - review it before editing further`
}

type replaceArgs struct {
	Path    string `json:"path"`
	OldText string `json:"old_text"`
	NewText string `json:"new_text"`
	All     bool   `json:"all"`
}

func (t *ReplaceEditTool) Check(ctx context.Context, args json.RawMessage) error {
	var params replaceArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return SemanticErrorf("invalid arguments: %v", err)
	}
	if params.Path == "" {
		return SemanticError("path is required")
	}
	if params.OldText == "" {
		return SemanticError("old_text must not be empty")
	}
	if t.cfg.IsPathDenied(params.Path) {
		return SemanticErrorf("access to %s is denied by config", params.Path)
	}
	return nil
}

func (t *ReplaceEditTool) Call(ctx context.Context, args json.RawMessage) (any, error) {
	var params replaceArgs
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
			return nil, RuntimeErrorf("file not found: %s", params.Path)
		}
		return nil, WrapAsRuntime(err)
	}
	if max := int64(t.cfg.Tools.Edit.MaxFileSizeKB) * 1024; info.Size() > max {
		return nil, RuntimeErrorf("file too large to edit: %s (%d KB, limit %d KB)",
			params.Path, info.Size()/1024, t.cfg.Tools.Edit.MaxFileSizeKB)
	}

	fs := patch.NewOSFS()
	raw, err := fs.Read(fullPath)
	if err != nil {
		return nil, WrapAsRuntime(err)
	}

	// Match against LF-normalized, BOM-free content; the original encoding is
	// restored byte-for-byte on write.
	stripped, hadBOM := patch.StripBOM(raw)
	ending := patch.DetectLineEnding(stripped)
	content := patch.NormalizeToLF(stripped)
	oldText := patch.NormalizeToLF(params.OldText)
	newText := patch.NormalizeToLF(params.NewText)

	if oldText == newText {
		return nil, SemanticError("old_text and new_text are identical - no changes made")
	}

	outcome := patch.FindMatch(content, strings.Split(oldText, "\n"), patch.MatchOptions{
		AllowFuzzy: t.cfg.Tools.Edit.AllowFuzzy,
		Threshold:  t.cfg.Tools.Edit.FuzzyThreshold,
		ReplaceAll: params.All,
	})

	var warnings []string
	var updated string
	replacements := 1

	switch outcome.Kind {
	case patch.MatchExact:
		if params.All {
			updated = strings.ReplaceAll(content, oldText, newText)
			replacements = outcome.Occurrences
		} else {
			updated = content[:outcome.Start] + newText + content[outcome.End:]
		}
	case patch.MatchFuzzy:
		warnings = append(warnings, fmt.Sprintf("exact match failed; applied fuzzy match (similarity %.2f)", outcome.Similarity))
		updated = content[:outcome.Start] + newText + content[outcome.End:]
	case patch.MatchAmbiguous:
		return nil, SemanticErrorWithDetails(
			fmt.Sprintf("old_text occurs %d times in %s - add surrounding lines to make it unique, or pass \"all\": true", outcome.Occurrences, params.Path),
			map[string]any{
				"occurrences": outcome.Occurrences,
				"previews":    outcome.Previews,
			})
	default:
		msg := fmt.Sprintf("old_text not found in %s", params.Path)
		if outcome.Closest != "" {
			msg += "\nclosest match:\n" + patch.RenderInline(oldText, outcome.Closest)
		}
		return nil, SemanticError(msg)
	}

	if updated == content {
		return nil, SemanticError("edit resulted in no changes")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	final := patch.RestoreBOM(patch.RestoreLineEnding(updated, ending), hadBOM)
	if err := fs.Write(fullPath, final); err != nil {
		return nil, WrapAsRuntime(err)
	}
	if t.writethrough != nil {
		diags, wtErr := t.writethrough(ctx, fullPath, final)
		warnings = append(warnings, diags...)
		if wtErr != nil {
			warnings = append(warnings, fmt.Sprintf("writethrough: %v", wtErr))
		}
	}

	result := map[string]any{
		"success":            true,
		"path":               params.Path,
		"replacements":       replacements,
		"diff":               patch.RenderCompact(content, updated),
		"first_changed_line": patch.FirstChangedLine(content, updated),
	}
	if len(warnings) > 0 {
		result["warnings"] = warnings
	}
	return result, nil
}

// PatchEditTool edits files by applying structured diffs. Enabled when
// tools.edit.mode is "patch" (the default).
type PatchEditTool struct {
	cfg           *config.Config
	workspaceRoot string
	writethrough  patch.Writethrough
}

func NewPatchEditTool(cfg *config.Config) *PatchEditTool {
	return &PatchEditTool{
		cfg:           cfg,
		workspaceRoot: cfg.Workspace.Root,
	}
}

// SetWritethrough installs a hook invoked once after each successful write.
func (t *PatchEditTool) SetWritethrough(wt patch.Writethrough) {
	t.writethrough = wt
}

func (t *PatchEditTool) Name() string {
	return "Edit"
}

func (t *PatchEditTool) Description() string {
	return "Edit a file by applying a diff. Supports create, update, and delete operations; update takes hunks of context and +/- lines, create takes the full file content. One file per call."
}

func (t *PatchEditTool) JSONSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path to file (relative to workspace or absolute)",
			},
			"op": map[string]any{
				"type":        "string",
				"enum":        []string{"create", "update", "delete"},
				"description": "Operation to perform (default: update)",
			},
			"rename": map[string]any{
				"type":        "string",
				"description": "Optional new path; moves the file as part of the edit",
			},
			"diff": map[string]any{
				"type":        "string",
				"description": "Hunks for update (context lines plus +/- lines, @@ markers optional), or the full content for create. Not used for delete.",
			},
		},
		"required": []string{"path"},
	}
}

func (t *PatchEditTool) PromptCategory() string { return "filesystem" }
func (t *PatchEditTool) PromptOrder() int       { return 20 }
func (t *PatchEditTool) PromptSection() string {
	return `### Edit - Apply a Diff

**Usage:** ` + "`" + `Edit {"path": "<file>", "diff": "<hunks>"}` + "`" + `

Update hunks use unchanged context lines plus lines prefixed with - (remove) and + (add):

` + "```" + `
@@ func process():
     for item in items:
-        result = item.old()
+        result = item.new()
` + "```" + `

- ` + "`@@`" + ` markers name the enclosing scope; omit them when the context lines alone are unique
- Context must match the file; a stale hunk is rejected with the closest match shown
- Each call edits exactly ONE file. Use separate calls for separate files
- ` + "`{\"op\": \"create\", \"diff\": \"<content>\"}`" + ` creates a new file; ` + "`{\"op\": \"delete\"}`" + ` removes one
- ` + "`rename`" + ` moves the file while editing it`
}

type patchArgs struct {
	Path   string `json:"path"`
	Op     string `json:"op"`
	Rename string `json:"rename"`
	Diff   string `json:"diff"`
}

func (t *PatchEditTool) Check(ctx context.Context, args json.RawMessage) error {
	var params patchArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return SemanticErrorf("invalid arguments: %v", err)
	}
	if params.Path == "" {
		return SemanticError("path is required")
	}
	switch params.Op {
	case "", "create", "update", "delete":
	default:
		return SemanticErrorf("unknown op %q (expected create, update, or delete)", params.Op)
	}
	if params.Op != "delete" && params.Diff == "" {
		return SemanticError("diff is required for create and update")
	}
	if t.cfg.IsPathDenied(params.Path) {
		return SemanticErrorf("access to %s is denied by config", params.Path)
	}
	if params.Rename != "" && t.cfg.IsPathDenied(params.Rename) {
		return SemanticErrorf("access to %s is denied by config", params.Rename)
	}
	return nil
}

func (t *PatchEditTool) Call(ctx context.Context, args json.RawMessage) (any, error) {
	var params patchArgs
	if err := json.Unmarshal(args, &params); err != nil {
		return nil, SemanticErrorf("invalid arguments: %v", err)
	}

	fullPath, _, err := NormalizeAndValidatePath(t.workspaceRoot, params.Path)
	if err != nil {
		return nil, SemanticErrorf("invalid path: %v", err)
	}
	rename := ""
	if params.Rename != "" {
		rename, _, err = NormalizeAndValidatePath(t.workspaceRoot, params.Rename)
		if err != nil {
			return nil, SemanticErrorf("invalid rename path: %v", err)
		}
	}

	in := patch.PatchInput{
		Path:   fullPath,
		Op:     patch.Operation(params.Op),
		Rename: rename,
		Diff:   params.Diff,
	}
	if params.Op == "" {
		in.Op = patch.OpUpdate
	}

	change, warnings, err := patch.Apply(ctx, in, patch.NewOSFS(), patch.ApplyOptions{
		AllowFuzzy:          t.cfg.Tools.Edit.AllowFuzzy,
		FuzzyThreshold:      t.cfg.Tools.Edit.FuzzyThreshold,
		AllowMissingContext: t.cfg.Tools.Edit.AllowMissingContext,
		Writethrough:        t.writethrough,
	})
	if err != nil {
		return nil, classifyPatchError(err)
	}

	result := map[string]any{
		"success": true,
		"path":    params.Path,
		"op":      string(change.Type),
	}
	if params.Rename != "" {
		result["renamed_to"] = params.Rename
	}
	if change.Type == patch.OpUpdate && change.OldContent != nil && change.NewContent != nil {
		display := params.Path
		if params.Rename != "" {
			display = params.Rename
		}
		diff, firstLine := patch.RenderUnified(*change.OldContent, *change.NewContent, display)
		result["diff"] = diff
		result["first_changed_line"] = firstLine
	}
	if change.Type == patch.OpCreate && change.NewContent != nil {
		result["lines"] = strings.Count(*change.NewContent, "\n") + 1
	}
	if len(warnings) > 0 {
		result["warnings"] = warnings
	}
	return result, nil
}

// classifyPatchError maps engine errors onto the tool error taxonomy. Bad
// hunks and stale context are the model's fault; everything else is runtime.
func classifyPatchError(err error) error {
	var parseErr *patch.ParseError
	if errors.As(err, &parseErr) {
		return SemanticErrorf("malformed diff: %v", parseErr)
	}
	var matchErr *patch.MatchError
	if errors.As(err, &matchErr) {
		details := map[string]any{}
		if matchErr.Occurrences > 0 {
			details["occurrences"] = matchErr.Occurrences
			details["previews"] = matchErr.Previews
		}
		return SemanticErrorWithDetails(err.Error(), details)
	}
	var applyErr *patch.ApplyError
	if errors.As(err, &applyErr) {
		return RuntimeError(applyErr.Error())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return SemanticError(err.Error())
}
