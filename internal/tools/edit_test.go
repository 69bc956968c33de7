package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stitchagent/stitch/internal/config"
)

func newTestConfig(root string) *config.Config {
	cfg := &config.Config{}
	cfg.Workspace.Root = root
	cfg.Tools.Read.Enabled = true
	cfg.Tools.Read.MaxFileSizeKB = 128
	cfg.Tools.Read.MaxPartialLines = 150
	cfg.Tools.Edit.Enabled = true
	cfg.Tools.Edit.MaxFileSizeKB = 128
	cfg.Tools.Shell.Enabled = true
	cfg.Tools.Shell.TimeoutSeconds = 30
	cfg.Tools.Shell.MaxOutputKB = 48
	return cfg
}

func writeTestFile(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func readTestFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func callTool(t *testing.T, tool Tool, args map[string]any) (map[string]any, error) {
	t.Helper()
	raw, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	res, err := tool.Call(context.Background(), raw)
	if err != nil {
		return nil, err
	}
	m, ok := res.(map[string]any)
	if !ok {
		t.Fatalf("result type = %T, want map[string]any", res)
	}
	return m, nil
}

func TestReplaceEdit_Simple(t *testing.T) {
	root := t.TempDir()
	path := writeTestFile(t, root, "main.go", "package main\n\nfunc main() {\n\tprintln(\"old\")\n}\n")

	tool := NewReplaceEditTool(newTestConfig(root))
	res, err := callTool(t, tool, map[string]any{
		"path":     "main.go",
		"old_text": "println(\"old\")",
		"new_text": "println(\"new\")",
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	if res["success"] != true {
		t.Errorf("success = %v, want true", res["success"])
	}
	if got := readTestFile(t, path); !strings.Contains(got, "println(\"new\")") {
		t.Errorf("file not updated:\n%s", got)
	}
	diff, _ := res["diff"].(string)
	if !strings.Contains(diff, "-\tprintln(\"old\")") || !strings.Contains(diff, "+\tprintln(\"new\")") {
		t.Errorf("diff missing change markers:\n%s", diff)
	}
	if res["first_changed_line"] != 4 {
		t.Errorf("first_changed_line = %v, want 4", res["first_changed_line"])
	}
}

func TestReplaceEdit_AmbiguousRejected(t *testing.T) {
	root := t.TempDir()
	content := "a = 1\nx = 0\na = 1\ny = 0\na = 1\n"
	path := writeTestFile(t, root, "vars.py", content)

	tool := NewReplaceEditTool(newTestConfig(root))
	_, err := callTool(t, tool, map[string]any{
		"path":     "vars.py",
		"old_text": "a = 1",
		"new_text": "a = 2",
	})
	if err == nil {
		t.Fatal("Call() expected error for ambiguous match")
	}

	te, ok := err.(*ToolError)
	if !ok {
		t.Fatalf("error type = %T, want *ToolError", err)
	}
	if te.Type != ToolErrorSemantic {
		t.Errorf("error type = %v, want semantic", te.Type)
	}
	if te.Details["occurrences"] != 3 {
		t.Errorf("occurrences = %v, want 3", te.Details["occurrences"])
	}
	previews, _ := te.Details["previews"].([]string)
	if len(previews) != 3 {
		t.Errorf("previews = %d, want 3", len(previews))
	}

	if got := readTestFile(t, path); got != content {
		t.Error("file was modified despite rejected edit")
	}
}

func TestReplaceEdit_AllOccurrences(t *testing.T) {
	root := t.TempDir()
	path := writeTestFile(t, root, "vars.py", "a = 1\nx = 0\na = 1\ny = 0\na = 1\n")

	tool := NewReplaceEditTool(newTestConfig(root))
	res, err := callTool(t, tool, map[string]any{
		"path":     "vars.py",
		"old_text": "a = 1",
		"new_text": "a = 2",
		"all":      true,
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	if res["replacements"] != 3 {
		t.Errorf("replacements = %v, want 3", res["replacements"])
	}
	got := readTestFile(t, path)
	if strings.Contains(got, "a = 1") {
		t.Errorf("old text still present:\n%s", got)
	}
	if strings.Count(got, "a = 2") != 3 {
		t.Errorf("replacement count wrong:\n%s", got)
	}
}

func TestReplaceEdit_IdenticalTextsRejected(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "f.txt", "hello\n")

	tool := NewReplaceEditTool(newTestConfig(root))
	_, err := callTool(t, tool, map[string]any{
		"path":     "f.txt",
		"old_text": "hello",
		"new_text": "hello",
	})
	if err == nil || !strings.Contains(err.Error(), "no changes") {
		t.Errorf("error = %v, want no-changes rejection", err)
	}
}

func TestReplaceEdit_ReapplyFails(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "f.txt", "value = old\n")

	tool := NewReplaceEditTool(newTestConfig(root))
	args := map[string]any{
		"path":     "f.txt",
		"old_text": "value = old",
		"new_text": "value = new",
	}
	if _, err := callTool(t, tool, args); err != nil {
		t.Fatalf("first Call() error = %v", err)
	}
	_, err := callTool(t, tool, args)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("second Call() error = %v, want not-found", err)
	}
}

func TestReplaceEdit_FuzzyMatch(t *testing.T) {
	root := t.TempDir()
	path := writeTestFile(t, root, "f.go", "func run() {\n\tdoWork()\n}\n")

	cfg := newTestConfig(root)
	cfg.Tools.Edit.AllowFuzzy = true
	cfg.Tools.Edit.FuzzyThreshold = 0.9

	// Spaces instead of the file's tab
	tool := NewReplaceEditTool(cfg)
	res, err := callTool(t, tool, map[string]any{
		"path":     "f.go",
		"old_text": "    doWork()",
		"new_text": "\tdoMoreWork()",
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	warnings, _ := res["warnings"].([]string)
	if len(warnings) == 0 || !strings.Contains(warnings[0], "fuzzy") {
		t.Errorf("warnings = %v, want fuzzy match warning", warnings)
	}
	if got := readTestFile(t, path); !strings.Contains(got, "doMoreWork()") {
		t.Errorf("file not updated:\n%s", got)
	}
}

func TestReplaceEdit_DeniedPath(t *testing.T) {
	root := t.TempDir()
	cfg := newTestConfig(root)
	cfg.Workspace.DeniedPaths = []string{"secrets"}

	tool := NewReplaceEditTool(cfg)
	args, _ := json.Marshal(map[string]any{
		"path":     "secrets/key.pem",
		"old_text": "a",
		"new_text": "b",
	})
	err := tool.Check(context.Background(), args)
	if err == nil || !strings.Contains(err.Error(), "denied") {
		t.Errorf("Check() error = %v, want denied", err)
	}
}

func TestPatchEdit_Update(t *testing.T) {
	root := t.TempDir()
	path := writeTestFile(t, root, "calc.py", "def add(a, b):\n    return a + b\n\ndef sub(a, b):\n    return a - b\n")

	tool := NewPatchEditTool(newTestConfig(root))
	res, err := callTool(t, tool, map[string]any{
		"path": "calc.py",
		"diff": "@@ def add\n-    return a + b\n+    return a + b + 0\n",
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	if res["op"] != "update" {
		t.Errorf("op = %v, want update", res["op"])
	}
	if got := readTestFile(t, path); !strings.Contains(got, "return a + b + 0") {
		t.Errorf("file not updated:\n%s", got)
	}
	diff, _ := res["diff"].(string)
	if !strings.Contains(diff, "+++ calc.py") {
		t.Errorf("diff missing header:\n%s", diff)
	}
	if res["first_changed_line"] != 2 {
		t.Errorf("first_changed_line = %v, want 2", res["first_changed_line"])
	}
}

func TestPatchEdit_Create(t *testing.T) {
	root := t.TempDir()

	tool := NewPatchEditTool(newTestConfig(root))
	res, err := callTool(t, tool, map[string]any{
		"path": "newdir/hello.txt",
		"op":   "create",
		"diff": "+line one\n+line two\n",
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}

	if res["op"] != "create" {
		t.Errorf("op = %v, want create", res["op"])
	}
	got := readTestFile(t, filepath.Join(root, "newdir", "hello.txt"))
	if got != "line one\nline two\n" {
		t.Errorf("content = %q", got)
	}
}

func TestPatchEdit_Delete(t *testing.T) {
	root := t.TempDir()
	path := writeTestFile(t, root, "gone.txt", "bye\n")

	tool := NewPatchEditTool(newTestConfig(root))
	res, err := callTool(t, tool, map[string]any{
		"path": "gone.txt",
		"op":   "delete",
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if res["op"] != "delete" {
		t.Errorf("op = %v, want delete", res["op"])
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("file still exists after delete")
	}
}

func TestPatchEdit_StaleContextRejected(t *testing.T) {
	root := t.TempDir()
	content := "alpha\nbeta\ngamma\n"
	path := writeTestFile(t, root, "f.txt", content)

	tool := NewPatchEditTool(newTestConfig(root))
	_, err := callTool(t, tool, map[string]any{
		"path": "f.txt",
		"diff": "@@\n alpha\n-betaX\n+delta\n",
	})
	if err == nil {
		t.Fatal("Call() expected error for stale context")
	}
	te, ok := err.(*ToolError)
	if !ok || te.Type != ToolErrorSemantic {
		t.Errorf("error = %v (%T), want semantic ToolError", err, err)
	}
	if got := readTestFile(t, path); got != content {
		t.Error("file was modified despite rejected patch")
	}
}

func TestPatchEdit_MultiFileRejected(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "a.txt", "one\n")

	tool := NewPatchEditTool(newTestConfig(root))
	diff := "*** Update File: a.txt\n-one\n+uno\n*** Update File: b.txt\n-two\n+dos\n"
	_, err := callTool(t, tool, map[string]any{
		"path": "a.txt",
		"diff": diff,
	})
	if err == nil || !strings.Contains(err.Error(), "single file") {
		t.Errorf("error = %v, want single-file violation", err)
	}
}

func TestPatchEdit_Rename(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "old.txt", "keep this\nchange this\n")

	tool := NewPatchEditTool(newTestConfig(root))
	res, err := callTool(t, tool, map[string]any{
		"path":   "old.txt",
		"rename": "new.txt",
		"diff":   "@@\n-change this\n+changed\n",
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if res["renamed_to"] != "new.txt" {
		t.Errorf("renamed_to = %v, want new.txt", res["renamed_to"])
	}

	if _, err := os.Stat(filepath.Join(root, "old.txt")); !os.IsNotExist(err) {
		t.Error("old path still exists after rename")
	}
	got := readTestFile(t, filepath.Join(root, "new.txt"))
	if got != "keep this\nchanged\n" {
		t.Errorf("content = %q", got)
	}
}

func TestPatchEdit_CheckValidation(t *testing.T) {
	root := t.TempDir()
	tool := NewPatchEditTool(newTestConfig(root))

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing path", map[string]any{"diff": "x"}, "path is required"},
		{"unknown op", map[string]any{"path": "f", "op": "truncate", "diff": "x"}, "unknown op"},
		{"missing diff", map[string]any{"path": "f"}, "diff is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, _ := json.Marshal(tt.args)
			err := tool.Check(context.Background(), raw)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Check() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestPatchEdit_WritethroughDiagnostics(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "f.txt", "one\ntwo\n")

	calls := 0
	tool := NewPatchEditTool(newTestConfig(root))
	tool.SetWritethrough(func(ctx context.Context, path, content string) ([]string, error) {
		calls++
		return []string{"syntax ok"}, nil
	})

	res, err := callTool(t, tool, map[string]any{
		"path": "f.txt",
		"diff": "@@\n-two\n+three\n",
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("writethrough calls = %d, want 1", calls)
	}
	warnings, _ := res["warnings"].([]string)
	if len(warnings) != 1 || warnings[0] != "syntax ok" {
		t.Errorf("warnings = %v, want [syntax ok]", warnings)
	}
}
