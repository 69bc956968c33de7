package patch

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestApply_Create(t *testing.T) {
	fs := NewMemFS(nil)
	change, _, err := Apply(context.Background(), PatchInput{
		Path: "hello.txt",
		Op:   OpCreate,
		Diff: "hello\nworld\n",
	}, fs, ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if change.Type != OpCreate {
		t.Errorf("Type = %v, want create", change.Type)
	}
	if got := fs.Files["hello.txt"]; got != "hello\nworld\n" {
		t.Errorf("written content = %q", got)
	}
}

func TestApply_CreateStripsAdditionPrefix(t *testing.T) {
	fs := NewMemFS(nil)
	_, _, err := Apply(context.Background(), PatchInput{
		Path: "a.go",
		Op:   OpCreate,
		Diff: "+package a\n+\n+var X = 1",
	}, fs, ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if got := fs.Files["a.go"]; got != "package a\n\nvar X = 1" {
		t.Errorf("written content = %q", got)
	}
}

func TestApply_CreateExistingFails(t *testing.T) {
	fs := NewMemFS(map[string]string{"hello.txt": "old"})
	_, _, err := Apply(context.Background(), PatchInput{
		Path: "hello.txt",
		Op:   OpCreate,
		Diff: "new",
	}, fs, ApplyOptions{})
	if err == nil {
		t.Fatal("Apply() should refuse to overwrite an existing file")
	}
	var ae *ApplyError
	if !errors.As(err, &ae) {
		t.Errorf("error should be *ApplyError, got %T", err)
	}
	if fs.Files["hello.txt"] != "old" {
		t.Error("existing file must not be touched")
	}
}

func TestApply_Delete(t *testing.T) {
	fs := NewMemFS(map[string]string{"gone.txt": "bye"})
	change, _, err := Apply(context.Background(), PatchInput{Path: "gone.txt", Op: OpDelete}, fs, ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if fs.Exists("gone.txt") {
		t.Error("file should be deleted")
	}
	if change.OldContent == nil || *change.OldContent != "bye" {
		t.Error("FileChange should carry the old content")
	}
}

func TestApply_DeleteMissingFails(t *testing.T) {
	fs := NewMemFS(nil)
	if _, _, err := Apply(context.Background(), PatchInput{Path: "nope", Op: OpDelete}, fs, ApplyOptions{}); err == nil {
		t.Fatal("Apply() should fail for a missing file")
	}
}

func TestApply_UpdateMultiHunk(t *testing.T) {
	fs := NewMemFS(map[string]string{"f.txt": "one\ntwo\nthree\nfour\n"})
	change, _, err := Apply(context.Background(), PatchInput{
		Path: "f.txt",
		Op:   OpUpdate,
		Diff: "@@\n-one\n+uno\n@@\n-three\n+tres",
	}, fs, ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	want := "uno\ntwo\ntres\nfour\n"
	if got := fs.Files["f.txt"]; got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
	if change.NewContent == nil || *change.NewContent != want {
		t.Error("FileChange.NewContent mismatch")
	}
}

func TestApply_UpdateNoPartialWrites(t *testing.T) {
	orig := "one\ntwo\nthree\n"
	fs := NewMemFS(map[string]string{"f.txt": orig})
	_, _, err := Apply(context.Background(), PatchInput{
		Path: "f.txt",
		Op:   OpUpdate,
		Diff: "@@\n-one\n+uno\n@@\n-missing\n+nope",
	}, fs, ApplyOptions{})
	if err == nil {
		t.Fatal("Apply() should fail when a later hunk cannot resolve")
	}
	var me *MatchError
	if !errors.As(err, &me) {
		t.Errorf("error should wrap *MatchError, got %T: %v", err, err)
	}
	if fs.Files["f.txt"] != orig {
		t.Error("file must stay untouched after a partial failure")
	}
}

func TestApply_UpdateNoChangesFails(t *testing.T) {
	fs := NewMemFS(map[string]string{"f.txt": "one\ntwo\n"})
	_, _, err := Apply(context.Background(), PatchInput{
		Path: "f.txt",
		Op:   OpUpdate,
		Diff: "@@\n-two\n+two",
	}, fs, ApplyOptions{})
	if err == nil || !strings.Contains(err.Error(), "no changes") {
		t.Fatalf("Apply() should reject a no-op patch, got %v", err)
	}
}

func TestApply_UpdateRename(t *testing.T) {
	fs := NewMemFS(map[string]string{"old.txt": "a\nb\n"})
	change, _, err := Apply(context.Background(), PatchInput{
		Path:   "old.txt",
		Op:     OpUpdate,
		Rename: "new.txt",
		Diff:   "@@\n-a\n+A",
	}, fs, ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if fs.Exists("old.txt") {
		t.Error("old path should be removed after rename")
	}
	if got := fs.Files["new.txt"]; got != "A\nb\n" {
		t.Errorf("renamed content = %q", got)
	}
	if change.NewPath != "new.txt" {
		t.Errorf("NewPath = %q, want new.txt", change.NewPath)
	}
}

func TestApply_UpdatePreservesBOMAndCRLF(t *testing.T) {
	fs := NewMemFS(map[string]string{"f.txt": "\uFEFFone\r\ntwo\r\n"})
	_, _, err := Apply(context.Background(), PatchInput{
		Path: "f.txt",
		Op:   OpUpdate,
		Diff: "@@\n-one\n+uno",
	}, fs, ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if got := fs.Files["f.txt"]; got != "\uFEFFuno\r\ntwo\r\n" {
		t.Errorf("content = %q, BOM or CRLF lost", got)
	}
}

func TestApply_UpdateEndOfFileAnchor(t *testing.T) {
	fs := NewMemFS(map[string]string{"f.txt": "same\nmiddle\nsame"})
	_, _, err := Apply(context.Background(), PatchInput{
		Path: "f.txt",
		Op:   OpUpdate,
		Diff: "@@\n-same\n+last\n*** End of File",
	}, fs, ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if got := fs.Files["f.txt"]; got != "same\nmiddle\nlast" {
		t.Errorf("content = %q, EOF hunk should bind to the tail occurrence", got)
	}
}

func TestApply_UpdateInsertAtLineHint(t *testing.T) {
	fs := NewMemFS(map[string]string{"f.txt": "a\nb\nc\n"})
	_, _, err := Apply(context.Background(), PatchInput{
		Path: "f.txt",
		Op:   OpUpdate,
		Diff: "@@ line 2\n+X",
	}, fs, ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if got := fs.Files["f.txt"]; got != "a\nX\nb\nc\n" {
		t.Errorf("content = %q, inserted text must land on its own line", got)
	}
}

func TestApply_UpdateInsertAtEndOfFile(t *testing.T) {
	fs := NewMemFS(map[string]string{"f.txt": "a\nb"})
	_, _, err := Apply(context.Background(), PatchInput{
		Path: "f.txt",
		Op:   OpUpdate,
		Diff: "@@\n+X\n*** End of File",
	}, fs, ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if got := fs.Files["f.txt"]; got != "a\nb\nX" {
		t.Errorf("content = %q, appended text must start a new line", got)
	}
}

func TestApply_UpdateFuzzyWarning(t *testing.T) {
	fs := NewMemFS(map[string]string{"f.txt": "func f() {\n\tx := 1\n}\n"})
	_, warnings, err := Apply(context.Background(), PatchInput{
		Path: "f.txt",
		Op:   OpUpdate,
		Diff: "@@\n-    x := 1\n+    x := 2",
	}, fs, ApplyOptions{AllowFuzzy: true, FuzzyThreshold: 0.8})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if !strings.Contains(fs.Files["f.txt"], "x := 2") {
		t.Errorf("content = %q", fs.Files["f.txt"])
	}
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "fuzzy match") {
			found = true
		}
	}
	if !found {
		t.Errorf("warnings should note the fuzzy match: %v", warnings)
	}
}

func TestApply_MultiFileViolation(t *testing.T) {
	fs := NewMemFS(map[string]string{"a.ts": "x\n"})
	diff := "*** Update File: a.ts\n@@\n-x\n+y\ndiff --git a/b.ts b/b.ts\n@@\n-p\n+q"
	_, _, err := Apply(context.Background(), PatchInput{Path: "a.ts", Op: OpUpdate, Diff: diff}, fs, ApplyOptions{})
	if err == nil || !strings.Contains(err.Error(), "single file") {
		t.Fatalf("Apply() should reject a two-file patch, got %v", err)
	}
}

func TestApply_WritethroughOncePerWrite(t *testing.T) {
	fs := NewMemFS(map[string]string{"f.txt": "a\n"})
	calls := 0
	wt := func(ctx context.Context, path, content string) ([]string, error) {
		calls++
		return []string{"formatted " + path}, nil
	}
	_, warnings, err := Apply(context.Background(), PatchInput{
		Path: "f.txt",
		Op:   OpUpdate,
		Diff: "@@\n-a\n+b",
	}, fs, ApplyOptions{Writethrough: wt})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	if calls != 1 {
		t.Errorf("writethrough called %d times, want 1", calls)
	}
	joined := strings.Join(warnings, "\n")
	if !strings.Contains(joined, "formatted f.txt") {
		t.Errorf("writethrough diagnostics not merged: %v", warnings)
	}
}

func TestApply_CancelledBeforeWrite(t *testing.T) {
	fs := NewMemFS(map[string]string{"f.txt": "a\n"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Apply(ctx, PatchInput{Path: "f.txt", Op: OpUpdate, Diff: "@@\n-a\n+b"}, fs, ApplyOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if fs.Files["f.txt"] != "a\n" {
		t.Error("cancelled update must not write")
	}
}

func TestApply_UpdateAnchorWithoutContext(t *testing.T) {
	content := "type A struct{}\n\nfunc (A) Do() int {\n\treturn 1\n}\n\ntype B struct{}\n\nfunc (B) Do() int {\n\treturn 1\n}\n"
	fs := NewMemFS(map[string]string{"f.go": content})
	_, _, err := Apply(context.Background(), PatchInput{
		Path: "f.go",
		Op:   OpUpdate,
		Diff: "@@ func (B) Do\n-\treturn 1\n+\treturn 2",
	}, fs, ApplyOptions{})
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}
	want := "type A struct{}\n\nfunc (A) Do() int {\n\treturn 1\n}\n\ntype B struct{}\n\nfunc (B) Do() int {\n\treturn 2\n}\n"
	if got := fs.Files["f.go"]; got != want {
		t.Errorf("anchor should pick the second occurrence:\n%q", got)
	}
}
