package patch

import (
	"context"
	"fmt"
	"strings"
)

// Operation is the kind of file mutation a patch performs.
type Operation string

const (
	// OpCreate - write a new file from the diff body
	OpCreate Operation = "create"
	// OpUpdate - apply hunks to an existing file
	OpUpdate Operation = "update"
	// OpDelete - remove the file
	OpDelete Operation = "delete"
)

// PatchInput is one file operation as supplied by the caller. Value type,
// consumed once.
type PatchInput struct {
	Path   string
	Op     Operation
	Rename string // optional new path; orthogonal to Op
	Diff   string // full content for create, hunks for update
}

// FileChange records the outcome of an applied operation. Ephemeral, one per
// tool call; the orchestrator renders the diff from it.
type FileChange struct {
	Type       Operation
	OldPath    string
	NewPath    string // set when the operation renamed the file
	OldContent *string
	NewContent *string
}

// ApplyOptions tunes the applicator.
type ApplyOptions struct {
	AllowFuzzy          bool
	FuzzyThreshold      float64 // 0 means DefaultFuzzyThreshold
	AllowMissingContext bool    // permit hunk bodies with no @@ marker
	Writethrough        Writethrough
}

// Apply drives a single create/update/delete operation against fs. Updates
// resolve every hunk in memory before anything is written, so a failure on a
// later hunk leaves the file untouched. The returned strings are non-fatal
// warnings, including writethrough diagnostics.
func Apply(ctx context.Context, in PatchInput, fs FileSystem, opts ApplyOptions) (*FileChange, []string, error) {
	// Parser-level guard runs again here: a patch must not straddle files.
	if paths := ReferencedPaths(in.Diff); len(paths) > 1 {
		return nil, nil, applyErrorf(in.Op, in.Path, "patch references %d files (%s) - a patch must modify a single file", len(paths), strings.Join(paths, ", "))
	}

	switch in.Op {
	case OpCreate:
		return applyCreate(ctx, in, fs, opts)
	case OpDelete:
		return applyDelete(in, fs)
	case OpUpdate, "":
		return applyUpdate(ctx, in, fs, opts)
	default:
		return nil, nil, applyErrorf(in.Op, in.Path, "unknown operation")
	}
}

func applyCreate(ctx context.Context, in PatchInput, fs FileSystem, opts ApplyOptions) (*FileChange, []string, error) {
	target := in.Path
	if in.Rename != "" {
		target = in.Rename
	}
	if fs.Exists(target) {
		return nil, nil, applyErrorf(OpCreate, target, "file already exists - use update instead")
	}

	content := NormalizeCreateContent(in.Diff)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := fs.Write(target, content); err != nil {
		return nil, nil, &ApplyError{Op: OpCreate, Path: target, Err: err}
	}
	warnings := runWritethrough(ctx, opts.Writethrough, target, content)

	change := &FileChange{Type: OpCreate, OldPath: in.Path, NewContent: &content}
	if in.Rename != "" {
		change.NewPath = in.Rename
	}
	return change, warnings, nil
}

func applyDelete(in PatchInput, fs FileSystem) (*FileChange, []string, error) {
	if !fs.Exists(in.Path) {
		return nil, nil, applyErrorf(OpDelete, in.Path, "file does not exist")
	}
	old, err := fs.Read(in.Path)
	if err != nil {
		return nil, nil, &ApplyError{Op: OpDelete, Path: in.Path, Err: err}
	}
	if err := fs.Delete(in.Path); err != nil {
		return nil, nil, &ApplyError{Op: OpDelete, Path: in.Path, Err: err}
	}
	return &FileChange{Type: OpDelete, OldPath: in.Path, OldContent: &old}, nil, nil
}

func applyUpdate(ctx context.Context, in PatchInput, fs FileSystem, opts ApplyOptions) (*FileChange, []string, error) {
	if !fs.Exists(in.Path) {
		return nil, nil, applyErrorf(OpUpdate, in.Path, "file does not exist")
	}
	raw, err := fs.Read(in.Path)
	if err != nil {
		return nil, nil, &ApplyError{Op: OpUpdate, Path: in.Path, Err: err}
	}

	// Work on LF-normalized, BOM-free content; both are restored byte-for-byte
	// before the write.
	stripped, hadBOM := StripBOM(raw)
	ending := DetectLineEnding(stripped)
	original := NormalizeToLF(stripped)

	hunks, err := ParseHunks(in.Diff, opts.AllowMissingContext)
	if err != nil {
		return nil, nil, err
	}

	var warnings []string
	content := original
	cursor := 0
	for i, h := range hunks {
		start, end, warn, err := locateHunk(content, h, cursor, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("hunk %d: %w", i+1, err)
		}
		if warn != "" {
			warnings = append(warnings, fmt.Sprintf("hunk %d: %s", i+1, warn))
		}
		replacement := strings.Join(h.NewLines, "\n")
		if start == end {
			// Pure insertion: keep the added text on its own lines instead
			// of merging into the neighbor at the insertion point.
			switch {
			case start < len(content):
				replacement += "\n"
			case len(content) > 0 && !strings.HasSuffix(content, "\n"):
				replacement = "\n" + replacement
			case len(content) > 0:
				replacement += "\n"
			}
		}
		content = content[:start] + replacement + content[end:]
		cursor = start + len(replacement)
	}

	if content == original {
		return nil, nil, applyErrorf(OpUpdate, in.Path, "patch resulted in no changes")
	}

	// Nothing has been written yet; cancellation up to this point is free.
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	final := RestoreBOM(RestoreLineEnding(content, ending), hadBOM)
	target := in.Path
	if in.Rename != "" {
		target = in.Rename
	}
	if err := fs.Write(target, final); err != nil {
		return nil, nil, &ApplyError{Op: OpUpdate, Path: target, Err: err}
	}
	if in.Rename != "" && in.Rename != in.Path {
		if err := fs.Delete(in.Path); err != nil {
			return nil, nil, &ApplyError{Op: OpUpdate, Path: in.Path, Err: err}
		}
	}
	warnings = append(warnings, runWritethrough(ctx, opts.Writethrough, target, final)...)

	change := &FileChange{Type: OpUpdate, OldPath: in.Path, OldContent: &original, NewContent: &content}
	if in.Rename != "" {
		change.NewPath = in.Rename
	}
	return change, warnings, nil
}

// locateHunk finds the byte range the hunk's old window occupies in content.
// Search starts at the cursor so hunks resolve in document order; a miss
// falls back to the whole file with a warning.
func locateHunk(content string, h DiffHunk, cursor int, opts ApplyOptions) (start, end int, warning string, err error) {
	mopts := MatchOptions{AllowFuzzy: opts.AllowFuzzy, Threshold: opts.FuzzyThreshold}

	// Pure insertion: no old window to find, only a position.
	if len(h.OldLines) == 0 {
		pos := insertionPoint(content, h, cursor)
		return pos, pos, "", nil
	}

	base := cursor
	if base > len(content) {
		base = len(content)
	}
	// An anchor narrows the search to the region after the anchor line when
	// the hunk has no context lines of its own.
	if h.ChangeContext != "" && !h.HasContextLines {
		if at, ok := findAnchor(content, h.ChangeContext, base); ok {
			base = at
		} else {
			warning = fmt.Sprintf("anchor %q not found, searching whole file", h.ChangeContext)
			base = 0
		}
	}

	if h.IsEndOfFile {
		// Tail-anchored: try the end of the file before a forward scan.
		needle := strings.Join(h.OldLines, "\n")
		if strings.HasSuffix(content, needle) {
			return len(content) - len(needle), len(content), "", nil
		}
	}

	outcome := FindMatch(content[base:], h.OldLines, mopts)
	if outcome.Kind == MatchNotFound && base > 0 {
		// The window may sit before the cursor (out-of-order hunks); retry
		// from the top before giving up.
		if retry := FindMatch(content, h.OldLines, mopts); retry.Kind != MatchNotFound {
			outcome = retry
			base = 0
			warning = "hunk matched before the previous hunk; applying out of order"
		}
	}

	switch outcome.Kind {
	case MatchExact, MatchFuzzy:
		if outcome.Kind == MatchFuzzy {
			warning = fmt.Sprintf("fuzzy match (similarity %.2f)", outcome.Similarity)
		}
		return base + outcome.Start, base + outcome.End, warning, nil
	case MatchAmbiguous:
		// A line hint disambiguates between occurrences.
		if h.OldStartLine > 0 {
			if s, e, ok := occurrenceNearLine(content, strings.Join(h.OldLines, "\n"), h.OldStartLine); ok {
				return s, e, warning, nil
			}
		}
		return 0, 0, "", &MatchError{Occurrences: outcome.Occurrences, Previews: outcome.Previews}
	default:
		closest := outcome.Closest
		if closest != "" {
			closest = RenderInline(strings.Join(h.OldLines, "\n"), closest)
		}
		return 0, 0, "", &MatchError{Closest: closest}
	}
}

// insertionPoint picks the byte offset for a hunk with additions only.
func insertionPoint(content string, h DiffHunk, cursor int) int {
	if h.IsEndOfFile {
		return len(content)
	}
	if h.OldStartLine > 0 {
		return byteOffsetOfLine(content, h.OldStartLine)
	}
	if h.ChangeContext != "" {
		if at, ok := findAnchor(content, h.ChangeContext, 0); ok {
			return at
		}
	}
	if cursor > len(content) {
		return len(content)
	}
	return cursor
}

// byteOffsetOfLine returns the offset where the given 1-based line starts,
// clamped to the end of content.
func byteOffsetOfLine(content string, line int) int {
	offset := 0
	for n := 1; n < line; n++ {
		idx := strings.IndexByte(content[offset:], '\n')
		if idx == -1 {
			return len(content)
		}
		offset += idx + 1
	}
	return offset
}

// findAnchor locates the line following the last of the (possibly nested,
// newline-joined) anchor strings, each found after the previous one.
// Matching is case-insensitive substring, the way scope markers name
// functions without reproducing the whole line.
func findAnchor(content, anchors string, from int) (int, bool) {
	lines := strings.Split(content, "\n")

	// Convert the byte base into a starting line.
	startLine := 0
	offset := 0
	for i, line := range lines {
		if offset >= from {
			startLine = i
			break
		}
		offset += len(line) + 1
	}

	cur := startLine
	for _, anchor := range strings.Split(anchors, "\n") {
		needle := strings.ToLower(strings.TrimSpace(anchor))
		if needle == "" {
			continue
		}
		found := -1
		for i := cur; i < len(lines); i++ {
			if strings.Contains(strings.ToLower(lines[i]), needle) {
				found = i
				break
			}
		}
		if found == -1 {
			return 0, false
		}
		cur = found + 1
	}

	at := 0
	for i := 0; i < cur && i < len(lines); i++ {
		at += len(lines[i]) + 1
	}
	if at > len(content) {
		at = len(content)
	}
	return at, true
}

// occurrenceNearLine picks the occurrence of needle whose line is closest to
// the hinted 1-based line.
func occurrenceNearLine(content, needle string, line int) (start, end int, ok bool) {
	bestDist := -1
	pos := 0
	for {
		idx := strings.Index(content[pos:], needle)
		if idx == -1 {
			break
		}
		at := pos + idx
		dist := lineNumberAt(content, at) - line
		if dist < 0 {
			dist = -dist
		}
		if bestDist == -1 || dist < bestDist {
			bestDist = dist
			start, end, ok = at, at+len(needle), true
		}
		pos = at + len(needle)
	}
	return start, end, ok
}

// runWritethrough invokes the hook once for a successful write. Failures and
// diagnostics are advisory; they never fail the operation.
func runWritethrough(ctx context.Context, wt Writethrough, path, content string) []string {
	if wt == nil {
		return nil
	}
	diags, err := wt(ctx, path, content)
	if err != nil {
		return append(diags, fmt.Sprintf("writethrough: %v", err))
	}
	return diags
}
