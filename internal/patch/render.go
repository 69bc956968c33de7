package patch

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// unifiedDiffContext is the number of context lines in rendered diffs.
const unifiedDiffContext = 3

// RenderUnified renders a unified diff between old and new content and
// returns it with the 1-based line where the two first diverge (0 when they
// are identical). The line hint lets a UI scroll straight to the edit.
func RenderUnified(old, new, path string) (string, int) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(old),
		B:        difflib.SplitLines(new),
		FromFile: path,
		ToFile:   path,
		Context:  unifiedDiffContext,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		// SplitLines never produces input GetUnifiedDiffString rejects; treat
		// a failure as an empty diff.
		return "", 0
	}
	return text, FirstChangedLine(old, new)
}

// RenderCompact renders a simple line diff without headers or hunk markers,
// used by the replace-mode path where a full unified diff is overkill.
func RenderCompact(old, new string) string {
	dmp := diffmatchpatch.New()
	a, b, lineIndex := dmp.DiffLinesToChars(old, new)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineIndex)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := " "
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		}
		for _, line := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			sb.WriteString(prefix)
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// RenderInline renders a word-level diff of two snippets with [-..-]/{+..+}
// markers. Used for closest-match diagnostics so the model can see exactly
// how its text diverged from the file.
func RenderInline(expected, actual string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(expected, actual, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var sb strings.Builder
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			sb.WriteString("{+")
			sb.WriteString(d.Text)
			sb.WriteString("+}")
		case diffmatchpatch.DiffDelete:
			sb.WriteString("[-")
			sb.WriteString(d.Text)
			sb.WriteString("-]")
		default:
			sb.WriteString(d.Text)
		}
	}
	return sb.String()
}

// FirstChangedLine returns the earliest 1-based line where old and new
// diverge, or 0 when the contents are equal.
func FirstChangedLine(old, new string) int {
	if old == new {
		return 0
	}
	oldLines := strings.Split(old, "\n")
	newLines := strings.Split(new, "\n")
	n := len(oldLines)
	if len(newLines) < n {
		n = len(newLines)
	}
	for i := 0; i < n; i++ {
		if oldLines[i] != newLines[i] {
			return i + 1
		}
	}
	return n + 1
}
