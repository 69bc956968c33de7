package patch

import "strings"

// Wrapper and metadata markers tolerated in model-produced diffs.
const (
	beginPatchMarker = "*** Begin Patch"
	endPatchMarker   = "*** End Patch"
	endOfFileMarker  = "*** End of File"

	updateFileMarker = "*** Update File:"
	addFileMarker    = "*** Add File:"
	deleteFileMarker = "*** Delete File:"
)

// metadataPrefixes are unified-diff header lines that carry no hunk content.
var metadataPrefixes = []string{
	"diff --git",
	"index ",
	"--- ",
	"+++ ",
	"old mode",
	"new mode",
	"new file mode",
	"deleted file mode",
	"rename from",
	"rename to",
	"similarity index",
	"dissimilarity index",
}

// isContentLine reports whether line is diff content rather than metadata.
// Content lines start with a space, a '+' that is not "+++ ", or a '-' that
// is not "--- ".
func isContentLine(line string) bool {
	if line == "" {
		return false
	}
	switch line[0] {
	case ' ':
		return true
	case '+':
		return !strings.HasPrefix(line, "+++ ")
	case '-':
		return !strings.HasPrefix(line, "--- ")
	}
	return false
}

// Normalize strips dialect wrappers and per-line metadata from raw diff text,
// leaving a canonical line sequence for the hunk parser. It tolerates the
// Codex "*** Begin Patch"/"*** End Patch" envelope (either marker alone),
// stray bare "***" sentinel lines, Codex per-file markers, and unified-diff
// file headers.
func Normalize(raw string) string {
	lines := strings.Split(NormalizeToLF(raw), "\n")

	// Trailing blank lines are noise, but a line holding a single space is a
	// blank context line and must survive.
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[0]), beginPatchMarker) {
		lines = lines[1:]
	}
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == endPatchMarker {
		lines = lines[:len(lines)-1]
	}

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if isContentLine(line) {
			out = append(out, line)
			continue
		}
		trimmed := strings.TrimRight(line, " \t")
		if trimmed == "***" || trimmed == beginPatchMarker || trimmed == endPatchMarker {
			continue
		}
		if isMetadataLine(line) {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func isMetadataLine(line string) bool {
	if strings.HasPrefix(line, updateFileMarker) ||
		strings.HasPrefix(line, addFileMarker) ||
		strings.HasPrefix(line, deleteFileMarker) {
		return true
	}
	for _, p := range metadataPrefixes {
		if strings.HasPrefix(line, p) {
			return true
		}
	}
	return false
}

// NormalizeCreateContent strips a uniform '+' addition prefix from file
// creation bodies. Models sometimes format new-file content as a diff; when
// every non-empty line carries the prefix we undo it, otherwise the body is
// returned untouched.
func NormalizeCreateContent(content string) string {
	lines := strings.Split(NormalizeToLF(content), "\n")

	seen := false
	allPlusSpace := true
	for _, line := range lines {
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "+") {
			return content
		}
		seen = true
		if line != "+" && !strings.HasPrefix(line, "+ ") {
			allPlusSpace = false
		}
	}
	if !seen {
		return content
	}

	out := make([]string, len(lines))
	for i, line := range lines {
		switch {
		case line == "":
			out[i] = line
		case allPlusSpace:
			if line == "+" {
				out[i] = ""
			} else {
				out[i] = line[2:]
			}
		default:
			out[i] = line[1:]
		}
	}
	return strings.Join(out, "\n")
}
