package patch

import (
	"regexp"
	"strconv"
	"strings"
)

// DiffHunk is one contiguous edit unit parsed from patch text.
type DiffHunk struct {
	// ChangeContext holds the human-readable anchor strings from @@ lines,
	// newline-joined top-down when anchors nest (class then method).
	ChangeContext string

	// OldStartLine and NewStartLine are 1-based hints from a unified header
	// or an explicit "@@ line N" hint. Zero means absent.
	OldStartLine int
	NewStartLine int

	// HasContextLines is true when the hunk carries at least one unchanged
	// line, which changes the anchor-search strategy.
	HasContextLines bool

	// OldLines and NewLines are the parallel content; context lines appear
	// in both.
	OldLines []string
	NewLines []string

	// IsEndOfFile marks a hunk anchored at the tail of the file.
	IsEndOfFile bool
}

// contentLineCount returns the number of content lines the hunk carries.
func (h *DiffHunk) contentLineCount() int {
	if len(h.OldLines) > len(h.NewLines) {
		return len(h.OldLines)
	}
	return len(h.NewLines)
}

var (
	unifiedHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@ ?(.*)$`)
	lineHintRe      = regexp.MustCompile(`(?i)^lines?\s+(\d+)(?:\s*-\s*\d+)?$`)
	topOfFileRe     = regexp.MustCompile(`(?i)^(?:top|start|beginning) of (?:the )?file$`)

	// lineNumPrefixRe matches the line-number prefixes models paste when they
	// copy numbered source into a diff.
	lineNumPrefixRe = regexp.MustCompile(`^(\s*)(\d{1,6})\s+`)
)

// lineNumPrefixCoverage is the share of non-blank body lines that must carry
// a numeric prefix before the parser treats the body as line-numbered source.
// Tuned against real model output; do not adjust.
const lineNumPrefixCoverage = 0.60

// ParseHunks parses normalized-or-raw diff text into an ordered hunk
// sequence. allowMissingContext permits a body with no @@ marker at all
// (the whole block becomes a single hunk).
func ParseHunks(diff string, allowMissingContext bool) ([]DiffHunk, error) {
	if strings.TrimSpace(diff) == "" {
		return nil, &ParseError{Message: "empty diff"}
	}
	if paths := ReferencedPaths(diff); len(paths) > 1 {
		return nil, parseErrorf(0, "patch references %d files (%s) - a patch must modify a single file", len(paths), strings.Join(paths, ", "))
	}

	text := Normalize(diff)
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Message: "diff contains no hunk content"}
	}
	lines := strings.Split(text, "\n")

	p := &hunkParser{lines: lines, allowMissingContext: allowMissingContext}
	hunks, err := p.parse()
	if err != nil {
		return nil, err
	}
	for i := range hunks {
		stripLineNumberPrefixes(&hunks[i])
	}
	return hunks, nil
}

// ReferencedPaths returns the distinct file paths named by multi-file markers
// (diff --git headers and Codex per-file markers) in document order.
func ReferencedPaths(diff string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(path string) {
		path = strings.TrimSpace(path)
		if path == "" || seen[path] {
			return
		}
		seen[path] = true
		out = append(out, path)
	}

	for _, line := range strings.Split(NormalizeToLF(diff), "\n") {
		switch {
		case strings.HasPrefix(line, updateFileMarker):
			add(strings.TrimPrefix(line, updateFileMarker))
		case strings.HasPrefix(line, addFileMarker):
			add(strings.TrimPrefix(line, addFileMarker))
		case strings.HasPrefix(line, deleteFileMarker):
			add(strings.TrimPrefix(line, deleteFileMarker))
		case strings.HasPrefix(line, "diff --git "):
			add(gitDiffPath(strings.TrimPrefix(line, "diff --git ")))
		}
	}
	return out
}

// gitDiffPath extracts the target path from a "diff --git a/x b/x" header.
func gitDiffPath(rest string) string {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return ""
	}
	path := fields[len(fields)-1]
	path = strings.TrimPrefix(path, "b/")
	path = strings.TrimPrefix(path, "a/")
	return path
}

type hunkParser struct {
	lines               []string
	pos                 int
	allowMissingContext bool
}

func (p *hunkParser) parse() ([]DiffHunk, error) {
	var hunks []DiffHunk

	// Skip leading blank lines.
	for p.pos < len(p.lines) && strings.TrimSpace(p.lines[p.pos]) == "" {
		p.pos++
	}

	if p.pos < len(p.lines) && !isHeaderLine(p.lines[p.pos]) {
		if !p.allowMissingContext {
			return nil, parseErrorf(p.pos+1, "expected @@ hunk header, got %q", p.lines[p.pos])
		}
		// Model omitted the markers entirely; the whole block is one body.
		h := DiffHunk{}
		if err := p.parseBody(&h); err != nil {
			return nil, err
		}
		if h.contentLineCount() == 0 {
			return nil, parseErrorf(p.pos, "hunk has no content lines")
		}
		return []DiffHunk{h}, nil
	}

	for p.pos < len(p.lines) {
		line := p.lines[p.pos]
		if strings.TrimSpace(line) == "" {
			p.pos++
			continue
		}
		if !isHeaderLine(line) {
			return nil, parseErrorf(p.pos+1, "unexpected line outside hunk: %q", line)
		}

		h, err := p.parseHeader()
		if err != nil {
			return nil, err
		}
		if err := p.parseBody(h); err != nil {
			return nil, err
		}
		if h.contentLineCount() == 0 {
			return nil, parseErrorf(p.pos, "hunk has no content lines")
		}
		hunks = append(hunks, *h)
	}

	if len(hunks) == 0 {
		return nil, &ParseError{Message: "diff contains no hunks"}
	}
	return hunks, nil
}

func isHeaderLine(line string) bool {
	return line == "@@" || strings.HasPrefix(line, "@@ ")
}

// parseHeader consumes the @@ line starting a hunk plus any immediately
// following nested @@ anchor lines.
func (p *hunkParser) parseHeader() (*DiffHunk, error) {
	h := &DiffHunk{}
	line := p.lines[p.pos]

	switch {
	case line == "@@" || strings.TrimSpace(line) == "@@ @@":
		// Empty marker: no anchor, search continues from the cursor.

	case unifiedHeaderRe.MatchString(line):
		m := unifiedHeaderRe.FindStringSubmatch(line)
		oldStart, _ := strconv.Atoi(m[1])
		newStart, _ := strconv.Atoi(m[3])
		if oldStart < 1 || newStart < 1 {
			return nil, parseErrorf(p.pos+1, "invalid hunk header %q: line numbers must be >= 1", line)
		}
		h.OldStartLine = oldStart
		h.NewStartLine = newStart
		if ctx := strings.TrimSpace(m[5]); ctx != "" {
			h.ChangeContext = ctx
		}

	default:
		text := strings.TrimSpace(strings.TrimPrefix(line, "@@ "))
		switch {
		case lineHintRe.MatchString(text):
			m := lineHintRe.FindStringSubmatch(text)
			n, _ := strconv.Atoi(m[1])
			if n < 1 {
				return nil, parseErrorf(p.pos+1, "invalid line hint %q: line numbers must be >= 1", line)
			}
			h.OldStartLine = n
			h.NewStartLine = n
		case topOfFileRe.MatchString(text):
			h.OldStartLine = 1
			h.NewStartLine = 1
		default:
			h.ChangeContext = text
		}
	}
	p.pos++

	// Nested anchors: consecutive @@ lines accumulate context top-down until
	// the first body line.
	for p.pos < len(p.lines) && strings.HasPrefix(p.lines[p.pos], "@@ ") {
		text := strings.TrimSpace(strings.TrimPrefix(p.lines[p.pos], "@@ "))
		if text == "" || unifiedHeaderRe.MatchString(p.lines[p.pos]) {
			break
		}
		if h.ChangeContext == "" {
			h.ChangeContext = text
		} else {
			h.ChangeContext += "\n" + text
		}
		p.pos++
	}

	return h, nil
}

// parseBody consumes content lines until the next hunk header, an EOF marker,
// or the end of input.
func (p *hunkParser) parseBody(h *DiffHunk) error {
	contentSeen := false

	for p.pos < len(p.lines) {
		line := p.lines[p.pos]

		if isHeaderLine(line) {
			return nil
		}
		if strings.TrimSpace(line) == endOfFileMarker {
			if !contentSeen {
				return parseErrorf(p.pos+1, "%s marker before any hunk content", endOfFileMarker)
			}
			h.IsEndOfFile = true
			p.pos++
			return nil
		}

		if line == "" {
			// A blank line directly before the next @@ ends this hunk without
			// becoming content.
			if p.pos+1 < len(p.lines) && isHeaderLine(p.lines[p.pos+1]) {
				p.pos++
				return nil
			}
			if p.pos+1 >= len(p.lines) {
				p.pos++
				return nil
			}
			h.OldLines = append(h.OldLines, "")
			h.NewLines = append(h.NewLines, "")
			h.HasContextLines = true
			contentSeen = true
			p.pos++
			continue
		}

		if line[0] != ' ' && line[0] != '+' && line[0] != '-' {
			// A bare ellipsis is a gap marker between context regions, not
			// content. With a diff prefix it is an ordinary body line.
			trimmed := strings.TrimSpace(line)
			if trimmed == "..." || trimmed == "…" {
				h.HasContextLines = true
				p.pos++
				continue
			}
		}

		switch line[0] {
		case ' ':
			h.OldLines = append(h.OldLines, line[1:])
			h.NewLines = append(h.NewLines, line[1:])
			h.HasContextLines = true
		case '+':
			h.NewLines = append(h.NewLines, line[1:])
		case '-':
			h.OldLines = append(h.OldLines, line[1:])
		default:
			// A line without a recognized prefix is an implicit context line
			// (the model dropped the leading space), but only once real
			// content has been accepted.
			if !contentSeen {
				return parseErrorf(p.pos+1, "malformed hunk line %q: expected ' ', '+', '-' or @@ prefix", line)
			}
			h.OldLines = append(h.OldLines, line)
			h.NewLines = append(h.NewLines, line)
			h.HasContextLines = true
		}
		contentSeen = true
		p.pos++
	}
	return nil
}

// stripLineNumberPrefixes removes pasted line-number prefixes from a hunk
// body when the numbers look like real line numbers. The coverage and
// sequential-run thresholds are tuned heuristics; changing them silently
// changes which inputs are treated as numbered source.
func stripLineNumberPrefixes(h *DiffHunk) {
	all := make([]string, 0, len(h.OldLines)+len(h.NewLines))
	all = append(all, h.OldLines...)
	all = append(all, h.NewLines...)
	if !looksLineNumbered(all) {
		return
	}
	for i, line := range h.OldLines {
		h.OldLines[i] = lineNumPrefixRe.ReplaceAllString(line, "$1")
	}
	for i, line := range h.NewLines {
		h.NewLines[i] = lineNumPrefixRe.ReplaceAllString(line, "$1")
	}
}

func looksLineNumbered(lines []string) bool {
	var numbers []int
	nonBlank := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		nonBlank++
		if m := lineNumPrefixRe.FindStringSubmatch(line); m != nil {
			n, _ := strconv.Atoi(m[2])
			numbers = append(numbers, n)
		}
	}
	if nonBlank == 0 || len(numbers) == 0 {
		return false
	}
	if float64(len(numbers))/float64(nonBlank) < lineNumPrefixCoverage {
		return false
	}

	sequential := 0
	for i := 1; i < len(numbers); i++ {
		if numbers[i] == numbers[i-1]+1 {
			sequential++
		}
	}
	if len(numbers) >= 3 {
		required := len(numbers) - 2
		if required < 1 {
			required = 1
		}
		if sequential < required {
			return false
		}
	}
	return true
}
