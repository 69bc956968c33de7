package patch

import (
	"fmt"
	"regexp"
	"strings"
)

// MatchKind classifies the outcome of a content search.
type MatchKind int

const (
	// MatchExact - the pattern occurred verbatim exactly once
	MatchExact MatchKind = iota
	// MatchFuzzy - accepted a whitespace-tolerant match above the threshold
	MatchFuzzy
	// MatchAmbiguous - the pattern occurred more than once
	MatchAmbiguous
	// MatchNotFound - nothing above the threshold
	MatchNotFound
)

// MaxMatchPreviews caps the rendered occurrence previews attached to an
// ambiguous match.
const MaxMatchPreviews = 5

// DefaultFuzzyThreshold is the similarity a fuzzy candidate must reach to be
// accepted when the caller supplies no threshold.
const DefaultFuzzyThreshold = 0.95

// previewContextLines is the number of surrounding lines shown per occurrence.
const previewContextLines = 2

// MatchOutcome is the result of locating a pattern inside file content.
// Produced fresh per search; never persisted.
type MatchOutcome struct {
	Kind       MatchKind
	Start, End int     // byte range of the matched window
	Similarity float64 // 1.0 for exact matches

	// Ambiguous matches carry the true occurrence count and up to
	// MaxMatchPreviews rendered previews.
	Occurrences int
	Previews    []string

	// NotFound carries the closest candidate for error messaging.
	Closest string
}

// MatchOptions tunes FindMatch.
type MatchOptions struct {
	AllowFuzzy bool
	Threshold  float64 // 0 means DefaultFuzzyThreshold
	ReplaceAll bool    // multiple exact occurrences are acceptable
}

// FindMatch locates pattern inside content: exact first, then a
// whitespace-tolerant fuzzy scan when allowed. A low-confidence candidate is
// never silently picked; it is surfaced as Closest on a NotFound outcome.
func FindMatch(content string, pattern []string, opts MatchOptions) MatchOutcome {
	needle := strings.Join(pattern, "\n")
	if needle == "" {
		return MatchOutcome{Kind: MatchNotFound}
	}
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultFuzzyThreshold
	}

	if count := countOccurrences(content, needle); count > 0 {
		start := strings.Index(content, needle)
		if count == 1 || opts.ReplaceAll {
			return MatchOutcome{
				Kind:        MatchExact,
				Start:       start,
				End:         start + len(needle),
				Similarity:  1.0,
				Occurrences: count,
			}
		}
		return MatchOutcome{
			Kind:        MatchAmbiguous,
			Occurrences: count,
			Previews:    renderOccurrencePreviews(content, needle, count),
		}
	}

	best, bestSim, start, end := bestFuzzyWindow(content, pattern)
	if opts.AllowFuzzy && best != "" && bestSim >= opts.Threshold {
		return MatchOutcome{
			Kind:       MatchFuzzy,
			Start:      start,
			End:        end,
			Similarity: bestSim,
		}
	}
	return MatchOutcome{Kind: MatchNotFound, Closest: best, Similarity: bestSim}
}

// countOccurrences counts non-overlapping occurrences of needle in content.
func countOccurrences(content, needle string) int {
	count := 0
	pos := 0
	for {
		idx := strings.Index(content[pos:], needle)
		if idx == -1 {
			break
		}
		count++
		pos += idx + len(needle)
	}
	return count
}

// renderOccurrencePreviews renders up to MaxMatchPreviews snippets, each with
// a few lines of surrounding context and the 1-based line of the occurrence.
func renderOccurrencePreviews(content, needle string, count int) []string {
	limit := count
	if limit > MaxMatchPreviews {
		limit = MaxMatchPreviews
	}
	previews := make([]string, 0, limit)
	pos := 0
	for len(previews) < limit {
		idx := strings.Index(content[pos:], needle)
		if idx == -1 {
			break
		}
		at := pos + idx
		previews = append(previews, snippetAround(content, at, at+len(needle)))
		pos = at + len(needle)
	}
	return previews
}

// snippetAround extracts the lines covering [start,end) plus surrounding
// context, prefixed with line numbers.
func snippetAround(content string, start, end int) string {
	lines := strings.Split(content, "\n")
	firstLine := lineNumberAt(content, start) - 1 // 0-based
	lastLine := lineNumberAt(content, end) - 1

	lo := firstLine - previewContextLines
	if lo < 0 {
		lo = 0
	}
	hi := lastLine + previewContextLines + 1
	if hi > len(lines) {
		hi = len(lines)
	}

	var sb strings.Builder
	for i := lo; i < hi; i++ {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%d: %s", i+1, lines[i])
	}
	return sb.String()
}

// lineNumberAt returns the 1-based line number for a byte offset.
func lineNumberAt(content string, offset int) int {
	n := 1
	for i := 0; i < offset && i < len(content); i++ {
		if content[i] == '\n' {
			n++
		}
	}
	return n
}

var whitespaceRunRe = regexp.MustCompile(`\s+`)

// foldWhitespace collapses runs of whitespace so indentation and alignment
// differences do not defeat a match.
func foldWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRunRe.ReplaceAllString(s, " "))
}

// bestFuzzyWindow slides a window of len(pattern) lines across content and
// scores each against the pattern with whitespace folded. Returns the best
// candidate text, its similarity, and its byte range. Ties keep the first
// candidate in document order.
func bestFuzzyWindow(content string, pattern []string) (text string, sim float64, start, end int) {
	if len(pattern) == 0 {
		return "", 0, 0, 0
	}
	contentLines := strings.Split(content, "\n")
	if len(pattern) > len(contentLines) {
		return "", 0, 0, 0
	}

	folded := make([]string, len(contentLines))
	for i, line := range contentLines {
		folded[i] = foldWhitespace(line)
	}
	foldedPat := make([]string, len(pattern))
	for i, line := range pattern {
		foldedPat[i] = foldWhitespace(line)
	}

	bestSim := 0.0
	bestStart := -1
	for i := 0; i+len(pattern) <= len(contentLines); i++ {
		total := 0.0
		for j := range foldedPat {
			total += similarityRatio(folded[i+j], foldedPat[j])
		}
		s := total / float64(len(foldedPat))
		if s > bestSim {
			bestSim = s
			bestStart = i
		}
	}
	if bestStart < 0 {
		return "", 0, 0, 0
	}

	byteStart := 0
	for i := 0; i < bestStart; i++ {
		byteStart += len(contentLines[i]) + 1
	}
	matched := strings.Join(contentLines[bestStart:bestStart+len(pattern)], "\n")
	byteEnd := byteStart + len(matched)
	if byteEnd > len(content) {
		byteEnd = len(content)
	}
	return matched, bestSim, byteStart, byteEnd
}

// similarityRatio implements the Ratcliff/Obershelp ratio used by Python's
// difflib.SequenceMatcher: 2 * matching_chars / total_chars.
func similarityRatio(s1, s2 string) float64 {
	if len(s1) == 0 && len(s2) == 0 {
		return 1.0
	}
	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}
	matches := countMatchingChars(s1, s2)
	return 2.0 * float64(matches) / float64(len(s1)+len(s2))
}

// countMatchingChars recursively counts matching characters around the
// longest common substring.
func countMatchingChars(s1, s2 string) int {
	start1, start2, length := longestCommonSubstring(s1, s2)
	if length == 0 {
		return 0
	}
	matches := length
	if start1 > 0 && start2 > 0 {
		matches += countMatchingChars(s1[:start1], s2[:start2])
	}
	end1, end2 := start1+length, start2+length
	if end1 < len(s1) && end2 < len(s2) {
		matches += countMatchingChars(s1[end1:], s2[end2:])
	}
	return matches
}

// longestCommonSubstring uses a rolling DP row to keep memory at O(len(s2)).
func longestCommonSubstring(s1, s2 string) (start1, start2, length int) {
	if len(s1) == 0 || len(s2) == 0 {
		return 0, 0, 0
	}
	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)

	maxLen, end1, end2 := 0, 0, 0
	for i := 1; i <= len(s1); i++ {
		for j := 1; j <= len(s2); j++ {
			if s1[i-1] == s2[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > maxLen {
					maxLen = curr[j]
					end1, end2 = i, j
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
		for k := range curr {
			curr[k] = 0
		}
	}
	if maxLen == 0 {
		return 0, 0, 0
	}
	return end1 - maxLen, end2 - maxLen, maxLen
}
