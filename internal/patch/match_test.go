package patch

import (
	"strings"
	"testing"
)

func TestFindMatch_Exact(t *testing.T) {
	content := "alpha\nbeta\ngamma\n"
	out := FindMatch(content, []string{"beta"}, MatchOptions{})
	if out.Kind != MatchExact {
		t.Fatalf("Kind = %v, want MatchExact", out.Kind)
	}
	if content[out.Start:out.End] != "beta" {
		t.Errorf("range = %q, want %q", content[out.Start:out.End], "beta")
	}
	if out.Similarity != 1.0 {
		t.Errorf("Similarity = %v, want 1.0", out.Similarity)
	}
}

func TestFindMatch_AmbiguousPreviewCap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 7; i++ {
		sb.WriteString("dup line\nfiller\n")
	}
	out := FindMatch(sb.String(), []string{"dup line"}, MatchOptions{})

	if out.Kind != MatchAmbiguous {
		t.Fatalf("Kind = %v, want MatchAmbiguous", out.Kind)
	}
	if out.Occurrences != 7 {
		t.Errorf("Occurrences = %d, want 7", out.Occurrences)
	}
	if len(out.Previews) != MaxMatchPreviews {
		t.Errorf("len(Previews) = %d, want %d", len(out.Previews), MaxMatchPreviews)
	}
}

func TestFindMatch_AmbiguousBelowCap(t *testing.T) {
	content := "x\nsame\ny\nsame\nz\nsame\n"
	out := FindMatch(content, []string{"same"}, MatchOptions{})
	if out.Kind != MatchAmbiguous {
		t.Fatalf("Kind = %v, want MatchAmbiguous", out.Kind)
	}
	if out.Occurrences != 3 || len(out.Previews) != 3 {
		t.Errorf("got %d occurrences, %d previews; want 3 and 3", out.Occurrences, len(out.Previews))
	}
}

func TestFindMatch_PreviewsCarryLineNumbers(t *testing.T) {
	content := "x\nsame\ny\nsame\n"
	out := FindMatch(content, []string{"same"}, MatchOptions{})
	if out.Kind != MatchAmbiguous {
		t.Fatalf("Kind = %v, want MatchAmbiguous", out.Kind)
	}
	if len(out.Previews) != 2 {
		t.Fatalf("len(Previews) = %d, want 2", len(out.Previews))
	}
	if !strings.Contains(out.Previews[0], "2: same") {
		t.Errorf("first preview missing numbered line:\n%s", out.Previews[0])
	}
	if !strings.Contains(out.Previews[1], "4: same") {
		t.Errorf("second preview missing numbered line:\n%s", out.Previews[1])
	}
}

func TestFindMatch_ReplaceAll(t *testing.T) {
	content := "same\nother\nsame\n"
	out := FindMatch(content, []string{"same"}, MatchOptions{ReplaceAll: true})
	if out.Kind != MatchExact {
		t.Fatalf("Kind = %v, want MatchExact", out.Kind)
	}
	if out.Occurrences != 2 {
		t.Errorf("Occurrences = %d, want 2", out.Occurrences)
	}
}

func TestFindMatch_FuzzyIndentation(t *testing.T) {
	content := "func main() {\n\tx := compute()\n\treturn x\n}\n"
	pattern := []string{"func main() {", "    x := compute()", "    return x", "}"}

	// Exact fails on the tab-vs-space difference.
	exact := FindMatch(content, pattern, MatchOptions{})
	if exact.Kind != MatchNotFound {
		t.Fatalf("exact Kind = %v, want MatchNotFound", exact.Kind)
	}

	out := FindMatch(content, pattern, MatchOptions{AllowFuzzy: true, Threshold: 0.9})
	if out.Kind != MatchFuzzy {
		t.Fatalf("Kind = %v, want MatchFuzzy", out.Kind)
	}
	if out.Similarity < 0.9 {
		t.Errorf("Similarity = %v, want >= 0.9", out.Similarity)
	}
	if !strings.Contains(content[out.Start:out.End], "x := compute()") {
		t.Errorf("matched window %q misses pattern body", content[out.Start:out.End])
	}
}

func TestFindMatch_NotFoundCarriesClosest(t *testing.T) {
	content := "the quick brown fox\njumps over\nthe lazy dog\n"
	out := FindMatch(content, []string{"the quick brown cat"}, MatchOptions{AllowFuzzy: true, Threshold: 0.99})
	if out.Kind != MatchNotFound {
		t.Fatalf("Kind = %v, want MatchNotFound", out.Kind)
	}
	if out.Closest != "the quick brown fox" {
		t.Errorf("Closest = %q, want the similar line", out.Closest)
	}
}

func TestFindMatch_EmptyPattern(t *testing.T) {
	out := FindMatch("anything", nil, MatchOptions{})
	if out.Kind != MatchNotFound {
		t.Errorf("Kind = %v, want MatchNotFound", out.Kind)
	}
}

func TestSimilarityRatio(t *testing.T) {
	tests := []struct {
		s1, s2 string
		min    float64
		max    float64
	}{
		{"", "", 1.0, 1.0},
		{"abc", "", 0.0, 0.0},
		{"abc", "abc", 1.0, 1.0},
		{"abcd", "abce", 0.7, 0.8},
		{"hello", "world", 0.0, 0.5},
	}
	for _, tt := range tests {
		got := similarityRatio(tt.s1, tt.s2)
		if got < tt.min || got > tt.max {
			t.Errorf("similarityRatio(%q, %q) = %v, want in [%v, %v]", tt.s1, tt.s2, got, tt.min, tt.max)
		}
	}
}

func TestFoldWhitespace(t *testing.T) {
	if got := foldWhitespace("  a \t b  "); got != "a b" {
		t.Errorf("foldWhitespace() = %q, want %q", got, "a b")
	}
}
