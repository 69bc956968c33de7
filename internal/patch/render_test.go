package patch

import (
	"strings"
	"testing"
)

func TestRenderUnified(t *testing.T) {
	old := "one\ntwo\nthree\n"
	new := "one\n2\nthree\n"

	diff, first := RenderUnified(old, new, "nums.txt")
	if !strings.Contains(diff, "-two") || !strings.Contains(diff, "+2") {
		t.Errorf("diff missing change lines:\n%s", diff)
	}
	if !strings.Contains(diff, "nums.txt") {
		t.Errorf("diff missing file name:\n%s", diff)
	}
	if first != 2 {
		t.Errorf("first changed line = %d, want 2", first)
	}
}

func TestFirstChangedLine(t *testing.T) {
	tests := []struct {
		name string
		old  string
		new  string
		want int
	}{
		{name: "identical", old: "a\nb", new: "a\nb", want: 0},
		{name: "first line", old: "a\nb", new: "x\nb", want: 1},
		{name: "middle", old: "a\nb\nc", new: "a\nx\nc", want: 2},
		{name: "appended", old: "a\nb", new: "a\nb\nc", want: 3},
		{name: "empty to content", old: "", new: "x", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FirstChangedLine(tt.old, tt.new); got != tt.want {
				t.Errorf("FirstChangedLine() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRenderCompact(t *testing.T) {
	got := RenderCompact("one\ntwo\nthree\n", "one\n2\nthree\n")
	if !strings.Contains(got, "-two") || !strings.Contains(got, "+2") {
		t.Errorf("compact diff missing change lines:\n%s", got)
	}
	if strings.Contains(got, "@@") || strings.Contains(got, "+++") {
		t.Errorf("compact diff should carry no headers:\n%s", got)
	}
}

func TestRenderInline(t *testing.T) {
	got := RenderInline("return cats", "return dogs")
	if !strings.Contains(got, "[-") || !strings.Contains(got, "{+") {
		t.Errorf("inline diff missing change markers: %q", got)
	}
	if !strings.Contains(got, "return ") {
		t.Errorf("inline diff should keep common text: %q", got)
	}
}
