package patch

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "begin and end wrapper stripped",
			raw:  "*** Begin Patch\n@@ foo\n-a\n+b\n*** End Patch",
			want: "@@ foo\n-a\n+b",
		},
		{
			name: "begin marker alone",
			raw:  "*** Begin Patch\n@@\n-a\n+b",
			want: "@@\n-a\n+b",
		},
		{
			name: "end marker alone",
			raw:  "@@\n-a\n+b\n*** End Patch",
			want: "@@\n-a\n+b",
		},
		{
			name: "stray bare sentinel removed",
			raw:  "@@\n-a\n***\n+b",
			want: "@@\n-a\n+b",
		},
		{
			name: "trailing blank lines stripped",
			raw:  "@@\n-a\n+b\n\n\n",
			want: "@@\n-a\n+b",
		},
		{
			name: "blank context line survives",
			raw:  "@@\n-a\n+b\n \n",
			want: "@@\n-a\n+b\n ",
		},
		{
			name: "unified metadata stripped",
			raw:  "diff --git a/x.go b/x.go\nindex 83db48f..bf269f4 100644\n--- a/x.go\n+++ b/x.go\n@@ -1,1 +1,1 @@\n-a\n+b",
			want: "@@ -1,1 +1,1 @@\n-a\n+b",
		},
		{
			name: "codex file marker stripped",
			raw:  "*** Update File: x.go\n@@ foo\n-a\n+b",
			want: "@@ foo\n-a\n+b",
		},
		{
			name: "removal resembling metadata is kept",
			raw:  "@@\n- a\n+ b",
			want: "@@\n- a\n+ b",
		},
		{
			name: "crlf normalized",
			raw:  "@@\r\n-a\r\n+b\r\n",
			want: "@@\n-a\n+b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)
			if got != tt.want {
				t.Errorf("Normalize() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeCreateContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "plain content untouched",
			content: "package main\n\nfunc main() {}\n",
			want:    "package main\n\nfunc main() {}\n",
		},
		{
			name:    "uniform plus prefix stripped",
			content: "+package main\n+\n+func main() {}",
			want:    "package main\n\nfunc main() {}",
		},
		{
			name:    "uniform plus-space prefix stripped",
			content: "+ package main\n+ func main() {}",
			want:    "package main\nfunc main() {}",
		},
		{
			name:    "mixed prefixes untouched",
			content: "+package main\nfunc main() {}",
			want:    "+package main\nfunc main() {}",
		},
		{
			name:    "empty lines allowed between prefixed lines",
			content: "+a\n\n+b",
			want:    "a\n\nb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeCreateContent(tt.content)
			if got != tt.want {
				t.Errorf("NormalizeCreateContent() = %q, want %q", got, tt.want)
			}
		})
	}
}
