package patch

import (
	"fmt"
	"strings"
)

// ParseError reports malformed patch grammar.
type ParseError struct {
	Message string
	Line    int // 1-based line in the diff text, 0 when unknown
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

func parseErrorf(line int, format string, args ...any) *ParseError {
	return &ParseError{Message: fmt.Sprintf(format, args...), Line: line}
}

// ApplyError reports a failure while applying a file operation.
type ApplyError struct {
	Op      Operation
	Path    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ApplyError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, msg)
	}
	return msg
}

// Unwrap returns the wrapped error, if any
func (e *ApplyError) Unwrap() error {
	return e.Err
}

func applyErrorf(op Operation, path, format string, args ...any) *ApplyError {
	return &ApplyError{Op: op, Path: path, Message: fmt.Sprintf(format, args...)}
}

// MatchError reports a failed or ambiguous content match. Closest carries the
// most similar candidate found (for no-match diagnostics); Previews carries up
// to MaxMatchPreviews rendered occurrences (for ambiguous-match diagnostics).
type MatchError struct {
	Path        string
	Closest     string
	Occurrences int
	Previews    []string
}

// Error implements the error interface
func (e *MatchError) Error() string {
	if e.Occurrences > 1 {
		var sb strings.Builder
		fmt.Fprintf(&sb, "found %d occurrences of the target text - add more surrounding context to make the match unique", e.Occurrences)
		for i, p := range e.Previews {
			fmt.Fprintf(&sb, "\n\noccurrence %d:\n%s", i+1, p)
		}
		return sb.String()
	}
	if e.Closest != "" {
		return fmt.Sprintf("target text not found in file; closest match:\n%s", e.Closest)
	}
	return "target text not found in file"
}
