// Package ui provides terminal output formatting for the agent.
package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

var (
	// Muted yellow for startup info
	brownColor = color.New(color.FgYellow, color.Faint)

	// Gray for tool calls and thinking
	grayColor = color.New(color.FgWhite, color.Faint)

	errorColor = color.New(color.FgRed)
	warnColor  = color.New(color.FgYellow)
	whiteColor = color.New(color.FgWhite)

	// Diff line colors
	diffAddColor  = color.New(color.FgGreen)
	diffDelColor  = color.New(color.FgRed)
	diffMetaColor = color.New(color.FgCyan)
)

// JSONOutput is the structured result for --json mode.
type JSONOutput struct {
	Content string     `json:"content"`
	Stats   *JSONStats `json:"stats,omitempty"`
}

// JSONStats carries run statistics in JSON output.
type JSONStats struct {
	Session          string `json:"session,omitempty"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	DurationMs       int64  `json:"duration_ms"`
	Steps            int    `json:"steps"`
	ToolCalls        int    `json:"tool_calls"`
}

// Writer provides formatted output with consistent prefixes and colors.
type Writer struct {
	verboseLines int // 0 = off, >0 = show tool output up to this many lines
	quiet        bool
	jsonMode     bool // emit one JSON object instead of formatted text
	headless     bool // progress to stderr, final answer to stdout
	stderr       io.Writer
	stdout       io.Writer
}

func NewWriter(verboseLines int) *Writer {
	return &Writer{
		verboseLines: verboseLines,
		stderr:       os.Stderr,
		stdout:       os.Stdout,
	}
}

func (w *Writer) IsVerbose() bool      { return w.verboseLines > 0 }
func (w *Writer) SetVerbose(lines int) { w.verboseLines = lines }
func (w *Writer) SetQuiet(quiet bool)  { w.quiet = quiet }

func (w *Writer) SetJSONMode(jsonMode bool) { w.jsonMode = jsonMode }
func (w *Writer) IsJSONMode() bool          { return w.jsonMode }

// SetHeadless routes progress to stderr and the final answer to stdout.
func (w *Writer) SetHeadless(headless bool) { w.headless = headless }
func (w *Writer) IsHeadless() bool          { return w.headless }

// jsonContent accumulates the final answer for JSON mode.
var jsonContent string

// WriteJSONOutput prints the final JSON object to stdout.
func (w *Writer) WriteJSONOutput(stats *JSONStats) {
	if !w.jsonMode {
		return
	}
	data, _ := json.MarshalIndent(JSONOutput{Content: jsonContent, Stats: stats}, "", "  ")
	fmt.Fprintln(w.stdout, string(data))
	jsonContent = ""
}

// StartupInfo prints startup information.
func (w *Writer) StartupInfo(msg string) {
	if w.quiet {
		return
	}
	if w.headless {
		fmt.Fprintln(w.stderr, msg)
	} else {
		brownColor.Println(msg)
	}
}

func (w *Writer) Info(msg string) {
	if w.quiet {
		return
	}
	if w.headless {
		fmt.Fprintf(w.stderr, "[info] %s\n", msg)
	} else {
		grayColor.Printf("[info] %s\n", msg)
	}
}

func (w *Writer) Warn(msg string) {
	if w.quiet {
		return
	}
	if w.headless {
		fmt.Fprintf(w.stderr, "[warn] %s\n", msg)
	} else {
		warnColor.Printf("[warn] %s\n", msg)
	}
}

func (w *Writer) Error(msg string) {
	if w.quiet {
		return
	}
	if w.headless {
		fmt.Fprintf(w.stderr, "[error] %s\n", msg)
	} else {
		errorColor.Printf("[error] %s\n", msg)
	}
}

// Assistant prints the model's answer. In headless mode it is the one thing
// that goes to stdout; in JSON mode it is kept for WriteJSONOutput.
func (w *Writer) Assistant(msg string) {
	if w.jsonMode {
		jsonContent = msg
		return
	}
	if w.headless {
		fmt.Fprintf(w.stdout, "%s\n", msg)
	} else {
		whiteColor.Printf("%s\n\n", msg)
	}
}

func (w *Writer) Debug(msg string) {
	if w.quiet || w.verboseLines <= 0 {
		return
	}
	if w.headless {
		fmt.Fprintf(w.stderr, "[debug] %s\n", msg)
	} else {
		grayColor.Printf("[debug] %s\n", msg)
	}
}

// Thinking prints reasoning text in gray.
func (w *Writer) Thinking(context, msg string) {
	if w.quiet {
		return
	}
	output := "* " + msg
	if context != "" {
		output = fmt.Sprintf("*(%s) %s", context, msg)
	}
	if w.headless {
		fmt.Fprintln(w.stderr, output)
	} else {
		grayColor.Println(output)
	}
}

// ToolCall prints a compact tool call representation.
func (w *Writer) ToolCall(name, argsDisplay, context string) {
	if w.quiet {
		return
	}
	progressLine = ""
	output := fmt.Sprintf("  %s[%s]", name, argsDisplay)
	if context != "" {
		output = fmt.Sprintf("  (%s) %s[%s]", context, name, argsDisplay)
	}
	if w.headless {
		fmt.Fprintln(w.stderr, output)
	} else {
		grayColor.Println(output)
	}
}

// progressLine accumulates the current progress output.
var progressLine string

// ToolProgress prints a progress indicator for long-running operations.
// A dot containing a newline is the final timing output; a sparkle prefix
// starts a fresh line.
func (w *Writer) ToolProgress(dot string) {
	if w.quiet || w.jsonMode {
		return
	}
	if w.headless {
		// No terminal control sequences without a terminal.
		if strings.Contains(dot, "\n") || strings.HasPrefix(dot, "✨") {
			progressLine = ""
		} else {
			progressLine += dot
		}
		return
	}
	if strings.Contains(dot, "\n") {
		fmt.Print("\r")
		grayColor.Print(progressLine + dot)
		progressLine = ""
		return
	}
	if strings.HasPrefix(dot, "✨") {
		progressLine = ""
	}
	progressLine += dot
	fmt.Print("\r")
	grayColor.Print(progressLine)
	fmt.Print("\n\033[1A")
}

// ToolResult prints a tool result summary.
func (w *Writer) ToolResult(summary, duration string) {
	if w.quiet {
		return
	}
	progressLine = ""
	if w.headless {
		if duration != "" {
			fmt.Fprintf(w.stderr, "  %s\n", duration)
		}
		fmt.Fprintf(w.stderr, "  → %s\n", summary)
		return
	}
	if duration != "" {
		grayColor.Printf("\n  %s\n", duration)
	}
	grayColor.Printf("  → %s\n", summary)
}

// VerboseOutput prints tool output in verbose mode, keeping the first and
// last half of the allowed lines when the output is longer.
func (w *Writer) VerboseOutput(output string) bool {
	if w.quiet || w.verboseLines <= 0 || output == "" {
		return false
	}

	lines := strings.Split(strings.TrimSuffix(output, "\n"), "\n")
	if len(lines) > w.verboseLines {
		head := w.verboseLines / 2
		tail := w.verboseLines - head
		omitted := len(lines) - head - tail
		trimmed := make([]string, 0, w.verboseLines+1)
		trimmed = append(trimmed, lines[:head]...)
		trimmed = append(trimmed, fmt.Sprintf("... (%d lines omitted) ...", omitted))
		trimmed = append(trimmed, lines[len(lines)-tail:]...)
		lines = trimmed
	}

	for _, line := range lines {
		if w.headless {
			fmt.Fprintf(w.stderr, "    %s\n", line)
		} else {
			grayColor.Printf("    %s\n", line)
		}
	}
	return true
}

// DiffBlock prints a unified diff with added, removed and hunk header lines
// colored.
func (w *Writer) DiffBlock(diff string) {
	if w.quiet || diff == "" {
		return
	}
	for _, line := range strings.Split(strings.TrimSuffix(diff, "\n"), "\n") {
		if w.headless {
			fmt.Fprintf(w.stderr, "  %s\n", line)
			continue
		}
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			diffMetaColor.Printf("  %s\n", line)
		case strings.HasPrefix(line, "@@"):
			diffMetaColor.Printf("  %s\n", line)
		case strings.HasPrefix(line, "+"):
			diffAddColor.Printf("  %s\n", line)
		case strings.HasPrefix(line, "-"):
			diffDelColor.Printf("  %s\n", line)
		default:
			grayColor.Printf("  %s\n", line)
		}
	}
}
