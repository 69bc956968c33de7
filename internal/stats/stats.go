// Package stats tracks cumulative run statistics for the agent loop.
package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// RunStats accumulates counters across all iterations of a single run.
type RunStats struct {
	TotalPromptTokens     int
	TotalCompletionTokens int
	TotalAgentTime        time.Duration
	TotalLLMTime          time.Duration
	TotalToolTime         time.Duration
	Steps                 int // number of LLM round-trips
	ToolCalls             int
	MaxContextUsed        int
}

// RunStatsJSON is the wire format for run stats.
type RunStatsJSON struct {
	Tokens struct {
		Prompt     int `json:"prompt"`
		Completion int `json:"completion"`
	} `json:"tokens"`
	Timing struct {
		TotalAgentSeconds float64 `json:"total_agent_seconds"`
		LLMSeconds        float64 `json:"llm_seconds"`
		ToolSeconds       float64 `json:"tool_seconds"`
	} `json:"timing"`
	Steps          int `json:"steps"`
	ToolCalls      int `json:"tool_calls"`
	MaxContextUsed int `json:"max_context_used"`
}

// ToJSON converts RunStats to its JSON representation.
func (s *RunStats) ToJSON() RunStatsJSON {
	var j RunStatsJSON
	j.Tokens.Prompt = s.TotalPromptTokens
	j.Tokens.Completion = s.TotalCompletionTokens
	j.Timing.TotalAgentSeconds = s.TotalAgentTime.Seconds()
	j.Timing.LLMSeconds = s.TotalLLMTime.Seconds()
	j.Timing.ToolSeconds = s.TotalToolTime.Seconds()
	j.Steps = s.Steps
	j.ToolCalls = s.ToolCalls
	j.MaxContextUsed = s.MaxContextUsed
	return j
}

// Print outputs the stats as a formatted JSON block to stdout.
func (s *RunStats) Print() {
	s.PrintTo(os.Stdout)
}

// PrintTo outputs the stats as a formatted JSON block to the given writer.
func (s *RunStats) PrintTo(w io.Writer) {
	jsonBytes, _ := json.MarshalIndent(s.ToJSON(), "", "  ")
	fmt.Fprintln(w, "=== RUN STATS START ===")
	fmt.Fprintln(w, string(jsonBytes))
	fmt.Fprintln(w, "=== RUN STATS END ===")
}
