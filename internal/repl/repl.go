// Package repl provides the exec mode runner for the agent.
package repl

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/stitchagent/stitch/internal/agent"
	"github.com/stitchagent/stitch/internal/config"
	"github.com/stitchagent/stitch/internal/llm"
	"github.com/stitchagent/stitch/internal/session"
	"github.com/stitchagent/stitch/internal/ui"
)

// RunExec runs the agent once with a single prompt, loading and saving
// the conversation through the session manager.
func RunExec(runner *agent.Runner, writer *ui.Writer, cfg *config.Config, systemPrompt, promptText string, quietMode bool, sessionName string, sessionMgr *session.Manager) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt},
	}

	isNewSession := true
	if sessionMgr != nil {
		if sessionName == "" {
			sessionName = sessionMgr.GenerateName()
		} else if sessionMgr.Exists(sessionName) {
			sessionMessages, err := sessionMgr.Load(sessionName)
			if err != nil {
				writer.Error(fmt.Sprintf("Failed to load session: %v", err))
			} else {
				// Drop stored system messages; the fresh system prompt
				// reflects the current tool registry and config.
				for _, msg := range sessionMessages {
					if msg.Role != llm.RoleSystem {
						messages = append(messages, msg)
					}
				}
				isNewSession = false
				if !quietMode {
					fmt.Fprintf(os.Stderr, "Continuing session: %s (%d messages)\n\n", sessionName, len(sessionMessages))
				}
			}
		} else {
			if !quietMode {
				fmt.Fprintf(os.Stderr, "Starting new session: %s\n\n", sessionName)
			}
		}
	}

	if !quietMode {
		for _, line := range strings.Split(promptText, "\n") {
			fmt.Fprintln(os.Stderr, ui.MakePrompt(line))
		}
		fmt.Fprintln(os.Stderr)
	}

	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: promptText,
	})

	result, err := runner.Run(context.Background(), agent.RunConfig{
		Messages:  messages,
		QuietMode: quietMode,
	})
	if err != nil {
		writer.Error(fmt.Sprintf("Agent error: %v", err))
		return
	}

	if sessionMgr != nil && sessionName != "" {
		if err := sessionMgr.Save(sessionName, result.FinalMessages); err != nil {
			writer.Error(fmt.Sprintf("Failed to save session: %v", err))
		}
	}

	if writer.IsJSONMode() {
		writer.WriteJSONOutput(&ui.JSONStats{
			Session:          sessionName,
			PromptTokens:     result.Stats.TotalPromptTokens,
			CompletionTokens: result.Stats.TotalCompletionTokens,
			TotalTokens:      result.Stats.TotalPromptTokens + result.Stats.TotalCompletionTokens,
			DurationMs:       result.Stats.TotalAgentTime.Milliseconds(),
			Steps:            result.Stats.Steps,
			ToolCalls:        result.Stats.ToolCalls,
		})
	} else {
		result.Stats.PrintTo(os.Stderr)
	}

	// Session info is part of the JSON output in JSON mode.
	if !writer.IsJSONMode() && sessionMgr != nil && sessionName != "" {
		if quietMode {
			if isNewSession {
				fmt.Fprintf(os.Stderr, "[new] %s\n", sessionName)
			} else {
				fmt.Fprintf(os.Stderr, "[continued] %s\n", sessionName)
			}
		} else {
			fmt.Fprintln(os.Stderr)
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 50))
			fmt.Fprintf(os.Stderr, "Session: %s\n", sessionName)
			fmt.Fprintf(os.Stderr, "Continue with: stitch -p \"your message\" -s %s\n", sessionName)
		}
	}
}
