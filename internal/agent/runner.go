// Package agent implements the iteration loop that drives LLM tool use.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/stitchagent/stitch/internal/config"
	"github.com/stitchagent/stitch/internal/llm"
	"github.com/stitchagent/stitch/internal/stats"
	"github.com/stitchagent/stitch/internal/tools"
	"github.com/stitchagent/stitch/internal/ui"
)

const (
	defaultMaxIterations      = 10
	maxConsecutiveDuplicates  = 3
	maxOverflowRetries        = 2
	maxEmptyReasoningRetries  = 3
	maxProviderRetries        = 2
	nonShellToolTimeout       = 15 * time.Second
	loopThresholdIdentical    = 3
	loopThresholdSameToolFail = 4
)

// Runner executes the agent loop for a single user request.
type Runner struct {
	cfg       *config.Config
	llmClient *llm.Client
	registry  *tools.Registry
	writer    *ui.Writer
	logger    *Logger
}

// RunnerOptions bundles the dependencies for a Runner.
type RunnerOptions struct {
	Cfg       *config.Config
	LLMClient *llm.Client
	Registry  *tools.Registry
	Writer    *ui.Writer
	Logger    *Logger
}

// RunConfig carries per-run options.
type RunConfig struct {
	Messages  []llm.Message
	QuietMode bool
}

// RunResult is what a completed (or aborted) run hands back.
type RunResult struct {
	Stats         *stats.RunStats
	FinalMessages []llm.Message
	Cancelled     bool
}

func NewRunner(opts RunnerOptions) *Runner {
	return &Runner{
		cfg:       opts.Cfg,
		llmClient: opts.LLMClient,
		registry:  opts.Registry,
		writer:    opts.Writer,
		logger:    opts.Logger,
	}
}

// Run iterates LLM calls and tool executions until the model produces a
// final answer, the iteration limit is reached, or the context is cancelled.
func (r *Runner) Run(ctx context.Context, rcfg RunConfig) (*RunResult, error) {
	messages := rcfg.Messages

	loopDetector := NewLoopDetector()

	var lastToolName, lastToolArgs string
	var consecutiveDuplicates int
	var overflowRetries int
	var emptyReasoningRetries int
	var providerFailures int

	maxIters := r.cfg.Agent.MaxIterations
	if maxIters == 0 {
		maxIters = defaultMaxIterations
	}

	requestStart := time.Now()
	runStats := &stats.RunStats{}
	result := &RunResult{Stats: runStats}

	for i := 0; i < maxIters; i++ {
		r.logger.AgentIteration(i, 0)

		iterCtx, iterCancel := context.WithCancel(ctx)

		r.writer.ToolProgress("✨ ")
		llmStart := time.Now()
		llmDone := make(chan struct{})
		var llmDots atomic.Int64
		go func() {
			ticker := time.NewTicker(1 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					r.writer.ToolProgress(".")
					llmDots.Add(1)
				case <-llmDone:
					return
				}
			}
		}()

		resp, err := r.chat(iterCtx, messages)
		close(llmDone)
		duration := time.Since(llmStart)
		runStats.TotalLLMTime += duration

		if llmDots.Load() == 0 {
			fmt.Print("\n")
		}

		if err != nil {
			if iterCtx.Err() == context.Canceled {
				r.writer.Info("LLM call cancelled - returning to prompt")
				if len(messages) > 0 && messages[len(messages)-1].Role == llm.RoleTool {
					messages = append(messages, llm.Message{
						Role:    llm.RoleAssistant,
						Content: "[Operation cancelled by user]",
					})
				}
				result.Cancelled = true
				iterCancel()
				break
			}

			// A 400 after a big tool output usually means the context
			// overflowed. Blank out the trailing tool results and retry.
			if strings.Contains(err.Error(), "API error 400") && overflowRetries < maxOverflowRetries {
				overflowRetries++
				r.writer.Warn(fmt.Sprintf("Server rejected request (attempt %d/%d) - trimming tool output and retrying",
					overflowRetries, maxOverflowRetries))
				for j := len(messages) - 1; j >= 0 && messages[j].Role == llm.RoleTool; j-- {
					messages[j].Content = "[Tool output removed: the server could not process it. Re-run the tool with a narrower request or try a different approach.]"
				}
				iterCancel()
				continue
			}

			r.writer.Error(err.Error())
			r.logger.Error("LLM call failed", err)
			iterCancel()
			break
		}

		if len(resp.Choices) == 0 {
			r.writer.Error("No response from model")
			iterCancel()
			break
		}

		// Upstream providers sometimes tunnel their errors inside a choice.
		if resp.Choices[0].Error != nil {
			providerFailures++
			choiceErr := resp.Choices[0].Error
			if providerFailures >= maxProviderRetries {
				r.writer.Error(fmt.Sprintf("Provider failed %d times (code %d): %s",
					providerFailures, choiceErr.Code, choiceErr.Message))
				iterCancel()
				break
			}
			r.writer.Warn(fmt.Sprintf("Provider error (code %d): %s - retrying", choiceErr.Code, choiceErr.Message))
			iterCancel()
			continue
		}
		providerFailures = 0

		assistantMsg := resp.Choices[0].Message
		llm.NormalizeResponse(&assistantMsg)
		messages, _ = llm.PreventConsecutiveAssistant(messages)
		messages = append(messages, assistantMsg)

		promptTokens := resp.Usage.PromptTokens
		completionTokens := resp.Usage.CompletionTokens
		totalTokens := promptTokens + completionTokens
		runStats.TotalPromptTokens += promptTokens
		runStats.TotalCompletionTokens += completionTokens
		if totalTokens > runStats.MaxContextUsed {
			runStats.MaxContextUsed = totalTokens
		}
		runStats.Steps++
		r.logger.LLMCall(r.cfg.LLM.Model, promptTokens, completionTokens, duration)

		if llmDots.Load() > 0 {
			r.writer.ToolProgress(fmt.Sprintf("%.0fs\n", duration.Seconds()))
		}

		// No tool calls means the model is done.
		if len(assistantMsg.ToolCalls) == 0 {
			if assistantMsg.Content == "" && assistantMsg.ReasoningContent != "" {
				if emptyReasoningRetries < maxEmptyReasoningRetries {
					emptyReasoningRetries++
					r.writer.Warn(fmt.Sprintf("Model produced reasoning but no answer, retrying (%d/%d)",
						emptyReasoningRetries, maxEmptyReasoningRetries))
					messages = messages[:len(messages)-1]
					iterCancel()
					continue
				}
				// Give up coaxing and surface the reasoning as the answer.
				assistantMsg.Content = assistantMsg.ReasoningContent
				assistantMsg.ReasoningContent = ""
				messages[len(messages)-1] = assistantMsg
			}

			r.writer.Assistant(assistantMsg.Content)
			r.printRunSummary(runStats, requestStart)
			result.FinalMessages = messages
			iterCancel()
			break
		}

		emptyReasoningRetries = 0
		r.logger.AgentIteration(i, len(assistantMsg.ToolCalls))

		contextStr := ui.FormatContextStr(totalTokens, 0)
		if assistantMsg.ReasoningContent != "" {
			r.writer.Thinking(contextStr, assistantMsg.ReasoningContent)
		}
		if assistantMsg.Content != "" {
			r.writer.Thinking(contextStr, assistantMsg.Content)
		}

		runStats.ToolCalls += len(assistantMsg.ToolCalls)
		cancelled := false

		for _, tc := range assistantMsg.ToolCalls {
			if iterCtx.Err() != nil {
				messages = append(messages, llm.Message{
					Role:       llm.RoleTool,
					Name:       tc.Function.Name,
					ToolCallID: tc.ID,
					Content:    "Error: Cancelled by user",
				})
				cancelled = true
				continue
			}

			// Three identical calls back to back is a hard stop.
			if tc.Function.Name == lastToolName && tc.Function.Arguments == lastToolArgs {
				consecutiveDuplicates++
				if consecutiveDuplicates >= maxConsecutiveDuplicates {
					r.writer.Error(fmt.Sprintf("%s called %d times with identical arguments - stopping",
						tc.Function.Name, consecutiveDuplicates))
					r.finishStats(runStats, requestStart)
					result.FinalMessages = messages
					iterCancel()
					return result, fmt.Errorf("duplicate call loop: %s repeated %d times", tc.Function.Name, consecutiveDuplicates)
				}
				dupErr := tools.SemanticErrorf("duplicate call: you just made this exact call and the result will not change. Use different arguments or a different tool.")
				errContent := tools.FormatError(dupErr)
				messages = append(messages, llm.Message{
					Role:       llm.RoleTool,
					Name:       tc.Function.Name,
					ToolCallID: tc.ID,
					Content:    errContent,
				})
				r.writer.ToolResult("Error: duplicate call", "")
				loopDetector.Record(tc.Function.Name, tc.Function.Arguments, errContent, true)
				continue
			}
			consecutiveDuplicates = 0

			content, isError := r.executeToolCall(iterCtx, tc, contextStr, runStats)
			messages = append(messages, llm.Message{
				Role:       llm.RoleTool,
				Name:       tc.Function.Name,
				ToolCallID: tc.ID,
				Content:    content,
			})
			loopDetector.Record(tc.Function.Name, tc.Function.Arguments, content, isError)
			lastToolName = tc.Function.Name
			lastToolArgs = tc.Function.Arguments

			if iterCtx.Err() != nil {
				cancelled = true
			}
		}

		if msg := loopIntervention(loopDetector); msg != "" {
			if len(messages) > 0 && messages[len(messages)-1].Role == llm.RoleTool {
				messages[len(messages)-1].Content += msg
			}
			r.writer.Warn("Loop detected - nudging the model toward a different approach")
		}

		if cancelled {
			r.writer.Info("Tool execution cancelled - returning to prompt")
			result.Cancelled = true
			result.FinalMessages = messages
			iterCancel()
			break
		}

		iterCancel()
	}

	r.finishStats(runStats, requestStart)
	result.FinalMessages = messages
	return result, nil
}

// chat issues a single completion request with the registered tool specs.
func (r *Runner) chat(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error) {
	return r.llmClient.Chat(ctx, llm.ChatRequest{
		Model:       r.cfg.LLM.Model,
		Messages:    messages,
		Tools:       r.registry.Specs(),
		ToolChoice:  "auto",
		Temperature: r.cfg.LLM.Temperature,
		MaxTokens:   r.cfg.LLM.MaxTokens,
		Stream:      false,
	})
}

// executeToolCall validates and runs one tool call, returning the content
// for the tool message and whether it counts as an error.
func (r *Runner) executeToolCall(ctx context.Context, tc llm.ToolCall, contextStr string, runStats *stats.RunStats) (string, bool) {
	tool := r.registry.Get(tc.Function.Name)
	if tool == nil {
		unknownErr := tools.SemanticErrorf("unknown tool %q - only the tools listed in the system prompt are available", tc.Function.Name)
		r.writer.Error(fmt.Sprintf("Unknown tool: %s", tc.Function.Name))
		return tools.FormatError(unknownErr), true
	}

	args := json.RawMessage(tc.Function.Arguments)
	if err := tool.Check(ctx, args); err != nil {
		errContent := tools.FormatError(err)
		r.writer.ToolResult(fmt.Sprintf("Error: %v", err), "")
		return errContent, true
	}

	r.displayToolCall(tc, contextStr)

	toolCtx := ctx
	if tc.Function.Name != "Shell" {
		var cancel context.CancelFunc
		toolCtx, cancel = context.WithTimeout(ctx, nonShellToolTimeout)
		defer cancel()
	}

	toolStart := time.Now()
	progressDone := make(chan struct{})
	dots := 0
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.writer.ToolProgress(".")
				dots++
			case <-progressDone:
				return
			}
		}
	}()

	toolResult, toolErr := tool.Call(toolCtx, args)
	if toolCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		toolErr = fmt.Errorf("tool execution timed out after %s", nonShellToolTimeout)
	}
	close(progressDone)
	toolDuration := time.Since(toolStart)
	runStats.TotalToolTime += toolDuration

	if toolErr != nil {
		// Semantic failures are the model's to fix; show them compactly.
		// Runtime failures get the loud error channel.
		if tools.IsSemantic(toolErr) {
			r.writer.ToolResult(fmt.Sprintf("Error: %s", firstLine(toolErr.Error())), "")
		} else {
			r.writer.Error(fmt.Sprintf("Tool error: %v", toolErr))
		}
		r.logger.ToolExecuted(tc.Function.Name, toolDuration, false, toolErr)
		return tools.FormatError(toolErr), true
	}

	resultJSON, _ := json.MarshalIndent(toolResult, "", "  ")
	content := string(resultJSON)

	var durationStr string
	if dots > 0 {
		durationStr = fmt.Sprintf("...%.0fs", toolDuration.Seconds())
	}
	r.writer.ToolResult(ui.GetResultSummary(toolResult), durationStr)
	r.writer.VerboseOutput(content)
	r.logger.ToolExecuted(tc.Function.Name, toolDuration, true, nil)

	isError := strings.Contains(content, "\"success\": false")
	return content, isError
}

func (r *Runner) displayToolCall(tc llm.ToolCall, contextStr string) {
	var args map[string]any
	_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)

	if tc.Function.Name == "Shell" {
		cmdStr, _ := args["command"].(string)
		wdStr, _ := args["working_dir"].(string)
		r.writer.ToolCall("Shell", ui.FormatShellDisplay(cmdStr, wdStr, r.cfg.Workspace.Root), contextStr)
		return
	}
	r.writer.ToolCall(tc.Function.Name, ui.FormatToolArgs(args), contextStr)
}

// loopIntervention returns a reminder to append to the last tool message
// when the detector sees the model spinning.
func loopIntervention(ld *LoopDetector) string {
	if info := ld.DetectLoop(loopThresholdIdentical); info != nil {
		kind := "identical arguments and results"
		if info.IsError {
			kind = "the same failing result"
		}
		return fmt.Sprintf("\n\n<system-reminder>\n"+
			"LOOP DETECTED: you have called '%s' %d times in a row with %s. "+
			"Stop and try a different approach.\n"+
			"</system-reminder>", info.ToolName, info.Count, kind)
	}
	if info := ld.DetectErrorLoop(loopThresholdSameToolFail); info != nil {
		return fmt.Sprintf("\n\n<system-reminder>\n"+
			"ERROR LOOP DETECTED: '%s' has failed %d times in a row. "+
			"Try a completely different approach or tool.\n"+
			"</system-reminder>", info.ToolName, info.Count)
	}
	return ""
}

func firstLine(s string) string {
	if idx := strings.Index(s, "\n"); idx > 0 {
		return s[:idx]
	}
	return s
}

func (r *Runner) finishStats(runStats *stats.RunStats, requestStart time.Time) {
	if runStats.TotalAgentTime == 0 {
		runStats.TotalAgentTime = time.Since(requestStart)
	}
}

func (r *Runner) printRunSummary(runStats *stats.RunStats, requestStart time.Time) {
	totalTime := time.Since(requestStart)
	runStats.TotalAgentTime = totalTime
	if runStats.ToolCalls > 0 {
		r.writer.Info(fmt.Sprintf("[%s: %s✨ + %s🔧x%d]",
			ui.FormatDuration(totalTime),
			ui.FormatDuration(runStats.TotalLLMTime),
			ui.FormatDuration(runStats.TotalToolTime),
			runStats.ToolCalls))
		return
	}
	r.writer.Info(fmt.Sprintf("[%s: %s✨]",
		ui.FormatDuration(totalTime),
		ui.FormatDuration(runStats.TotalLLMTime)))
}
