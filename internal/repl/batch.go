package repl

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/stitchagent/stitch/internal/agent"
	"github.com/stitchagent/stitch/internal/config"
	"github.com/stitchagent/stitch/internal/ui"
)

// RunBatch fans the prompts listed in batchPath out to parallel sub-agents
// and prints each final answer to stdout in prompt order. Concurrency comes
// from the agent.sub_agents config knob.
func RunBatch(opts agent.RunnerOptions, writer *ui.Writer, cfg *config.Config, systemPrompt, batchPath string) error {
	data, err := os.ReadFile(batchPath)
	if err != nil {
		return fmt.Errorf("read batch file: %w", err)
	}
	prompts := parseBatchPrompts(string(data))
	if len(prompts) == 0 {
		return fmt.Errorf("batch file %s contains no prompts", batchPath)
	}

	pool := agent.NewWorkerPool(opts, cfg.Agent.SubAgents)
	results, err := pool.Run(context.Background(), systemPrompt, prompts)
	if err != nil {
		return err
	}

	failed := 0
	for i, res := range results {
		if i > 0 {
			fmt.Println()
		}
		fmt.Fprintln(os.Stderr, ui.MakePrompt(res.Prompt))
		if res.Err != nil {
			failed++
			writer.Error(fmt.Sprintf("Sub-agent error: %v", res.Err))
			continue
		}
		fmt.Println(res.Answer)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d prompts failed", failed, len(results))
	}
	return nil
}

// parseBatchPrompts splits a batch file into prompts, one per line.
// Blank lines and '#' comment lines are skipped.
func parseBatchPrompts(text string) []string {
	var prompts []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	return prompts
}
