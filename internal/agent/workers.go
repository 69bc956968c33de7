package agent

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/stitchagent/stitch/internal/llm"
	"github.com/stitchagent/stitch/internal/stats"
	"github.com/stitchagent/stitch/internal/ui"
)

// WorkerPool fans independent prompts out to sub-agents with bounded
// concurrency. Each sub-agent runs the full agent loop with its own quiet
// writer; only the final answers come back.
type WorkerPool struct {
	opts  RunnerOptions
	limit int
}

// SubResult is the outcome of one sub-agent run.
type SubResult struct {
	Prompt string
	Answer string
	Stats  *stats.RunStats
	Err    error
}

// NewWorkerPool creates a pool reusing the parent runner's dependencies.
// limit caps concurrent sub-agents; values < 1 mean one at a time.
func NewWorkerPool(opts RunnerOptions, limit int) *WorkerPool {
	if limit < 1 {
		limit = 1
	}
	return &WorkerPool{opts: opts, limit: limit}
}

// Run executes every prompt as its own conversation under systemPrompt.
// Results come back in prompt order. A cancelled context stops the pool;
// per-prompt failures are reported in their SubResult instead.
func (p *WorkerPool) Run(ctx context.Context, systemPrompt string, prompts []string) ([]SubResult, error) {
	results := make([]SubResult, len(prompts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)

	for i, prompt := range prompts {
		i, prompt := i, prompt
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			writer := ui.NewWriter(0)
			writer.SetQuiet(true)

			runner := NewRunner(RunnerOptions{
				Cfg:       p.opts.Cfg,
				LLMClient: p.opts.LLMClient,
				Registry:  p.opts.Registry,
				Writer:    writer,
				Logger:    p.opts.Logger,
			})

			messages := []llm.Message{
				{Role: llm.RoleSystem, Content: systemPrompt},
				{Role: llm.RoleUser, Content: prompt},
			}

			res, err := runner.Run(gctx, RunConfig{Messages: messages, QuietMode: true})
			if err != nil {
				results[i] = SubResult{Prompt: prompt, Err: err}
				return nil
			}
			if res.Cancelled {
				results[i] = SubResult{Prompt: prompt, Stats: res.Stats, Err: fmt.Errorf("sub-agent cancelled")}
				return nil
			}
			results[i] = SubResult{
				Prompt: prompt,
				Answer: finalAnswer(res.FinalMessages),
				Stats:  res.Stats,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// finalAnswer returns the content of the last assistant message.
func finalAnswer(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleAssistant && messages[i].Content != "" {
			return messages[i].Content
		}
	}
	return ""
}
