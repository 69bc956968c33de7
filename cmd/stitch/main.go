package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/stitchagent/stitch/internal/agent"
	"github.com/stitchagent/stitch/internal/config"
	"github.com/stitchagent/stitch/internal/llm"
	"github.com/stitchagent/stitch/internal/prompt"
	"github.com/stitchagent/stitch/internal/repl"
	"github.com/stitchagent/stitch/internal/session"
	"github.com/stitchagent/stitch/internal/tools"
	"github.com/stitchagent/stitch/internal/ui"
	"github.com/stitchagent/stitch/internal/workspace"
)

// Version info set by ldflags at build time
var (
	version    = "dev"
	commitHash = "dev"
	commitDate = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	model := flag.String("model", "", "override model name")
	baseURL := flag.String("base-url", "", "override LLM base URL")
	logFile := flag.String("log", "", "log file path (default from config, empty to disable)")
	execPrompt := flag.String("p", "", "exec mode: run with this prompt and exit after completion")
	quietPrompt := flag.String("pq", "", "quiet exec mode: run with this prompt and only print final LLM response")
	batchFile := flag.String("batch", "", "batch mode: run each prompt in this file through a sub-agent (agent.sub_agents sets concurrency)")
	jsonOutput := flag.Bool("json", false, "output structured JSON messages to stderr")
	showVersion := flag.Bool("version", false, "show version information and exit")

	sessionName := flag.String("s", "", "session name: continue existing session or create new one with this name")
	sessionList := flag.Bool("sessions", false, "list all sessions and exit")
	sessionDelete := flag.String("session-delete", "", "delete a session and exit")
	sessionShow := flag.String("session-show", "", "show session history and exit")
	yes := flag.Bool("y", false, "skip confirmation prompts")

	flag.Parse()

	if *showVersion {
		fmt.Printf("%s-%s-%s\n", version, commitDate, commitHash)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Session management commands run and exit before any agent setup.
	if *sessionList || *sessionDelete != "" || *sessionShow != "" {
		sessionMgr, err := session.NewManager(cfg.Session.Dir)
		if err != nil {
			log.Fatalf("Failed to create session manager: %v", err)
		}

		if *sessionList {
			sessions, err := sessionMgr.List()
			if err != nil {
				log.Fatalf("Failed to list sessions: %v", err)
			}
			if len(sessions) == 0 {
				fmt.Println("No sessions found.")
			} else {
				fmt.Printf("%-30s  %-20s  %s\n", "NAME", "MODIFIED", "MESSAGES")
				fmt.Println(strings.Repeat("-", 60))
				for _, info := range sessions {
					fmt.Printf("%-30s  %-20s  %d\n", info.Name, info.ModTime.Format("2006-01-02 15:04"), info.MessageCount)
				}
			}
			return
		}

		if *sessionDelete != "" {
			if !sessionMgr.Exists(*sessionDelete) {
				log.Fatalf("Session %q not found", *sessionDelete)
			}
			if !*yes {
				ok, err := ui.Confirm(fmt.Sprintf("Delete session %q?", *sessionDelete))
				if err != nil {
					log.Fatalf("Failed to read confirmation: %v", err)
				}
				if !ok {
					return
				}
			}
			if err := sessionMgr.Delete(*sessionDelete); err != nil {
				log.Fatalf("Failed to delete session: %v", err)
			}
			fmt.Printf("Deleted session: %s\n", *sessionDelete)
			return
		}

		if *sessionShow != "" {
			if !sessionMgr.Exists(*sessionShow) {
				log.Fatalf("Session %q not found", *sessionShow)
			}
			content, err := sessionMgr.Show(*sessionShow)
			if err != nil {
				log.Fatalf("Failed to show session: %v", err)
			}
			fmt.Print(content)
			return
		}
	}

	var execMode bool
	var promptText string
	var quietMode bool

	if *quietPrompt != "" {
		execMode = true
		promptText = *quietPrompt
		quietMode = true
	} else if *execPrompt != "" {
		execMode = true
		promptText = *execPrompt
	} else if *batchFile != "" {
		execMode = true
		quietMode = true
	}

	writer := ui.NewWriter(cfg.LLM.Verbose)
	if quietMode {
		writer.SetQuiet(true)
	}
	if *jsonOutput {
		writer.SetJSONMode(true)
	}
	// Exec mode routes progress to stderr and the final answer to stdout.
	if execMode {
		writer.SetHeadless(true)
	}

	logPath := cfg.Agent.LogFile
	if *logFile != "" {
		logPath = *logFile
	}
	logger, err := agent.NewLogger(logPath, false)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	if *model != "" {
		cfg.LLM.Model = *model
	}
	if *baseURL != "" {
		cfg.LLM.BaseURL = *baseURL
	}

	// One instance per workspace; concurrent runs would race file edits.
	workspaceLock, err := workspace.AcquireLock(cfg.Workspace.Root)
	if err != nil {
		log.Fatalf("Failed to acquire workspace lock: %v", err)
	}
	defer workspaceLock.Release()

	llmClient := llm.NewClient(cfg.LLM.BaseURL, cfg.LLM.APIKey)

	registry := tools.SetupRegistry(tools.SetupConfig{
		Cfg:    cfg,
		Logger: writer, // Writer implements DebugLogger
	})

	promptGen := prompt.NewGenerator(registry, cfg)
	systemPrompt := promptGen.GenerateSystemPrompt()

	runnerOpts := agent.RunnerOptions{
		Cfg:       cfg,
		LLMClient: llmClient,
		Registry:  registry,
		Writer:    writer,
		Logger:    logger,
	}
	runner := agent.NewRunner(runnerOpts)

	// stitch is headless; use stitch-ui for the interactive shell.
	if !execMode {
		fmt.Fprintln(os.Stderr, "Usage: stitch -p \"prompt\" [options]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "stitch is a headless agent. Use stitch-ui for interactive mode.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Options:")
		flag.PrintDefaults()
		os.Exit(1)
	}

	writer.StartupInfo(fmt.Sprintf("stitch %s", version))
	writer.StartupInfo(fmt.Sprintf("Model: %s @ %s", cfg.LLM.Model, cfg.LLM.BaseURL))
	writer.StartupInfo(fmt.Sprintf("Tools: %s", strings.Join(registry.ListTools(), ", ")))
	if logPath != "" {
		writer.StartupInfo(fmt.Sprintf("Logs: %s", logPath))
	}
	fmt.Println()

	if *batchFile != "" {
		if err := repl.RunBatch(runnerOpts, writer, cfg, systemPrompt, *batchFile); err != nil {
			log.Fatalf("Batch run failed: %v", err)
		}
		return
	}

	sessionMgr, err := session.NewManager(cfg.Session.Dir)
	if err != nil {
		log.Fatalf("Failed to create session manager: %v", err)
	}

	if *sessionName != "" {
		sessionUnlock, err := sessionMgr.AcquireLock(*sessionName)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer sessionUnlock()
	}

	repl.RunExec(runner, writer, cfg, systemPrompt, promptText, quietMode, *sessionName, sessionMgr)
}
