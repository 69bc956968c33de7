package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/stitchagent/stitch/internal/config"
	"github.com/stitchagent/stitch/internal/session"
	"github.com/stitchagent/stitch/internal/tui"
)

// Version info set by ldflags at build time
var (
	version    = "dev"
	commitHash = "dev"
	commitDate = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	agentPath := flag.String("agent-path", "", "path to stitch binary (auto-detected if not specified)")
	sessionName := flag.String("s", "", "session name: continue existing session or create new one")
	showVersion := flag.Bool("version", false, "show version information and exit")

	sessionList := flag.Bool("sessions", false, "list all sessions and exit")
	sessionShow := flag.String("session-show", "", "show session history and exit")

	flag.Parse()

	if *showVersion {
		fmt.Printf("%s-%s-%s\n", version, commitDate, commitHash)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *sessionList || *sessionShow != "" {
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

	// Look for the stitch binary next to this one, then fall back to PATH.
	agentBinary := *agentPath
	if agentBinary == "" {
		execPath, err := os.Executable()
		if err == nil {
			candidate := filepath.Join(filepath.Dir(execPath), "stitch")
			if _, err := os.Stat(candidate); err == nil {
				agentBinary = candidate
			}
		}
		if agentBinary == "" {
			agentBinary = "stitch"
		}
	}

	sessionMgr, err := session.NewManager(cfg.Session.Dir)
	if err != nil {
		log.Fatalf("Failed to create session manager: %v", err)
	}

	shell := tui.New(tui.Options{
		AgentPath:   agentBinary,
		ConfigPath:  *configPath,
		SessionName: *sessionName,
		SessionMgr:  sessionMgr,
		Config:      cfg,
	})

	if err := shell.Run(); err != nil {
		log.Fatalf("Shell error: %v", err)
	}
}
