// Package tui provides the interactive terminal shell for stitch-ui.
package tui

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stitchagent/stitch/internal/config"
	"github.com/stitchagent/stitch/internal/session"
	"github.com/stitchagent/stitch/internal/ui"
)

// Options contains configuration for the shell.
type Options struct {
	AgentPath   string
	ConfigPath  string
	SessionName string
	SessionMgr  *session.Manager
	Config      *config.Config
}

// Shell manages the interactive terminal interface. Each prompt spawns
// the stitch agent binary as a subprocess so a crash in the agent never
// takes the shell down with it.
type Shell struct {
	agentPath      string
	configPath     string
	currentSession string
	sessionMgr     *session.Manager
	cfg            *config.Config
	history        []string
	historyFile    string
}

// New creates a new Shell instance.
func New(opts Options) *Shell {
	homeDir, _ := os.UserHomeDir()
	historyFile := filepath.Join(homeDir, ".stitch-history")

	history, _ := ui.LoadHistory(historyFile)

	return &Shell{
		agentPath:      opts.AgentPath,
		configPath:     opts.ConfigPath,
		currentSession: opts.SessionName,
		sessionMgr:     opts.SessionMgr,
		cfg:            opts.Config,
		history:        history,
		historyFile:    historyFile,
	}
}

// Run starts the interactive loop.
func (s *Shell) Run() error {
	restoreTerminal := func() {
		if os.Stdin.Fd() == 0 {
			cmd := exec.Command("sh", "-c", "stty sane </dev/tty >/dev/tty 2>&1")
			_ = cmd.Run()
		}
	}
	defer func() {
		fmt.Println()
		restoreTerminal()
	}()

	fmt.Println("\033[38;5;136mstitch shell\033[0m")
	fmt.Printf("\033[38;5;136mModel: %s @ %s\033[0m\n", s.cfg.LLM.Model, s.cfg.LLM.BaseURL)
	if s.currentSession != "" {
		if s.sessionMgr.Exists(s.currentSession) {
			fmt.Printf("\033[38;5;136mSession: %s (continuing)\033[0m\n", s.currentSession)
		} else {
			fmt.Printf("\033[38;5;136mSession: %s (new)\033[0m\n", s.currentSession)
		}
	}
	fmt.Println("\033[38;5;136mPress Ctrl+C to exit, ':help' for commands\033[0m")
	fmt.Println()

	for {
		input, shouldExit, err := s.readInput()
		if err != nil {
			fmt.Printf("\033[31m[error] Input error: %v\033[0m\n", err)
			break
		}
		if shouldExit {
			break
		}

		if input == "" {
			continue
		}

		s.history = append(s.history, input)
		_ = ui.SaveHistory(s.historyFile, s.history)

		if strings.HasPrefix(input, ":") {
			if s.handleCommand(input) {
				break
			}
			continue
		}

		s.runAgent(input)
	}

	return nil
}

// readInput reads user input via the textarea input model.
func (s *Shell) readInput() (string, bool, error) {
	inputModel := ui.NewInputModel(s.buildPromptText(), s.history)
	p := tea.NewProgram(inputModel)
	result, err := p.Run()
	if err != nil {
		return "", false, err
	}

	finalModel := result.(ui.InputModel)
	if finalModel.Cancelled() || !finalModel.Submitted() {
		return "", true, nil
	}

	input := strings.TrimSpace(finalModel.Value())

	// Echo the submitted input with a gray background.
	for _, line := range strings.Split(finalModel.Value(), "\n") {
		fmt.Println(ui.MakePrompt(line))
	}
	fmt.Println()

	return input, false, nil
}

func (s *Shell) buildPromptText() string {
	var sessionInfo string
	if s.currentSession != "" {
		sessionInfo = fmt.Sprintf(" %s", s.currentSession)
	}
	return ui.MakePrompt(fmt.Sprintf("[stitch%s]> ", sessionInfo))
}

// handleCommand handles shell meta-commands. Returns true to exit.
func (s *Shell) handleCommand(input string) bool {
	cmd := strings.TrimPrefix(input, ":")
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false
	}

	switch parts[0] {
	case "quit", "q", "exit":
		return true

	case "help", "h":
		s.showHelp()

	case "new":
		s.currentSession = s.sessionMgr.GenerateName()
		fmt.Printf("Started new session: %s\n\n", s.currentSession)

	case "switch":
		if len(parts) < 2 {
			fmt.Println("Usage: :switch <session-name>")
			fmt.Println()
			return false
		}
		name := parts[1]
		if !s.sessionMgr.Exists(name) {
			fmt.Printf("Session %q not found. Use :sessions to list available sessions.\n\n", name)
			return false
		}
		s.currentSession = name
		fmt.Printf("Switched to session: %s\n\n", name)

	case "sessions":
		sessions, err := s.sessionMgr.List()
		if err != nil {
			fmt.Printf("Error listing sessions: %v\n\n", err)
			return false
		}
		if len(sessions) == 0 {
			fmt.Println("No sessions found.")
		} else {
			fmt.Printf("%-30s  %-20s  %s\n", "NAME", "MODIFIED", "MESSAGES")
			fmt.Println("────────────────────────────────────────────────────────────")
			for _, info := range sessions {
				marker := ""
				if info.Name == s.currentSession {
					marker = " *"
				}
				fmt.Printf("%-30s  %-20s  %d%s\n", info.Name, info.ModTime.Format("2006-01-02 15:04"), info.MessageCount, marker)
			}
		}
		fmt.Println()

	case "delete":
		if len(parts) < 2 {
			fmt.Println("Usage: :delete <session-name>")
			fmt.Println()
			return false
		}
		name := parts[1]
		if !s.sessionMgr.Exists(name) {
			fmt.Printf("Session %q not found.\n\n", name)
			return false
		}
		ok, err := ui.Confirm(fmt.Sprintf("Delete session %q?", name))
		if err != nil || !ok {
			fmt.Println()
			return false
		}
		if err := s.sessionMgr.Delete(name); err != nil {
			fmt.Printf("Error deleting session: %v\n\n", err)
			return false
		}
		if s.currentSession == name {
			s.currentSession = ""
		}
		fmt.Printf("Deleted session: %s\n\n", name)

	case "history":
		if s.currentSession == "" {
			fmt.Println("No active session. Use :new or :switch to select a session.")
			fmt.Println()
			return false
		}
		content, err := s.sessionMgr.Show(s.currentSession)
		if err != nil {
			fmt.Printf("Error showing session: %v\n\n", err)
			return false
		}
		fmt.Print(content)
		fmt.Println()

	case "diff":
		if len(parts) < 3 {
			fmt.Println("Usage: :diff <old-file> <new-file>")
			fmt.Println()
			return false
		}
		if err := ShowFileDiff(parts[1], parts[2]); err != nil {
			fmt.Printf("Error showing diff: %v\n\n", err)
		}

	case "clear":
		fmt.Print("\033[2J\033[H")

	case "config":
		fmt.Printf("Config: %s\n", s.configPath)
		fmt.Printf("Model: %s\n", s.cfg.LLM.Model)
		fmt.Printf("Base URL: %s\n", s.cfg.LLM.BaseURL)
		fmt.Printf("Agent: %s\n", s.agentPath)
		if s.currentSession != "" {
			fmt.Printf("Session: %s\n", s.currentSession)
		}
		fmt.Println()

	default:
		fmt.Printf("Unknown command: %s. Type :help for available commands.\n\n", parts[0])
	}

	return false
}

func (s *Shell) showHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  :help, :h          Show this help message")
	fmt.Println("  :quit, :q          Exit the shell")
	fmt.Println("  :new               Start a new session")
	fmt.Println("  :switch <name>     Switch to an existing session")
	fmt.Println("  :sessions          List all sessions")
	fmt.Println("  :delete <name>     Delete a session")
	fmt.Println("  :history           Show current session history")
	fmt.Println("  :diff <old> <new>  View a diff of two files")
	fmt.Println("  :clear             Clear the terminal")
	fmt.Println("  :config            Show configuration")
	fmt.Println()
	fmt.Println("Enter any other text to send as a prompt to the agent.")
	fmt.Println()
}

// runAgent spawns the stitch binary with the given prompt.
func (s *Shell) runAgent(prompt string) {
	args := []string{"-p", prompt}

	if s.configPath != "" && s.configPath != "config.yaml" {
		args = append(args, "-config", s.configPath)
	}

	if s.currentSession != "" {
		args = append(args, "-s", s.currentSession)
	}

	cmd := exec.Command(s.agentPath, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = nil

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			if exitErr.ExitCode() == 2 {
				fmt.Println("[cancelled]")
			}
		} else {
			fmt.Printf("\033[31m[error] Agent failed: %v\033[0m\n", err)
		}
	}

	fmt.Println()
}
