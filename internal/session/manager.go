// Package session persists conversation transcripts as JSONL files.
package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/stitchagent/stitch/internal/llm"
)

// Manager handles session storage and retrieval under a base directory.
type Manager struct {
	baseDir string
}

// Info contains metadata about a stored session.
type Info struct {
	Name         string
	ModTime      time.Time
	MessageCount int
}

// NewManager creates a session manager rooted at dir, creating it if needed.
func NewManager(dir string) (*Manager, error) {
	if dir == "" {
		return nil, fmt.Errorf("session directory not configured")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create sessions directory: %w", err)
	}
	return &Manager{baseDir: dir}, nil
}

// Exists reports whether a session with the given name is stored.
func (m *Manager) Exists(name string) bool {
	_, err := os.Stat(m.sessionPath(name))
	return err == nil
}

// Load reads all messages from a session file.
func (m *Manager) Load(name string) ([]llm.Message, error) {
	file, err := os.Open(m.sessionPath(name))
	if err != nil {
		return nil, fmt.Errorf("open session file: %w", err)
	}
	defer file.Close()

	var messages []llm.Message
	scanner := bufio.NewScanner(file)
	// Tool results can be large single lines.
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var msg llm.Message
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return nil, fmt.Errorf("parse message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	return messages, nil
}

// Save writes messages to a session file, replacing existing content.
func (m *Manager) Save(name string, messages []llm.Message) error {
	file, err := os.Create(m.sessionPath(name))
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	defer file.Close()
	return writeMessages(file, messages)
}

// Append adds messages to the end of a session file, creating it if missing.
func (m *Manager) Append(name string, messages []llm.Message) error {
	file, err := os.OpenFile(m.sessionPath(name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open session file: %w", err)
	}
	defer file.Close()
	return writeMessages(file, messages)
}

func writeMessages(file *os.File, messages []llm.Message) error {
	for _, msg := range messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		if _, err := file.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write message: %w", err)
		}
	}
	return nil
}

// GenerateName returns a unique session name: date plus a uuid fragment.
func (m *Manager) GenerateName() string {
	return fmt.Sprintf("%s-%s", time.Now().Format("2006-01-02"), uuid.NewString()[:8])
}

// List returns all stored sessions, newest first.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sessions directory: %w", err)
	}

	var sessions []Info
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jsonl") {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), ".jsonl")
		info, err := entry.Info()
		if err != nil {
			continue
		}

		msgCount := 0
		if messages, err := m.Load(name); err == nil {
			msgCount = len(messages)
		}

		sessions = append(sessions, Info{
			Name:         name,
			ModTime:      info.ModTime(),
			MessageCount: msgCount,
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ModTime.After(sessions[j].ModTime)
	})
	return sessions, nil
}

// Delete removes a session file.
func (m *Manager) Delete(name string) error {
	if err := os.Remove(m.sessionPath(name)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Show returns a human-readable transcript of a session.
func (m *Manager) Show(name string) (string, error) {
	messages, err := m.Load(name)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Session: %s (%d messages)\n", name, len(messages)))
	sb.WriteString(strings.Repeat("─", 50) + "\n\n")

	for _, msg := range messages {
		switch msg.Role {
		case llm.RoleSystem:
			sb.WriteString("[system] (omitted)\n\n")
		case llm.RoleUser:
			sb.WriteString(fmt.Sprintf("[user]\n%s\n\n", clip(msg.Content, 500)))
		case llm.RoleAssistant:
			sb.WriteString(fmt.Sprintf("[assistant]\n%s", clip(msg.Content, 500)))
			if len(msg.ToolCalls) > 0 {
				sb.WriteString(fmt.Sprintf(" (+ %d tool calls)", len(msg.ToolCalls)))
			}
			sb.WriteString("\n\n")
		case llm.RoleTool:
			sb.WriteString(fmt.Sprintf("[tool: %s] (result omitted)\n\n", msg.Name))
		}
	}
	return sb.String(), nil
}

func clip(s string, max int) string {
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}

// AcquireLock takes an exclusive lock on a session so two processes cannot
// write the same transcript. Returns the release function.
func (m *Manager) AcquireLock(name string) (func(), error) {
	lockPath := filepath.Join(m.baseDir, "."+name+".lock")

	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("create lock file: %w", err)
	}
	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		lockFile.Close()
		return nil, fmt.Errorf("session %q is already in use by another process", name)
	}

	// PID for debugging stale locks.
	lockFile.Truncate(0)
	lockFile.Seek(0, 0)
	fmt.Fprintf(lockFile, "%d\n", os.Getpid())

	return func() {
		syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)
		lockFile.Close()
		os.Remove(lockPath)
	}, nil
}

func (m *Manager) sessionPath(name string) string {
	return filepath.Join(m.baseDir, name+".jsonl")
}
