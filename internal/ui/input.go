package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// InputModel wraps a textarea for multi-line prompt input with
// shell-style history navigation.
type InputModel struct {
	textarea   textarea.Model
	history    []string
	historyIdx int
	submitted  bool
	cancelled  bool
	value      string
	prompt     string
	maxHeight  int
	quitting   bool
}

// NewInputModel creates an input model with the given prompt text and
// prior history, newest entry last.
func NewInputModel(prompt string, history []string) InputModel {
	ta := textarea.New()
	ta.Prompt = ""
	ta.Placeholder = "(Ctrl+J for newline, Enter to submit)"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(1)
	ta.SetWidth(80)

	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.BlurredStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	ta.FocusedStyle.Text = lipgloss.NewStyle()

	// Enter submits; Ctrl+J inserts the newline.
	ta.KeyMap.InsertNewline.SetEnabled(false)

	ta.Focus()

	return InputModel{
		textarea:   ta,
		history:    history,
		historyIdx: -1,
		prompt:     prompt,
		maxHeight:  20,
	}
}

// adjustHeight grows the textarea to fit its content, up to maxHeight.
func (m *InputModel) adjustHeight() {
	h := m.textarea.LineCount()
	if h > m.maxHeight {
		h = m.maxHeight
	}
	if h < 1 {
		h = 1
	}
	m.textarea.SetHeight(h)
}

// setFromHistory replaces the textarea content with a history entry and
// moves the cursor to the start.
func (m *InputModel) setFromHistory(value string) {
	m.textarea.SetValue(value)
	m.adjustHeight()
	m.textarea.CursorStart()
	for m.textarea.Line() > 0 {
		m.textarea.CursorUp()
	}
	m.textarea.CursorStart()
}

func (m InputModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m InputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		width := msg.Width - 10
		if width < 40 {
			width = 40
		}
		m.textarea.SetWidth(width)

		m.maxHeight = msg.Height - 5
		if m.maxHeight < 5 {
			m.maxHeight = 5
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			m.value = m.textarea.Value()
			m.submitted = true
			m.quitting = true
			return m, tea.Quit

		case "ctrl+j":
			m.textarea.InsertString("\n")
			m.adjustHeight()
			return m, nil

		case "up":
			// History when the box is empty, or when already browsing
			// history and the cursor sits on the first line. Otherwise
			// the textarea handles line navigation.
			if len(m.history) > 0 {
				isEmpty := m.textarea.Value() == ""
				browsing := m.historyIdx >= 0
				if isEmpty || (browsing && m.textarea.Line() == 0) {
					if m.historyIdx < len(m.history)-1 {
						m.historyIdx++
						m.setFromHistory(m.history[len(m.history)-1-m.historyIdx])
					}
					return m, nil
				}
			}

		case "down":
			if len(m.history) > 0 {
				isEmpty := m.textarea.Value() == ""
				browsing := m.historyIdx >= 0
				onLastLine := m.textarea.Line() == m.textarea.LineCount()-1
				if isEmpty || (browsing && onLastLine) {
					if m.historyIdx > 0 {
						m.historyIdx--
						m.setFromHistory(m.history[len(m.history)-1-m.historyIdx])
					} else if m.historyIdx == 0 {
						m.historyIdx = -1
						m.textarea.SetValue("")
						m.adjustHeight()
					}
					return m, nil
				}
			}

		case "ctrl+c":
			m.cancelled = true
			m.quitting = true
			return m, tea.Quit

		case "esc":
			m.textarea.SetValue("")
			m.adjustHeight()
			return m, nil
		}
	}

	beforeValue := m.textarea.Value()
	m.textarea, cmd = m.textarea.Update(msg)

	// Editing a recalled entry leaves history mode.
	if m.historyIdx >= 0 && m.textarea.Value() != beforeValue {
		if key, ok := msg.(tea.KeyMsg); ok {
			s := key.String()
			if len(s) == 1 || s == "backspace" || s == "delete" || s == "ctrl+u" || s == "ctrl+k" {
				m.historyIdx = -1
			}
		}
	}

	m.adjustHeight()
	return m, cmd
}

func (m InputModel) View() string {
	if m.quitting {
		return ""
	}
	return m.prompt + "\n" + m.textarea.View()
}

// Value returns the submitted text.
func (m InputModel) Value() string {
	return m.value
}

// Submitted reports whether the user pressed Enter.
func (m InputModel) Submitted() bool {
	return m.submitted
}

// Cancelled reports whether the user pressed Ctrl+C.
func (m InputModel) Cancelled() bool {
	return m.cancelled
}

// LoadHistory reads prompt history from a file. Entries are delimited
// by null bytes so multi-line prompts survive round trips.
func LoadHistory(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var history []string
	for _, entry := range strings.Split(string(data), "\x00") {
		if strings.TrimSpace(entry) != "" {
			history = append(history, entry)
		}
	}
	return history, nil
}

// SaveHistory writes prompt history to a file, keeping the most recent
// 1000 entries.
func SaveHistory(path string, history []string) error {
	const maxHistory = 1000
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	return os.WriteFile(path, []byte(strings.Join(history, "\x00")), 0644)
}
