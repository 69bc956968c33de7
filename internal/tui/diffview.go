package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stitchagent/stitch/internal/patch"
)

var (
	diffTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("136"))
	diffFooterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	diffAddStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	diffDelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	diffMetaStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	diffCtxStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// diffModel is a scrollable viewer for a unified diff. It opens
// scrolled to the first changed line so long files land on the edit.
type diffModel struct {
	title     string
	viewport  viewport.Model
	firstLine int
	ready     bool
	content   string
}

func newDiffModel(title, diff string, firstLine int) diffModel {
	return diffModel{
		title:     title,
		firstLine: firstLine,
		content:   colorizeDiff(diff),
	}
}

// colorizeDiff applies per-line styles to unified diff text.
func colorizeDiff(diff string) string {
	lines := strings.Split(strings.TrimSuffix(diff, "\n"), "\n")
	out := make([]string, len(lines))
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"), strings.HasPrefix(line, "@@"):
			out[i] = diffMetaStyle.Render(line)
		case strings.HasPrefix(line, "+"):
			out[i] = diffAddStyle.Render(line)
		case strings.HasPrefix(line, "-"):
			out[i] = diffDelStyle.Render(line)
		default:
			out[i] = diffCtxStyle.Render(line)
		}
	}
	return strings.Join(out, "\n")
}

func (m diffModel) Init() tea.Cmd {
	return nil
}

func (m diffModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		headerHeight := 2
		footerHeight := 1
		height := msg.Height - headerHeight - footerHeight
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.viewport.SetContent(m.content)
			// Land on the first edit, with a couple of context lines above.
			if m.firstLine > 3 {
				m.viewport.SetYOffset(m.firstLine - 3)
			}
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m diffModel) View() string {
	if !m.ready {
		return "loading..."
	}
	header := diffTitleStyle.Render(m.title)
	footer := diffFooterStyle.Render(fmt.Sprintf("%3.f%% · q to close", m.viewport.ScrollPercent()*100))
	return header + "\n\n" + m.viewport.View() + "\n" + footer
}

// ShowFileDiff renders the diff between two files in a scrollable
// full-screen viewer.
func ShowFileDiff(oldPath, newPath string) error {
	oldData, err := os.ReadFile(oldPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", oldPath, err)
	}
	newData, err := os.ReadFile(newPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", newPath, err)
	}

	diff, firstLine := patch.RenderUnified(string(oldData), string(newData), newPath)
	if diff == "" {
		fmt.Println("Files are identical.")
		fmt.Println()
		return nil
	}

	title := fmt.Sprintf("%s → %s", oldPath, newPath)
	p := tea.NewProgram(newDiffModel(title, diff, firstLine), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
