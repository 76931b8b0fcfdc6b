package tui

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

var (
	confirmLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	confirmHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Number of sources listed before the rest is summarized.
const confirmListLimit = 10

type ConfirmResult struct {
	Confirmed bool
	Aborted   bool
}

type confirmModel struct {
	targetDir string
	sources   []string
	selected  bool // true = Yes, false = No
	result    ConfirmResult
}

func newConfirmModel(targetDir string, sources []string) confirmModel {
	return confirmModel{
		targetDir: targetDir,
		sources:   sources,
		selected:  true,
	}
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.result.Aborted = true
			return m, tea.Quit

		case "left", "right", "tab", "h", "l":
			m.selected = !m.selected
			return m, nil

		case "y", "Y":
			m.selected = true
			m.result.Confirmed = true
			return m, tea.Quit

		case "n", "N":
			m.selected = false
			m.result.Confirmed = false
			return m, tea.Quit

		case "enter":
			m.result.Confirmed = m.selected
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m confirmModel) message() string {
	noun := "items"
	if len(m.sources) == 1 {
		noun = "item"
	}
	return fmt.Sprintf("Import %d %s into %s?", len(m.sources), noun, m.targetDir)
}

func (m confirmModel) View() string {
	var sb strings.Builder

	sb.WriteString(confirmLabelStyle.Render(m.message()) + "\n\n")
	for i, src := range m.sources {
		if i == confirmListLimit {
			sb.WriteString(confirmHintStyle.Render(fmt.Sprintf("  ... and %d more", len(m.sources)-i)) + "\n")
			break
		}
		sb.WriteString("  " + src + "\n")
	}
	sb.WriteString("\n")

	yesStyle := lipgloss.NewStyle().Padding(0, 2)
	noStyle := lipgloss.NewStyle().Padding(0, 2)

	if m.selected {
		yesStyle = yesStyle.Background(lipgloss.Color("212")).Foreground(lipgloss.Color("0"))
	} else {
		noStyle = noStyle.Background(lipgloss.Color("212")).Foreground(lipgloss.Color("0"))
	}

	sb.WriteString(fmt.Sprintf("  %s  %s\n", yesStyle.Render("Yes"), noStyle.Render("No")))
	sb.WriteString("\n" + confirmHintStyle.Render("←/→: select • enter: confirm • y/n: quick select • esc: cancel"))

	return sb.String()
}

// RunImportConfirm asks whether sources should be imported into targetDir.
func RunImportConfirm(targetDir string, sources []string) (ConfirmResult, error) {
	lipgloss.SetDefaultRenderer(lipgloss.NewRenderer(os.Stderr, termenv.WithColorCache(true)))

	m := newConfirmModel(targetDir, sources)
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))

	finalModel, err := p.Run()
	if err != nil {
		return ConfirmResult{Aborted: true}, err
	}

	return finalModel.(confirmModel).result, nil
}
