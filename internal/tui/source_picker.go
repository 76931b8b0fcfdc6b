package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/sahilm/fuzzy"
)

// Guardrails to keep directory loading responsive.
var maxDirEntries = 500

// Hidden entries that are still worth showing.
var visibleDotfiles = map[string]bool{
	".env":       true,
	".gitignore": true,
	".config":    true,
}

var (
	pickerTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	pickerHelpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	pickerSelectedStyle = lipgloss.NewStyle().
				Background(lipgloss.Color("236")).
				Foreground(lipgloss.Color("212")).
				Bold(true)
	pickerCheckedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	pickerMutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	pickerDirStyle     = lipgloss.NewStyle().Bold(true)
)

// SourcePickerResult holds the result of the interactive source picker.
type SourcePickerResult struct {
	Paths     []string // absolute paths in the order they were checked
	Confirmed bool
	Aborted   bool
}

// fileNode represents a node in the filesystem tree.
type fileNode struct {
	Name          string
	Path          string // absolute path
	IsDir         bool
	IsSymlink     bool
	IsExpanded    bool
	Depth         int
	IsPlaceholder bool // synthetic "more entries" line
	Err           string
	Children      []*fileNode
}

type sourcePickerModel struct {
	startPath    string
	root         *fileNode
	flatTree     []*fileNode
	visible      []*fileNode // flatTree, or the fuzzy matches while filtering
	cursor       int
	checked      []string // selection order
	checkedSet   map[string]bool
	filterActive bool
	filterInput  textinput.Model
	width        int
	height       int
	scrollOffset int
	result       SourcePickerResult
}

func newSourcePickerModel(startPath string) sourcePickerModel {
	filterInput := textinput.New()
	filterInput.Placeholder = "filter..."
	filterInput.CharLimit = 64
	filterInput.Width = 30

	m := sourcePickerModel{
		startPath:   startPath,
		checkedSet:  make(map[string]bool),
		filterInput: filterInput,
		width:       80,
		height:      24,
	}

	m.root = &fileNode{
		Name:       filepath.Base(startPath),
		Path:       startPath,
		IsDir:      true,
		IsExpanded: true,
	}
	m.loadChildren(m.root)
	m.flattenTree()
	return m
}

// loadChildren loads the immediate children of a directory node.
// It avoids following symlinks and caps entries to prevent UI freezes.
func (m *sourcePickerModel) loadChildren(node *fileNode) {
	if !node.IsDir || node.Children != nil {
		return
	}

	entries, err := os.ReadDir(node.Path)
	if err != nil {
		node.Children = []*fileNode{}
		node.Err = err.Error()
		return
	}

	sort.Slice(entries, func(i, j int) bool {
		iDir := entries[i].IsDir()
		jDir := entries[j].IsDir()
		if iDir != jDir {
			return iDir
		}
		return entries[i].Name() < entries[j].Name()
	})

	node.Children = make([]*fileNode, 0, len(entries))
	added := 0
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") && !visibleDotfiles[name] {
			continue
		}

		if added >= maxDirEntries {
			node.Children = append(node.Children, &fileNode{
				Name:          "... more entries not shown",
				Depth:         node.Depth + 1,
				IsPlaceholder: true,
			})
			break
		}

		isSymlink := entry.Type()&os.ModeSymlink != 0
		node.Children = append(node.Children, &fileNode{
			Name:      name,
			Path:      filepath.Join(node.Path, name),
			IsDir:     entry.IsDir() && !isSymlink,
			IsSymlink: isSymlink,
			Depth:     node.Depth + 1,
		})
		added++
	}
}

func (m *sourcePickerModel) flattenTree() {
	m.flatTree = make([]*fileNode, 0, len(m.flatTree))
	// The start directory itself is not selectable; list its children.
	for _, child := range m.root.Children {
		m.flattenNode(child)
	}
	m.applyFilter()
}

func (m *sourcePickerModel) flattenNode(node *fileNode) {
	m.flatTree = append(m.flatTree, node)
	if node.IsDir && node.IsExpanded {
		for _, child := range node.Children {
			m.flattenNode(child)
		}
	}
}

// applyFilter narrows the visible rows to fuzzy matches on the entry path
// relative to the start directory, best match first.
func (m *sourcePickerModel) applyFilter() {
	query := m.filterInput.Value()
	if query == "" {
		m.visible = m.flatTree
		m.clampCursor()
		return
	}

	candidates := make([]*fileNode, 0, len(m.flatTree))
	names := make([]string, 0, len(m.flatTree))
	for _, node := range m.flatTree {
		if node.IsPlaceholder {
			continue
		}
		rel, err := filepath.Rel(m.startPath, node.Path)
		if err != nil {
			rel = node.Name
		}
		candidates = append(candidates, node)
		names = append(names, rel)
	}

	matches := fuzzy.Find(query, names)
	m.visible = make([]*fileNode, 0, len(matches))
	for _, match := range matches {
		m.visible = append(m.visible, candidates[match.Index])
	}
	m.clampCursor()
}

func (m *sourcePickerModel) clampCursor() {
	if m.cursor >= len(m.visible) {
		m.cursor = len(m.visible) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.ensureVisible()
}

func (m *sourcePickerModel) current() *fileNode {
	if m.cursor < 0 || m.cursor >= len(m.visible) {
		return nil
	}
	return m.visible[m.cursor]
}

func (m *sourcePickerModel) setExpanded(node *fileNode, expanded bool) {
	if !node.IsDir || node.IsExpanded == expanded {
		return
	}
	node.IsExpanded = expanded
	if expanded {
		m.loadChildren(node)
	}
	m.flattenTree()
}

func (m *sourcePickerModel) toggleChecked(node *fileNode) {
	if node == nil || node.IsPlaceholder {
		return
	}
	if m.checkedSet[node.Path] {
		delete(m.checkedSet, node.Path)
		for i, p := range m.checked {
			if p == node.Path {
				m.checked = append(m.checked[:i], m.checked[i+1:]...)
				break
			}
		}
		return
	}
	m.checkedSet[node.Path] = true
	m.checked = append(m.checked, node.Path)
}

func (m sourcePickerModel) Init() tea.Cmd {
	return nil
}

func (m sourcePickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ensureVisible()
		return m, nil

	case tea.KeyMsg:
		if m.filterActive {
			return m.handleFilterKeys(msg)
		}

		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.result.Aborted = true
			return m, tea.Quit

		case "enter":
			m.result.Paths = append([]string(nil), m.checked...)
			m.result.Confirmed = true
			return m, tea.Quit

		case "/":
			m.filterActive = true
			return m, m.filterInput.Focus()

		case "j", "down":
			if m.cursor < len(m.visible)-1 {
				m.cursor++
				m.ensureVisible()
			}

		case "k", "up":
			if m.cursor > 0 {
				m.cursor--
				m.ensureVisible()
			}

		case "g":
			m.cursor = 0
			m.scrollOffset = 0

		case "G":
			if len(m.visible) > 0 {
				m.cursor = len(m.visible) - 1
				m.ensureVisible()
			}

		case " ":
			m.toggleChecked(m.current())

		case "l", "right":
			if node := m.current(); node != nil {
				m.setExpanded(node, true)
			}

		case "h", "left":
			if node := m.current(); node != nil {
				m.setExpanded(node, false)
			}

		case "c":
			m.checked = nil
			m.checkedSet = make(map[string]bool)
		}
	}

	return m, nil
}

func (m sourcePickerModel) handleFilterKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filterActive = false
		m.filterInput.SetValue("")
		m.filterInput.Blur()
		m.applyFilter()
		return m, nil

	case "enter":
		// Keep the filter; go back to navigating the matches.
		m.filterActive = false
		m.filterInput.Blur()
		return m, nil

	case "ctrl+c":
		m.result.Aborted = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	before := m.filterInput.Value()
	m.filterInput, cmd = m.filterInput.Update(msg)
	if m.filterInput.Value() != before {
		m.cursor = 0
		m.applyFilter()
	}
	return m, cmd
}

func (m *sourcePickerModel) visibleLines() int {
	lines := m.height - 9
	if lines < 5 {
		lines = 5
	}
	return lines
}

func (m *sourcePickerModel) ensureVisible() {
	lines := m.visibleLines()
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	} else if m.cursor >= m.scrollOffset+lines {
		m.scrollOffset = m.cursor - lines + 1
	}
}

func (m sourcePickerModel) View() string {
	var sb strings.Builder

	sb.WriteString(pickerTitleStyle.Render("Select sources to import") + "\n")
	sb.WriteString(pickerHelpStyle.Render(m.startPath) + "\n")
	if m.filterActive || m.filterInput.Value() != "" {
		sb.WriteString("Filter: " + m.filterInput.View() + "\n")
	}
	sb.WriteString("\n")

	if m.root.Err != "" {
		sb.WriteString(pickerMutedStyle.Render("cannot read directory: "+m.root.Err) + "\n")
	} else if len(m.visible) == 0 {
		sb.WriteString(pickerMutedStyle.Render("(nothing to show)") + "\n")
	}

	lines := m.visibleLines()
	end := m.scrollOffset + lines
	if end > len(m.visible) {
		end = len(m.visible)
	}
	for i := m.scrollOffset; i < end; i++ {
		sb.WriteString(m.renderNode(m.visible[i], i == m.cursor) + "\n")
	}

	if len(m.visible) > lines {
		sb.WriteString(fmt.Sprintf("\n(%d/%d)", m.cursor+1, len(m.visible)))
	}

	sb.WriteString(fmt.Sprintf("\n\n%d selected", len(m.checked)))
	sb.WriteString("\n\n" + pickerHelpStyle.Render("j/k: navigate • space: toggle • h/l: collapse/expand • /: filter • c: clear"))
	sb.WriteString("\n" + pickerHelpStyle.Render("enter: import • q: cancel"))

	return sb.String()
}

func (m sourcePickerModel) renderNode(node *fileNode, isCursor bool) string {
	indent := strings.Repeat("  ", node.Depth-1)
	if m.filterInput.Value() != "" {
		indent = ""
	}

	if node.IsPlaceholder {
		return pickerMutedStyle.Render(indent + "    " + node.Name)
	}

	icon := "  "
	if node.IsDir {
		if node.IsExpanded {
			icon = "▼ "
		} else {
			icon = "▶ "
		}
	}

	marker := "[ ] "
	if m.checkedSet[node.Path] {
		marker = "[x] "
	}

	name := node.Name
	if m.filterInput.Value() != "" {
		if rel, err := filepath.Rel(m.startPath, node.Path); err == nil {
			name = rel
		}
	}
	switch {
	case node.IsDir:
		name = pickerDirStyle.Render(name + "/")
	case node.IsSymlink:
		name += " →"
	}

	line := fmt.Sprintf("%s%s%s%s", indent, marker, icon, name)
	switch {
	case isCursor:
		return pickerSelectedStyle.Render(line)
	case m.checkedSet[node.Path]:
		return pickerCheckedStyle.Render(line)
	default:
		return line
	}
}

// RunSourcePicker runs the interactive source picker rooted at startPath.
func RunSourcePicker(startPath string) (SourcePickerResult, error) {
	// Render on stderr so stdout stays clean for --json output.
	lipgloss.SetDefaultRenderer(lipgloss.NewRenderer(os.Stderr, termenv.WithColorCache(true)))

	m := newSourcePickerModel(startPath)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithOutput(os.Stderr))

	finalModel, err := p.Run()
	if err != nil {
		return SourcePickerResult{Aborted: true}, err
	}

	return finalModel.(sourcePickerModel).result, nil
}
