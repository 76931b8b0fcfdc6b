package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/tormodhaugland/intake/internal/fs"
	"github.com/tormodhaugland/intake/internal/model"
)

var (
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))
	skipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	plannedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	dirStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
)

// RenderOutcome renders one outcome as a single line.
func RenderOutcome(o model.ImportOutcome) string {
	switch o.State() {
	case model.StateSucceeded:
		return okStyle.Render("✓ ") + fmt.Sprintf("%s → %s ", o.SourcePath, o.DestPath) +
			mutedStyle.Render(fmt.Sprintf("(%s, %s)", countLabel(o.Files, o.Dirs), humanize.IBytes(uint64(o.Bytes))))
	case model.StateRejected:
		return skipStyle.Render("- ") + fmt.Sprintf("%s: %s", o.SourcePath, reasonLabel(o.Reason)) +
			detailSuffix(o.Detail)
	case model.StatePending:
		return plannedStyle.Render("• ") + fmt.Sprintf("%s → %s ", o.SourcePath, o.DestPath) +
			mutedStyle.Render("(would copy)")
	default:
		return failStyle.Render("✗ ") + fmt.Sprintf("%s: %s", o.SourcePath, reasonLabel(o.Reason)) +
			detailSuffix(o.Detail)
	}
}

// RenderOutcomes renders every outcome in order followed by a summary line.
func RenderOutcomes(outcomes []model.ImportOutcome) string {
	var sb strings.Builder
	for _, o := range outcomes {
		sb.WriteString(RenderOutcome(o) + "\n")
	}
	sb.WriteString("\n" + Summary(outcomes))
	return sb.String()
}

// Summary counts outcomes by state.
func Summary(outcomes []model.ImportOutcome) string {
	var imported, planned, skipped, failed int
	var bytes int64
	for _, o := range outcomes {
		switch o.State() {
		case model.StateSucceeded:
			imported++
			bytes += o.Bytes
		case model.StatePending:
			planned++
		case model.StateRejected:
			skipped++
		default:
			failed++
		}
	}

	var parts []string
	if planned > 0 {
		parts = append(parts, plannedStyle.Render(fmt.Sprintf("%d planned", planned)))
	} else {
		parts = append(parts, okStyle.Render(fmt.Sprintf("%d imported (%s)", imported, humanize.IBytes(uint64(bytes)))))
	}
	parts = append(parts,
		skipStyle.Render(fmt.Sprintf("%d skipped", skipped)),
		failStyle.Render(fmt.Sprintf("%d failed", failed)),
	)
	return strings.Join(parts, ", ")
}

func reasonLabel(r model.Reason) string {
	switch r {
	case model.ReasonRecursiveImport:
		return "would import the data root into itself"
	case model.ReasonAlreadyExists:
		return "already exists at destination"
	case model.ReasonCopyFailed:
		return "copy failed"
	default:
		return string(r)
	}
}

func detailSuffix(detail string) string {
	if detail == "" {
		return ""
	}
	return " " + mutedStyle.Render("("+detail+")")
}

func countLabel(files, dirs int) string {
	label := plural(files, "file", "files")
	if dirs > 0 {
		label += ", " + plural(dirs, "dir", "dirs")
	}
	return label
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}

// RenderTree draws node and its loaded children with box-drawing guides.
func RenderTree(node *fs.TreeNode) string {
	var sb strings.Builder
	sb.WriteString(dirStyle.Render(node.Name+"/") + "\n")
	renderTreeChildren(&sb, node, "")

	dirs, files := node.Count()
	sb.WriteString("\n" + mutedStyle.Render(fmt.Sprintf("%s, %s", plural(dirs, "directory", "directories"), plural(files, "file", "files"))))
	return sb.String()
}

func renderTreeChildren(sb *strings.Builder, node *fs.TreeNode, prefix string) {
	for i, child := range node.Children {
		last := i == len(node.Children)-1 && !node.Truncated
		branch, next := "├── ", "│   "
		if last {
			branch, next = "└── ", "    "
		}

		var label string
		switch {
		case child.IsDir:
			label = dirStyle.Render(child.Name + "/")
		case child.IsSymlink:
			label = child.Name + mutedStyle.Render(" →")
		default:
			label = child.Name + " " + mutedStyle.Render(humanize.IBytes(uint64(child.Size)))
		}
		sb.WriteString(prefix + branch + label + "\n")

		if child.IsDir {
			renderTreeChildren(sb, child, prefix+next)
		}
	}
	if node.Truncated {
		sb.WriteString(prefix + "└── " + mutedStyle.Render("…") + "\n")
	}
}
