package tui

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m sourcePickerModel, msgs ...tea.Msg) sourcePickerModel {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		var ok bool
		m, ok = next.(sourcePickerModel)
		require.True(t, ok)
	}
	return m
}

func pickerFixture(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(tmp, "photos", "2024"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "photos", "2024", "beach.jpg"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "report.pdf"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, ".hidden"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(tmp, ".env"), []byte("x"), 0o644))
	return tmp
}

func names(nodes []*fileNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

func TestSourcePickerListsDirsFirstAndSkipsHidden(t *testing.T) {
	tmp := pickerFixture(t)
	m := newSourcePickerModel(tmp)

	assert.Equal(t, []string{"photos", ".env", "notes.txt", "report.pdf"}, names(m.visible))
}

func TestSourcePickerSelectionOrderIsToggleOrder(t *testing.T) {
	tmp := pickerFixture(t)
	m := newSourcePickerModel(tmp)

	// cursor: photos(0) .env(1) notes.txt(2) report.pdf(3)
	m = press(t, m,
		runes("G"), runes(" "), // report.pdf
		runes("g"), runes(" "), // photos
		runes("j"), runes("j"), runes(" "), // notes.txt
		tea.KeyMsg{Type: tea.KeyEnter},
	)

	assert.True(t, m.result.Confirmed)
	assert.False(t, m.result.Aborted)
	assert.Equal(t, []string{
		filepath.Join(tmp, "report.pdf"),
		filepath.Join(tmp, "photos"),
		filepath.Join(tmp, "notes.txt"),
	}, m.result.Paths)
}

func TestSourcePickerToggleTwiceUnselects(t *testing.T) {
	tmp := pickerFixture(t)
	m := newSourcePickerModel(tmp)

	m = press(t, m, runes(" "), runes(" "), tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.result.Confirmed)
	assert.Empty(t, m.result.Paths)
}

func TestSourcePickerExpandCollapse(t *testing.T) {
	tmp := pickerFixture(t)
	m := newSourcePickerModel(tmp)

	m = press(t, m, runes("l"))
	assert.Equal(t, []string{"photos", "2024", ".env", "notes.txt", "report.pdf"}, names(m.visible))

	m = press(t, m, runes("j"), runes("l"))
	assert.Equal(t, []string{"photos", "2024", "beach.jpg", ".env", "notes.txt", "report.pdf"}, names(m.visible))

	m = press(t, m, runes("k"), runes("h"))
	assert.Equal(t, []string{"photos", ".env", "notes.txt", "report.pdf"}, names(m.visible))
}

func TestSourcePickerNestedSelection(t *testing.T) {
	tmp := pickerFixture(t)
	m := newSourcePickerModel(tmp)

	m = press(t, m, runes("l"), runes("j"), runes("l"), runes("j"), runes(" "), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{filepath.Join(tmp, "photos", "2024", "beach.jpg")}, m.result.Paths)
}

func TestSourcePickerCancel(t *testing.T) {
	for _, key := range []tea.KeyMsg{runes("q"), {Type: tea.KeyEsc}, {Type: tea.KeyCtrlC}} {
		t.Run(key.String(), func(t *testing.T) {
			m := newSourcePickerModel(pickerFixture(t))
			m = press(t, m, runes(" "), key)
			assert.True(t, m.result.Aborted)
			assert.False(t, m.result.Confirmed)
			assert.Empty(t, m.result.Paths)
		})
	}
}

func TestSourcePickerFuzzyFilter(t *testing.T) {
	tmp := pickerFixture(t)
	m := newSourcePickerModel(tmp)

	m = press(t, m, runes("/"))
	require.True(t, m.filterActive)

	m = press(t, m, runes("rpt"))
	require.Equal(t, []string{"report.pdf"}, names(m.visible))

	// enter leaves filter mode but keeps the matches; space then selects.
	m = press(t, m, tea.KeyMsg{Type: tea.KeyEnter}, runes(" "), tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.result.Confirmed)
	assert.Equal(t, []string{filepath.Join(tmp, "report.pdf")}, m.result.Paths)
}

func TestSourcePickerFilterEscRestoresTree(t *testing.T) {
	tmp := pickerFixture(t)
	m := newSourcePickerModel(tmp)

	m = press(t, m, runes("/"), runes("zzz"))
	assert.Empty(t, m.visible)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.filterActive)
	assert.False(t, m.result.Aborted)
	assert.Len(t, m.visible, 4)
}

func TestSourcePickerClear(t *testing.T) {
	m := newSourcePickerModel(pickerFixture(t))
	m = press(t, m, runes(" "), runes("j"), runes(" "), runes("c"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, m.result.Paths)
}

func TestLoadChildrenMarksSymlinkAndTruncates(t *testing.T) {
	origMax := maxDirEntries
	defer func() { maxDirEntries = origMax }()

	tmp := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(tmp, "a"), 0o755))
	require.NoError(t, os.Symlink(filepath.Join(tmp, "a"), filepath.Join(tmp, "alink")))
	for i := 0; i < 12; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(tmp, "file"+fmt.Sprint(i)), []byte("x"), 0o644))
	}

	m := newSourcePickerModel(tmp)
	var symlinkNode *fileNode
	for _, n := range m.root.Children {
		if n.Name == "alink" {
			symlinkNode = n
		}
	}
	require.NotNil(t, symlinkNode)
	assert.False(t, symlinkNode.IsDir, "symlink should not be treated as dir")
	assert.True(t, symlinkNode.IsSymlink)

	maxDirEntries = 2
	m2 := newSourcePickerModel(tmp)
	require.Len(t, m2.root.Children, 3)
	last := m2.root.Children[len(m2.root.Children)-1]
	assert.True(t, last.IsPlaceholder)

	// Placeholders cannot be selected.
	m2 = press(t, m2, runes("G"), runes(" "), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, m2.result.Paths)
}

func TestSourcePickerUnreadableStart(t *testing.T) {
	m := newSourcePickerModel(filepath.Join(t.TempDir(), "missing"))
	assert.NotEmpty(t, m.root.Err)
	assert.Contains(t, m.View(), "cannot read directory")

	m = press(t, m, runes(" "), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, m.result.Paths)
}
