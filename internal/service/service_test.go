package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tormodhaugland/intake/internal/history"
	"github.com/tormodhaugland/intake/internal/model"
	"github.com/tormodhaugland/intake/internal/selector"
	"github.com/tormodhaugland/intake/internal/workspace"
)

type fixture struct {
	dataRoot string
	outside  string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	base, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	f := fixture{
		dataRoot: filepath.Join(base, "data"),
		outside:  filepath.Join(base, "home"),
	}
	require.NoError(t, os.MkdirAll(filepath.Join(f.dataRoot, "inbox"), 0o755))
	require.NoError(t, os.MkdirAll(f.outside, 0o755))
	return f
}

func newService(t *testing.T, f fixture, opts Options) *Service {
	t.Helper()
	engine, err := workspace.NewEngine(f.dataRoot, workspace.Options{})
	require.NoError(t, err)
	return New(engine, opts)
}

type failingJournal struct{ calls int }

func (j *failingJournal) RecordBatch(context.Context, model.BatchRecord) (string, error) {
	j.calls++
	return "", errors.New("disk full")
}

func TestResolveTarget(t *testing.T) {
	f := newFixture(t)
	s := newService(t, f, Options{})

	got, err := s.ResolveTarget("inbox")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dataRoot, "inbox"), got)

	got, err = s.ResolveTarget("")
	require.NoError(t, err)
	assert.Equal(t, f.dataRoot, got)

	// Missing targets resolve; the engine reports them per item.
	got, err = s.ResolveTarget("not/yet")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dataRoot, "not", "yet"), got)

	got, err = s.ResolveTarget(filepath.Join(f.dataRoot, "inbox"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dataRoot, "inbox"), got)
}

func TestResolveTargetRejectsEscapes(t *testing.T) {
	f := newFixture(t)
	s := newService(t, f, Options{})

	_, err := s.ResolveTarget("../home")
	assert.ErrorIs(t, err, ErrTargetOutsideDataRoot)

	_, err = s.ResolveTarget(f.outside)
	assert.ErrorIs(t, err, ErrTargetOutsideDataRoot)

	require.NoError(t, os.Symlink(f.outside, filepath.Join(f.dataRoot, "escape")))
	_, err = s.ResolveTarget("escape")
	assert.ErrorIs(t, err, ErrTargetOutsideDataRoot)
}

func TestSelectSourcesWithoutSelector(t *testing.T) {
	s := newService(t, newFixture(t), Options{})
	_, err := s.SelectSources(context.Background())
	assert.ErrorIs(t, err, ErrNoSelector)
}

func TestSelectSourcesPropagatesPickerUnavailable(t *testing.T) {
	f := newFixture(t)
	s := newService(t, f, Options{Selector: selector.Picker{
		Start:      f.outside,
		IsTerminal: func() bool { return false },
	}})

	_, err := s.SelectSources(context.Background())
	assert.ErrorIs(t, err, selector.ErrPickerUnavailable)
}

func TestSelectThenImport(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.outside, "report.txt"), []byte("hello"), 0o644))

	s := newService(t, f, Options{Selector: selector.Static{Paths: []string{
		filepath.Join(f.outside, "report.txt"),
		f.dataRoot,
	}}})

	sel, err := s.SelectSources(context.Background())
	require.NoError(t, err)
	require.False(t, sel.Cancelled)

	outcomes := s.ImportBatch(context.Background(), f.dataRoot, sel.Paths)
	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Success)
	assert.Equal(t, filepath.Join(f.dataRoot, "report.txt"), outcomes[0].DestPath)
	assert.Equal(t, model.ReasonRecursiveImport, outcomes[1].Reason)
}

func TestImportRecordsHistory(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.outside, "a.txt"), []byte("abc"), 0o644))

	db, err := history.Open(filepath.Join(f.dataRoot, "_system", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := newService(t, f, Options{Journal: db})
	target := filepath.Join(f.dataRoot, "inbox")
	batch := s.Import(context.Background(), model.ImportRequest{
		TargetDir: target,
		Sources:   []string{filepath.Join(f.outside, "a.txt"), filepath.Join(f.outside, "a.txt")},
	})
	require.NotEmpty(t, batch.ID)
	assert.Equal(t, 1, batch.Succeeded())

	stored, err := db.GetBatch(context.Background(), batch.ID)
	require.NoError(t, err)
	assert.Equal(t, target, stored.TargetDir)
	require.Len(t, stored.Outcomes, 2)
	assert.True(t, stored.Outcomes[0].Success)
	assert.Equal(t, model.ReasonAlreadyExists, stored.Outcomes[1].Reason)
}

func TestJournalFailureKeepsOutcomes(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.outside, "a.txt"), []byte("abc"), 0o644))

	journal := &failingJournal{}
	s := newService(t, f, Options{Journal: journal})

	batch := s.Import(context.Background(), model.ImportRequest{TargetDir: f.dataRoot, Sources: []string{filepath.Join(f.outside, "a.txt")}})
	assert.Equal(t, 1, journal.calls)
	assert.Empty(t, batch.ID)
	require.Len(t, batch.Outcomes, 1)
	assert.True(t, batch.Outcomes[0].Success)
}

func TestPlanIsNotJournaled(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.outside, "a.txt"), []byte("abc"), 0o644))

	journal := &failingJournal{}
	s := newService(t, f, Options{Journal: journal})

	outcomes := s.Plan(context.Background(), f.dataRoot, []string{filepath.Join(f.outside, "a.txt")})
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Planned)
	assert.Zero(t, journal.calls)

	_, err := os.Stat(filepath.Join(f.dataRoot, "a.txt"))
	assert.True(t, os.IsNotExist(err))
}
