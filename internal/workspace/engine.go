// Package workspace copies external files and directories into the managed
// data root. Every requested source gets exactly one outcome; a failing
// source never affects its siblings.
package workspace

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/tormodhaugland/intake/internal/fs"
	"github.com/tormodhaugland/intake/internal/model"
)

// Options configures an Engine.
type Options struct {
	// Workers > 1 processes independent sources in parallel. Sources that map
	// to the same destination always run one after another, in input order.
	Workers int

	// Verify re-reads every copied file and compares blake3 digests.
	Verify bool

	Logger *zerolog.Logger

	// Callbacks for progress reporting (all optional). With Workers > 1 they
	// may be called from several goroutines at once.
	OnStart func(index int, source string)
	OnDone  func(index int, outcome model.ImportOutcome)

	// OnState reports every state an item passes through: pending, copying
	// once the checks pass, then the terminal state.
	OnState func(index int, source string, state model.State)
}

// Engine validates and copies import sources into directories under a fixed
// data root.
type Engine struct {
	dataRoot string
	opts     Options
	log      zerolog.Logger
}

// NewEngine returns an engine guarding dataRoot. The root is canonicalized
// once and never changes for the engine's lifetime.
func NewEngine(dataRoot string, opts Options) (*Engine, error) {
	if dataRoot == "" {
		return nil, errors.New("data root is required")
	}
	root, err := fs.Canonical(dataRoot)
	if err != nil {
		return nil, errors.Errorf("resolve data root %s: %w", dataRoot, err)
	}

	if opts.Workers < 1 {
		opts.Workers = 1
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}

	return &Engine{
		dataRoot: root,
		opts:     opts,
		log:      log.With().Str("component", "import").Logger(),
	}, nil
}

// DataRoot returns the canonical data root.
func (e *Engine) DataRoot() string {
	return e.dataRoot
}

// ImportBatch copies every source into targetDir and returns one outcome per
// source, in input order. It never fails as a whole.
func (e *Engine) ImportBatch(ctx context.Context, targetDir string, sources []string) []model.ImportOutcome {
	return e.run(ctx, targetDir, sources, false)
}

// Plan runs the target, containment and conflict checks without copying.
// Sources that would be copied come back with Planned set.
func (e *Engine) Plan(ctx context.Context, targetDir string, sources []string) []model.ImportOutcome {
	return e.run(ctx, targetDir, sources, true)
}

type target struct {
	path      string // absolute, as the caller named it
	canonical string
	err       error
}

func (e *Engine) run(ctx context.Context, targetDir string, sources []string, dryRun bool) []model.ImportOutcome {
	outcomes := make([]model.ImportOutcome, len(sources))
	tgt := resolveTarget(targetDir)

	process := func(i int) {
		outcomes[i] = e.importOne(ctx, i, tgt, sources[i], dryRun)
	}

	groups := groupByDest(tgt.path, sources)
	if e.opts.Workers <= 1 || len(groups) <= 1 {
		for i := range sources {
			process(i)
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(e.opts.Workers)
	for _, group := range groups {
		group := group
		g.Go(func() error {
			for _, i := range group {
				process(i)
			}
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// resolveTarget checks the batch target once. A missing or non-directory
// target fails every item of the batch.
func resolveTarget(targetDir string) target {
	abs, err := filepath.Abs(targetDir)
	if err != nil {
		return target{path: targetDir, err: err}
	}
	t := target{path: filepath.Clean(abs)}

	canonical, err := fs.Canonical(t.path)
	if err != nil {
		t.err = err
		return t
	}
	t.canonical = canonical

	if !fs.IsDir(canonical) {
		if ok, _ := fs.Exists(canonical); ok {
			t.err = errors.New("not a directory")
		} else {
			t.err = errors.New("no such directory")
		}
	}
	return t
}

// groupByDest buckets source indexes by destination path, preserving input
// order inside each bucket and first-appearance order across buckets.
func groupByDest(targetPath string, sources []string) [][]int {
	index := make(map[string]int)
	var groups [][]int
	for i, src := range sources {
		key := filepath.Join(targetPath, filepath.Base(filepath.Clean(src)))
		g, ok := index[key]
		if !ok {
			g = len(groups)
			index[key] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

func (e *Engine) importOne(ctx context.Context, index int, tgt target, source string, dryRun bool) model.ImportOutcome {
	if e.opts.OnStart != nil {
		e.opts.OnStart(index, source)
	}

	e.transition(index, source, model.StatePending)

	start := time.Now()
	out := e.process(ctx, index, tgt, source, dryRun)

	ev := e.log.Info()
	if !out.Success && !out.Planned {
		ev = e.log.Warn()
	}
	ev.Int("index", index).
		Str("source", out.SourcePath).
		Str("dest", out.DestPath).
		Str("state", string(out.State())).
		Str("reason", string(out.Reason)).
		Str("detail", out.Detail).
		Int64("bytes", out.Bytes).
		Dur("elapsed", time.Since(start)).
		Msg("import item")

	if !out.Planned {
		e.transition(index, source, out.State())
	}
	if e.opts.OnDone != nil {
		e.opts.OnDone(index, out)
	}
	return out
}

func (e *Engine) transition(index int, source string, state model.State) {
	if e.opts.OnState != nil {
		e.opts.OnState(index, source, state)
	}
}

func (e *Engine) process(ctx context.Context, index int, tgt target, source string, dryRun bool) model.ImportOutcome {
	out := model.ImportOutcome{SourcePath: source}

	if err := ctx.Err(); err != nil {
		return failed(out, &CopyError{Op: "import", Path: source, Err: err})
	}
	if tgt.err != nil {
		return failed(out, &CopyError{Op: "target", Path: tgt.path, Err: tgt.err})
	}

	abs, err := filepath.Abs(source)
	if err != nil {
		return failed(out, &CopyError{Op: "resolve", Path: source, Err: err})
	}
	abs = filepath.Clean(abs)

	if err := e.checkContainment(abs, tgt); err != nil {
		var copyErr *CopyError
		if errors.As(err, &copyErr) {
			return failed(out, err)
		}
		return rejected(out, model.ReasonRecursiveImport, err)
	}

	out.DestPath = filepath.Join(tgt.path, filepath.Base(abs))
	if err := checkConflict(out.DestPath); err != nil {
		var copyErr *CopyError
		if errors.As(err, &copyErr) {
			return failed(out, err)
		}
		return rejected(out, model.ReasonAlreadyExists, err)
	}

	if dryRun {
		out.Planned = true
		return out
	}

	e.transition(index, source, model.StateCopying)
	stats, err := copyTree(abs, out.DestPath)
	out.Files, out.Links, out.Dirs, out.Bytes = stats.Files, stats.Links, stats.Dirs, stats.Bytes
	if err != nil {
		return failed(out, err)
	}

	if e.opts.Verify {
		if err := verifyTree(abs, out.DestPath); err != nil {
			return failed(out, err)
		}
	}

	out.Success = true
	return out
}

// checkContainment rejects a source that is the data root, the target
// directory, or an ancestor of either. Copying such a source would put the
// destination inside the tree being copied.
func (e *Engine) checkContainment(source string, tgt target) error {
	canonical, err := fs.Canonical(source)
	if err != nil {
		return &CopyError{Op: "resolve", Path: source, Err: err}
	}

	if fs.IsAncestorOrSelf(canonical, e.dataRoot) {
		return errors.Errorf("%w: %s contains data root %s", ErrRecursiveImport, source, e.dataRoot)
	}
	if fs.IsAncestorOrSelf(canonical, tgt.canonical) {
		return errors.Errorf("%w: %s contains target %s", ErrRecursiveImport, source, tgt.path)
	}
	return nil
}

func checkConflict(dest string) error {
	exists, err := fs.Exists(dest)
	if err != nil {
		return &CopyError{Op: "stat", Path: dest, Err: err}
	}
	if exists {
		return errors.Errorf("%w: %s", ErrAlreadyExists, dest)
	}
	return nil
}

func rejected(out model.ImportOutcome, reason model.Reason, err error) model.ImportOutcome {
	out.Reason = reason
	out.Detail = err.Error()
	out.Err = err
	return out
}

func failed(out model.ImportOutcome, err error) model.ImportOutcome {
	out.Reason = model.ReasonCopyFailed
	out.Detail = err.Error()
	out.Err = err
	return out
}
