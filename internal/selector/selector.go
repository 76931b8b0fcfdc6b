// Package selector produces the ordered list of source paths handed to the
// import engine. Selectors never validate paths; safety checks belong to the
// engine.
package selector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mattn/go-isatty"

	"github.com/tormodhaugland/intake/internal/model"
	"github.com/tormodhaugland/intake/internal/tui"
)

// ErrPickerUnavailable means the interactive picker could not be shown. It
// fails the whole selection step.
var ErrPickerUnavailable = errors.New("picker unavailable")

// Selector obtains candidate source paths from the user.
type Selector interface {
	Select(ctx context.Context) (model.Selection, error)
}

// Static returns a fixed list of paths, made absolute, in the given order.
type Static struct {
	Paths []string
}

func (s Static) Select(ctx context.Context) (model.Selection, error) {
	if len(s.Paths) == 0 {
		return model.Selection{Cancelled: true}, nil
	}
	paths := make([]string, 0, len(s.Paths))
	for _, p := range s.Paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return model.Selection{}, fmt.Errorf("invalid path %s: %w", p, err)
		}
		paths = append(paths, abs)
	}
	return model.Selection{Paths: paths}, nil
}

// Glob expands doublestar patterns. Relative patterns are taken from Base
// (the working directory when empty). Patterns are expanded in order and the
// matches of each pattern are sorted.
type Glob struct {
	Base     string
	Patterns []string
}

func (g Glob) Select(ctx context.Context) (model.Selection, error) {
	base := g.Base
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return model.Selection{}, fmt.Errorf("failed to get current directory: %w", err)
		}
		base = wd
	}

	var paths []string
	for _, pattern := range g.Patterns {
		if err := ctx.Err(); err != nil {
			return model.Selection{}, err
		}
		if !filepath.IsAbs(pattern) {
			pattern = filepath.Join(base, pattern)
		}
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return model.Selection{}, fmt.Errorf("invalid pattern %q: %w", pattern, err)
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}

	if len(paths) == 0 {
		return model.Selection{Cancelled: true}, nil
	}
	return model.Selection{Paths: paths}, nil
}

// Multi concatenates the paths of several selectors in order. It is
// cancelled only when every selector is.
type Multi []Selector

func (m Multi) Select(ctx context.Context) (model.Selection, error) {
	var paths []string
	for _, s := range m {
		sel, err := s.Select(ctx)
		if err != nil {
			return model.Selection{}, err
		}
		if !sel.Cancelled {
			paths = append(paths, sel.Paths...)
		}
	}
	if len(paths) == 0 {
		return model.Selection{Cancelled: true}, nil
	}
	return model.Selection{Paths: paths}, nil
}

// RunFunc runs an interactive picker starting at a directory.
type RunFunc func(start string) (tui.SourcePickerResult, error)

// Picker shows the terminal source picker.
type Picker struct {
	Start string

	// Run and IsTerminal default to the real TUI and a tty check.
	Run        RunFunc
	IsTerminal func() bool
}

func (p Picker) Select(ctx context.Context) (model.Selection, error) {
	isTerminal := p.IsTerminal
	if isTerminal == nil {
		isTerminal = stdioIsTerminal
	}
	if !isTerminal() {
		return model.Selection{}, fmt.Errorf("%w: not running in a terminal", ErrPickerUnavailable)
	}

	start := p.Start
	if start == "" {
		wd, err := os.Getwd()
		if err != nil {
			return model.Selection{}, fmt.Errorf("failed to get current directory: %w", err)
		}
		start = wd
	}
	start, err := filepath.Abs(start)
	if err != nil {
		return model.Selection{}, fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Stat(start)
	if err != nil {
		return model.Selection{}, fmt.Errorf("%w: cannot open %s: %v", ErrPickerUnavailable, start, err)
	}
	if !info.IsDir() {
		return model.Selection{}, fmt.Errorf("%w: %s is not a directory", ErrPickerUnavailable, start)
	}

	run := p.Run
	if run == nil {
		run = tui.RunSourcePicker
	}
	result, err := run(start)
	if err != nil {
		return model.Selection{}, fmt.Errorf("%w: %v", ErrPickerUnavailable, err)
	}
	if result.Aborted || !result.Confirmed || len(result.Paths) == 0 {
		return model.Selection{Cancelled: true}, nil
	}
	return model.Selection{Paths: result.Paths}, nil
}

func stdioIsTerminal() bool {
	for _, f := range []*os.File{os.Stdin, os.Stderr} {
		fd := f.Fd()
		if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
			return false
		}
	}
	return true
}
