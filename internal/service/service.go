// Package service is the request boundary between the CLI and the import
// engine. It owns source selection, target resolution and journaling.
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/tormodhaugland/intake/internal/fs"
	"github.com/tormodhaugland/intake/internal/model"
	"github.com/tormodhaugland/intake/internal/selector"
	"github.com/tormodhaugland/intake/internal/workspace"
)

// ErrTargetOutsideDataRoot is returned by ResolveTarget for targets that do
// not live under the data root.
var ErrTargetOutsideDataRoot = errors.New("target is outside the data root")

// ErrNoSelector is returned by SelectSources when no selector is configured.
var ErrNoSelector = errors.New("no source selector configured")

// Journal records finished batches.
type Journal interface {
	RecordBatch(ctx context.Context, batch model.BatchRecord) (string, error)
}

type Options struct {
	Selector selector.Selector
	Journal  Journal // optional
	Logger   *zerolog.Logger
}

type Service struct {
	engine   *workspace.Engine
	selector selector.Selector
	journal  Journal
	log      zerolog.Logger
	now      func() time.Time
}

func New(engine *workspace.Engine, opts Options) *Service {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Service{
		engine:   engine,
		selector: opts.Selector,
		journal:  opts.Journal,
		log:      log.With().Str("component", "service").Logger(),
		now:      time.Now,
	}
}

// DataRoot returns the canonical data root of the underlying engine.
func (s *Service) DataRoot() string {
	return s.engine.DataRoot()
}

// SelectSources asks the configured selector for source paths. A cancelled
// selection is not an error.
func (s *Service) SelectSources(ctx context.Context) (model.Selection, error) {
	if s.selector == nil {
		return model.Selection{}, ErrNoSelector
	}
	sel, err := s.selector.Select(ctx)
	if err != nil {
		return model.Selection{}, err
	}
	s.log.Debug().Bool("cancelled", sel.Cancelled).Int("paths", len(sel.Paths)).Msg("sources selected")
	return sel, nil
}

// ResolveTarget maps a target given relative to the data root (or as an
// absolute path) to an absolute directory path. Targets whose canonical
// form escapes the data root are rejected; the directory need not exist.
func (s *Service) ResolveTarget(target string) (string, error) {
	root := s.engine.DataRoot()

	path := target
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)

	canonical, err := fs.Canonical(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve target %s: %w", target, err)
	}
	if !fs.IsAncestorOrSelf(root, canonical) {
		return "", fmt.Errorf("%w: %s", ErrTargetOutsideDataRoot, target)
	}
	return path, nil
}

// ImportBatch copies sources into targetDir and returns one outcome per
// source, in order.
func (s *Service) ImportBatch(ctx context.Context, targetDir string, sources []string) []model.ImportOutcome {
	return s.Import(ctx, model.ImportRequest{TargetDir: targetDir, Sources: sources}).Outcomes
}

// Import runs req and returns the full batch record. The batch is written
// to the journal when one is configured; a journal failure is logged and
// leaves the outcomes untouched.
func (s *Service) Import(ctx context.Context, req model.ImportRequest) model.BatchRecord {
	targetDir := req.TargetDir
	batch := model.BatchRecord{
		TargetDir: targetDir,
		StartedAt: s.now(),
	}
	batch.Outcomes = s.engine.ImportBatch(ctx, targetDir, req.Sources)
	batch.FinishedAt = s.now()

	s.log.Info().
		Str("target", targetDir).
		Int("total", len(batch.Outcomes)).
		Int("succeeded", batch.Succeeded()).
		Int64("bytes", batch.TotalBytes()).
		Dur("elapsed", batch.FinishedAt.Sub(batch.StartedAt)).
		Msg("batch finished")

	if s.journal == nil {
		return batch
	}

	// Journal even when the caller's context is already done.
	id, err := s.journal.RecordBatch(context.WithoutCancel(ctx), batch)
	if err != nil {
		s.log.Error().Err(err).Str("target", targetDir).Msg("failed to record batch")
		return batch
	}
	batch.ID = id
	return batch
}

// Plan reports what ImportBatch would do without copying anything. Plans
// are never journaled.
func (s *Service) Plan(ctx context.Context, targetDir string, sources []string) []model.ImportOutcome {
	return s.engine.Plan(ctx, targetDir, sources)
}
