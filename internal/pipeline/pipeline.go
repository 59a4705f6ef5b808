// Package pipeline implements the read, transform and write cycle shared by
// the file-based tasks: a pattern set selects source files, stages rewrite
// them in order, and the survivors are written below a destination
// directory mirroring their path relative to the glob base.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/glob"
	"github.com/conneroisu/estatico/internal/logging"
)

// Stage transforms the files of a pipeline.
type Stage interface {
	Name() string
	Process(ctx context.Context, files []*File) ([]*File, error)
}

// StageFunc adapts a function to the Stage interface.
type StageFunc struct {
	Label string
	Fn    func(ctx context.Context, files []*File) ([]*File, error)
}

// Name returns the stage label.
func (s StageFunc) Name() string { return s.Label }

// Process calls Fn.
func (s StageFunc) Process(ctx context.Context, files []*File) ([]*File, error) {
	return s.Fn(ctx, files)
}

// Pipeline is a linear source → stages → destination flow.
type Pipeline struct {
	Name   string
	Root   string
	Source glob.PatternSet
	Stages []Stage
	Dest   string
	Logger logging.Logger
}

// Run reads the sources, applies the stages in order and writes the result.
// It returns the written paths relative to Root. The first failing stage
// aborts the run and nothing is written.
func (p *Pipeline) Run(ctx context.Context) ([]string, error) {
	logger := p.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.With("pipeline", p.Name)

	files, err := Read(p.Root, p.Source)
	if err != nil {
		return nil, err
	}
	logger.Debug(ctx, "Read sources", "count", len(files))

	files, err = Apply(ctx, files, p.Stages...)
	if err != nil {
		return nil, err
	}

	written, err := Write(p.Root, p.Dest, files)
	if err != nil {
		return nil, err
	}
	logger.Debug(ctx, "Wrote outputs", "count", len(written), "dest", p.Dest)

	return written, nil
}

// Read loads every file selected by source below root.
func Read(root string, source glob.PatternSet) ([]*File, error) {
	matches, err := source.Expand(root)
	if err != nil {
		return nil, err
	}

	files := make([]*File, 0, len(matches))
	for _, m := range matches {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(m.Path)))
		if err != nil {
			return nil, errors.WrapIO(err, errors.ErrCodeReadFailed, "read failed", m.Path)
		}
		files = append(files, NewFile(m.Path, m.Base, data))
	}

	return files, nil
}

// Apply runs stages over files in declaration order.
func Apply(ctx context.Context, files []*File, stages ...Stage) ([]*File, error) {
	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var err error
		files, err = stage.Process(ctx, files)
		if err != nil {
			return nil, stageError(stage, err)
		}
	}
	return files, nil
}

// Write stores files below root/dest at their Rel path.
func Write(root, dest string, files []*File) ([]string, error) {
	written := make([]string, 0, len(files))
	for _, f := range files {
		rel := filepath.Join(dest, filepath.FromSlash(f.Rel()))
		target := filepath.Join(root, rel)

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return written, errors.WrapIO(err, errors.ErrCodeWriteFailed, "create directory failed", rel)
		}
		if err := os.WriteFile(target, f.Contents, 0644); err != nil {
			return written, errors.WrapIO(err, errors.ErrCodeWriteFailed, "write failed", rel)
		}
		written = append(written, filepath.ToSlash(rel))
	}
	return written, nil
}

// stageError keeps typed errors and reports anything else as a transform
// failure of the stage.
func stageError(stage Stage, err error) error {
	if err == context.Canceled || err == context.DeadlineExceeded {
		return err
	}
	if errors.TypeOf(err) != errors.ErrorTypeInternal {
		return err
	}
	return errors.NewTransformError(errors.ErrCodeTransformFailed,
		fmt.Sprintf("%s failed", stage.Name()), err)
}
