package tasks

import (
	"context"
	"os"

	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/glob"
	"github.com/conneroisu/estatico/internal/pipeline"
)

// Media copies fonts and media files into the build, keeping their path
// below the configured base.
func (e *Env) Media(ctx context.Context) error {
	cfg := e.Config.Media

	p := &pipeline.Pipeline{
		Name:   "media",
		Root:   e.Root,
		Source: glob.New(cfg.Src...),
		Stages: []pipeline.Stage{pipeline.Rebase(cfg.Base)},
		Dest:   cfg.Dest,
		Logger: e.Logger,
	}

	written, err := p.Run(ctx)
	if err != nil {
		return err
	}

	e.Logger.Info(ctx, "Copied media", "count", len(written))
	return nil
}

// Clean removes the build output. Missing directories are not an error.
func (e *Env) Clean(ctx context.Context) error {
	for _, p := range e.Config.Clean.Paths {
		if err := os.RemoveAll(e.path(p)); err != nil {
			return errors.WrapIO(err, errors.ErrCodeWriteFailed, "remove failed", p)
		}
		e.Logger.Info(ctx, "Removed", "path", p)
	}
	return nil
}
