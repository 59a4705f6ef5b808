package tasks

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/process"
)

// Lodash runs the lodash command-line builder to produce a build that
// contains only the configured functions.
func (e *Env) Lodash(ctx context.Context) error {
	cfg := e.Config.Lodash

	cmd, err := process.FromArgs(cfg.Command)
	if err != nil {
		return err
	}
	cmd.Dir = e.Root
	if len(cfg.Include) > 0 {
		cmd.Args = append(cmd.Args, "include="+strings.Join(cfg.Include, ","))
	}
	cmd.Args = append(cmd.Args, "-o", cfg.Output)
	if cfg.Debug {
		cmd.Args = append(cmd.Args, "-d")
	}

	if err := os.MkdirAll(filepath.Dir(e.path(cfg.Output)), 0755); err != nil {
		return errors.WrapIO(err, errors.ErrCodeWriteFailed, "create directory failed", cfg.Output)
	}

	e.Logger.Info(ctx, "Generating custom lodash build", "include", cfg.Include)
	if _, err := e.Runner.Run(ctx, cmd); err != nil {
		return err
	}

	e.Logger.Info(ctx, "Lodash build written", "output", cfg.Output)
	return nil
}
