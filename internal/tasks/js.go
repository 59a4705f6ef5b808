package tasks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path"

	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/glob"
	"github.com/conneroisu/estatico/internal/pipeline"
	"github.com/conneroisu/estatico/internal/process"
)

// JS lints the scripts and builds one bundle per configured entry file.
// A bundle contains the entry and its @requires dependencies, each once
// and in dependency order; it is minified in production.
func (e *Env) JS(ctx context.Context) error {
	if err := e.lintScripts(ctx); err != nil {
		return err
	}

	cfg := e.Config.JS
	for _, entry := range cfg.Bundles {
		files, err := e.resolveRequires(entry)
		if err != nil {
			return err
		}

		e.Logger.Debug(ctx, "Resolved bundle", "bundle", entry, "files", len(files))

		stages := []pipeline.Stage{pipeline.Concat(path.Base(entry))}
		if e.Config.Production {
			stages = append(stages, pipeline.Minify(pipeline.MediaTypeJS))
		}

		out, err := pipeline.Apply(ctx, files, stages...)
		if err != nil {
			return err
		}
		if _, err := pipeline.Write(e.Root, cfg.Dest, out); err != nil {
			return err
		}
	}

	e.Logger.Info(ctx, "Built scripts", "bundles", len(cfg.Bundles), "production", e.Config.Production)
	return nil
}

// lintScripts runs the linter over the scripts that changed since they last
// passed. Lint problems are reported as a TransformError.
func (e *Env) lintScripts(ctx context.Context) error {
	cfg := e.Config.JS
	if len(cfg.LintCommand) == 0 {
		return nil
	}

	files, err := pipeline.Read(e.Root, glob.New(cfg.Lint...))
	if err != nil {
		return err
	}

	hashes := make(map[string]string, len(files))
	var changed []string

	e.lintMu.Lock()
	for _, f := range files {
		sum := sha256.Sum256(f.Contents)
		hashes[f.Path] = hex.EncodeToString(sum[:])
		if e.lintCache[f.Path] != hashes[f.Path] {
			changed = append(changed, f.Path)
		}
	}
	e.lintMu.Unlock()

	if len(changed) == 0 {
		return nil
	}

	cmd, err := process.FromArgs(cfg.LintCommand)
	if err != nil {
		return err
	}
	cmd.Dir = e.Root
	cmd.Args = append(cmd.Args, changed...)

	if _, err := e.Runner.Run(ctx, cmd); err != nil {
		if processCode(err) == errors.ErrCodeProcessFailed {
			return errors.Wrap(err, errors.ErrorTypeTransform, errors.ErrCodeLintFailed, "lint failed")
		}
		return err
	}

	e.lintMu.Lock()
	for _, p := range changed {
		e.lintCache[p] = hashes[p]
	}
	e.lintMu.Unlock()

	e.Logger.Debug(ctx, "Linted scripts", "count", len(changed))
	return nil
}
