package tasks

import (
	"context"
	"path"
	"strings"

	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/glob"
	"github.com/conneroisu/estatico/internal/pipeline"
	"github.com/conneroisu/estatico/internal/process"
)

// CSS compiles the stylesheets with the configured Sass command and, when
// configured, runs the result through an autoprefixer command. Partials
// (files starting with an underscore) are only compiled through imports.
func (e *Env) CSS(ctx context.Context) error {
	cfg := e.Config.CSS

	sass, err := process.FromArgs(cfg.Command)
	if err != nil {
		return err
	}
	sass.Dir = e.Root
	for _, lp := range cfg.LoadPaths {
		sass.Args = append(sass.Args, "--load-path="+lp)
	}
	sass.Args = append(sass.Args, "--style="+e.sassStyle())

	stages := []pipeline.Stage{
		skipPartials(),
		compileStage(e.Runner, sass),
		pipeline.Rename(".css"),
	}

	if len(cfg.Autoprefixer) > 0 {
		prefixer, err := process.FromArgs(cfg.Autoprefixer)
		if err != nil {
			return err
		}
		prefixer.Dir = e.Root
		stages = append(stages, pipeline.Command(e.Runner, prefixer))
	}

	p := &pipeline.Pipeline{
		Name:   "css",
		Root:   e.Root,
		Source: glob.New(cfg.Src...),
		Stages: stages,
		Dest:   cfg.Dest,
		Logger: e.Logger,
	}

	written, err := p.Run(ctx)
	if err != nil {
		return err
	}

	e.Logger.Info(ctx, "Compiled stylesheets", "count", len(written), "style", e.sassStyle())
	return nil
}

func (e *Env) sassStyle() string {
	if e.Config.Production {
		return "compressed"
	}
	return "expanded"
}

func skipPartials() pipeline.Stage {
	return pipeline.StageFunc{Label: "skip-partials", Fn: func(ctx context.Context, files []*pipeline.File) ([]*pipeline.File, error) {
		kept := files[:0]
		for _, f := range files {
			if !strings.HasPrefix(path.Base(f.Path), "_") {
				kept = append(kept, f)
			}
		}
		return kept, nil
	}}
}

// compileStage is a Command stage whose failures are compile errors of the
// file being compiled.
func compileStage(runner process.Runner, cmd process.Command) pipeline.Stage {
	inner := pipeline.Command(runner, cmd)
	return pipeline.StageFunc{Label: cmd.Name, Fn: func(ctx context.Context, files []*pipeline.File) ([]*pipeline.File, error) {
		out, err := inner.Process(ctx, files)
		if err != nil && errors.IsProcessError(err) && processCode(err) == errors.ErrCodeProcessFailed {
			return nil, errors.Wrap(err, errors.ErrorTypeTransform, errors.ErrCodeCompileFailed, "compile failed")
		}
		return out, err
	}}
}

func processCode(err error) string {
	code, _ := errors.GetErrorContext(err)["code"].(string)
	return code
}
