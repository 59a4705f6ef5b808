package tasks

import (
	"context"
	"encoding/json"
	"path"

	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/glob"
	"github.com/conneroisu/estatico/internal/pipeline"
)

// HTML renders the pages. Each page may start with a YAML front matter
// block, exposed to the template as "frontmatter"; the JSON file of the
// same name in the data directory supplies the rest of the template data.
func (e *Env) HTML(ctx context.Context) error {
	cfg := e.Config.HTML

	partials, err := e.loadPartials(cfg.Partials)
	if err != nil {
		return err
	}
	engine := newTemplateEngine(partials)

	p := &pipeline.Pipeline{
		Name:   "html",
		Root:   e.Root,
		Source: glob.New(cfg.Src...),
		Stages: []pipeline.Stage{
			frontMatterStage(),
			e.templateDataStage(cfg.Data),
			renderStage(engine),
			pipeline.Rebase(cfg.Base),
		},
		Dest:   cfg.Dest,
		Logger: e.Logger,
	}

	written, err := p.Run(ctx)
	if err != nil {
		return err
	}

	e.Logger.Info(ctx, "Rendered pages", "count", len(written))
	return nil
}

// loadPartials reads every partial, named by its path below the glob base
// without extension. Front matter is stripped.
func (e *Env) loadPartials(patterns []string) (map[string]string, error) {
	files, err := pipeline.Read(e.Root, glob.New(patterns...))
	if err != nil {
		return nil, err
	}

	partials := make(map[string]string, len(files))
	for _, f := range files {
		_, body, err := splitFrontMatter(f.Contents)
		if err != nil {
			return nil, errors.WrapTransform(err, errors.ErrCodeCompileFailed, "invalid front matter", f.Path)
		}
		partials[templateName(f)] = string(body)
	}
	return partials, nil
}

func frontMatterStage() pipeline.Stage {
	return pipeline.StageFunc{Label: "front-matter", Fn: func(ctx context.Context, files []*pipeline.File) ([]*pipeline.File, error) {
		for _, f := range files {
			matter, body, err := splitFrontMatter(f.Contents)
			if err != nil {
				return nil, errors.WrapTransform(err, errors.ErrCodeCompileFailed, "invalid front matter", f.Path)
			}
			if matter == nil {
				matter = make(map[string]interface{})
			}
			f.Data["frontmatter"] = matter
			f.Contents = body
		}
		return files, nil
	}}
}

// templateDataStage merges dataDir/<page name>.json into the data of every
// page. A missing data file is not an error.
func (e *Env) templateDataStage(dataDir string) pipeline.Stage {
	return pipeline.StageFunc{Label: "template-data", Fn: func(ctx context.Context, files []*pipeline.File) ([]*pipeline.File, error) {
		for _, f := range files {
			rel := path.Join(dataDir, f.Name()+".json")
			raw, ok, err := e.readOptional(rel)
			if err != nil {
				return nil, errors.WrapIO(err, errors.ErrCodeReadFailed, "read failed", rel)
			}
			if !ok {
				continue
			}

			var data map[string]interface{}
			if err := json.Unmarshal(raw, &data); err != nil {
				return nil, errors.WrapTransform(err, errors.ErrCodeCompileFailed, "invalid template data", rel)
			}
			for k, v := range data {
				f.Data[k] = v
			}
		}
		return files, nil
	}}
}

func renderStage(engine *templateEngine) pipeline.Stage {
	return pipeline.StageFunc{Label: "handlebars", Fn: func(ctx context.Context, files []*pipeline.File) ([]*pipeline.File, error) {
		for _, f := range files {
			out, err := engine.Render(string(f.Contents), f.Data)
			if err != nil {
				return nil, errors.WrapTransform(err, errors.ErrCodeCompileFailed, "template failed", f.Path)
			}
			f.Contents = []byte(out)
		}
		return files, nil
	}}
}
