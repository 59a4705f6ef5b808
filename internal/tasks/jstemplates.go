package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aymerick/raymond"

	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/glob"
	"github.com/conneroisu/estatico/internal/pipeline"
)

// JSTemplates bundles the module templates into one script that registers
// each of them, compiled at load time, under the configured namespace.
// Templates are parsed first so a syntax error fails the build instead of
// the browser.
func (e *Env) JSTemplates(ctx context.Context) error {
	cfg := e.Config.JSTemplates

	files, err := pipeline.Read(e.Root, glob.New(cfg.Src...))
	if err != nil {
		return err
	}

	templates := make(map[string]string, len(files))
	for _, f := range files {
		if _, err := raymond.Parse(string(f.Contents)); err != nil {
			return errors.WrapTransform(err, errors.ErrCodeCompileFailed, "invalid template", f.Path)
		}
		f.Base = cfg.Base
		templates[templateName(f)] = string(f.Contents)
	}

	script, err := declareTemplates(cfg.Namespace, templates)
	if err != nil {
		return err
	}

	out := []*pipeline.File{pipeline.NewFile(cfg.File, ".", script)}
	if _, err := pipeline.Write(e.Root, cfg.Dest, out); err != nil {
		return err
	}

	e.Logger.Info(ctx, "Bundled templates", "count", len(templates), "namespace", cfg.Namespace)
	return nil
}

// declareTemplates renders the namespace declarations followed by one
// assignment per template, in name order.
func declareTemplates(namespace string, templates map[string]string) ([]byte, error) {
	var buf bytes.Buffer

	parts := strings.Split(namespace, ".")
	target := "this"
	for _, part := range parts {
		target += fmt.Sprintf("[%q]", part)
		fmt.Fprintf(&buf, "%s = %s || {};\n", target, target)
	}

	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		source, err := json.Marshal(templates[name])
		if err != nil {
			return nil, errors.NewInternalError(errors.ErrCodeInternalError, "encoding template "+name, err)
		}
		key, _ := json.Marshal(name)
		fmt.Fprintf(&buf, "%s[%s] = Handlebars.compile(%s);\n", target, key, source)
	}

	return buf.Bytes(), nil
}
