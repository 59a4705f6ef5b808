package tasks

import (
	"context"
	"embed"
	"path"
	"sort"

	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/glob"
	"github.com/conneroisu/estatico/internal/pipeline"
	"github.com/conneroisu/estatico/internal/process"
)

//go:embed templates/*.scss
var defaultTemplates embed.FS

// Iconfont turns the icon SVGs into an SVG font, assigning consecutive
// private-use codepoints in icon name order, and renders the stylesheet
// template that maps icon names to codepoints.
func (e *Env) Iconfont(ctx context.Context) error {
	cfg := e.Config.Iconfont

	files, err := pipeline.Read(e.Root, glob.New(cfg.Src...))
	if err != nil {
		return err
	}

	sort.SliceStable(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	glyphs := make([]glyph, 0, len(files))
	seen := make(map[string]string)
	for i, f := range files {
		name := f.Name()
		if other, dup := seen[name]; dup {
			return errors.NewTransformError(errors.ErrCodeTransformFailed,
				"duplicate icon name "+name+" (also "+other+")", nil).WithLocation(f.Path, 0)
		}
		seen[name] = f.Path

		g, err := parseIcon(name, rune(cfg.StartCodepoint+i), f.Contents)
		if err != nil {
			return errors.WrapTransform(err, errors.ErrCodeTransformFailed, "invalid icon", f.Path)
		}
		glyphs = append(glyphs, g)
	}

	fontFile := pipeline.NewFile(cfg.FontName+".svg", ".", renderSVGFont(cfg.FontName, glyphs))
	written, err := pipeline.Write(e.Root, cfg.Dest, []*pipeline.File{fontFile})
	if err != nil {
		return err
	}

	for _, conv := range cfg.Converters {
		cmd, err := process.FromArgs(conv.Command)
		if err != nil {
			return err
		}
		cmd = cmd.Expand(map[string]string{
			"src":  written[0],
			"dest": path.Join(cfg.Dest, cfg.FontName+"."+conv.Ext),
		})
		cmd.Dir = e.Root
		if _, err := e.Runner.Run(ctx, cmd); err != nil {
			return err
		}
	}

	codepoints := make([]map[string]interface{}, len(glyphs))
	for i, g := range glyphs {
		codepoints[i] = map[string]interface{}{
			"name":      g.Name,
			"codepoint": g.Hex(),
			"escaped":   `\` + g.Hex(),
		}
	}

	data := map[string]interface{}{
		"codepoints": codepoints,
		"options": map[string]interface{}{
			"fontName": cfg.FontName,
			"fontPath": cfg.FontPath,
		},
	}
	if err := e.renderStyles(cfg.Template, "icons.scss", cfg.StylesDest, path.Base(cfg.Template), data); err != nil {
		return err
	}

	e.Logger.Info(ctx, "Generated icon font", "glyphs", len(glyphs), "font", written[0])
	return nil
}

// renderStyles renders a stylesheet template to destDir/outName. A missing
// template file falls back to the built-in template named fallback.
func (e *Env) renderStyles(templatePath, fallback, destDir, outName string, data map[string]interface{}) error {
	source, ok, err := e.readOptional(templatePath)
	if err != nil {
		return errors.WrapIO(err, errors.ErrCodeReadFailed, "read failed", templatePath)
	}

	if !ok {
		source, err = defaultTemplates.ReadFile("templates/" + fallback)
		if err != nil {
			return errors.NewInternalError(errors.ErrCodeInternalError, "missing built-in template "+fallback, err)
		}
	}

	out, err := newTemplateEngine(nil).Render(string(source), data)
	if err != nil {
		return errors.WrapTransform(err, errors.ErrCodeCompileFailed, "template failed", templatePath)
	}

	_, err = pipeline.Write(e.Root, destDir, []*pipeline.File{pipeline.NewFile(outName, ".", []byte(out))})
	return err
}
