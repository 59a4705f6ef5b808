package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"

	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/process"
)

// Media types understood by Minify.
const (
	MediaTypeJS  = "application/javascript"
	MediaTypeCSS = "text/css"
)

// Noop passes files through unchanged.
func Noop() Stage {
	return StageFunc{Label: "noop", Fn: func(ctx context.Context, files []*File) ([]*File, error) {
		return files, nil
	}}
}

// Concat joins all files, newline separated, into a single file named name.
// The joined file has no base, so it is written directly below the
// destination.
func Concat(name string) Stage {
	return StageFunc{Label: "concat", Fn: func(ctx context.Context, files []*File) ([]*File, error) {
		var buf bytes.Buffer
		for i, f := range files {
			if i > 0 {
				buf.WriteByte('\n')
			}
			buf.Write(f.Contents)
		}
		return []*File{NewFile(name, ".", buf.Bytes())}, nil
	}}
}

// Rename changes the extension of every file.
func Rename(ext string) Stage {
	return StageFunc{Label: "rename", Fn: func(ctx context.Context, files []*File) ([]*File, error) {
		for _, f := range files {
			f.SetExt(ext)
		}
		return files, nil
	}}
}

var minifier = newMinifier()

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc(MediaTypeJS, js.Minify)
	m.AddFunc(MediaTypeCSS, css.Minify)
	return m
}

// Minify compresses every file as mediaType.
func Minify(mediaType string) Stage {
	return StageFunc{Label: "minify", Fn: func(ctx context.Context, files []*File) ([]*File, error) {
		for _, f := range files {
			out, err := minifier.Bytes(mediaType, f.Contents)
			if err != nil {
				return nil, errors.WrapTransform(err, errors.ErrCodeTransformFailed, "minify failed", f.Path)
			}
			f.Contents = out
		}
		return files, nil
	}}
}

// MinifyBytes compresses b as mediaType.
func MinifyBytes(mediaType string, b []byte) ([]byte, error) {
	return minifier.Bytes(mediaType, b)
}

// Command pipes every file through an external program: the file contents
// go to standard input and standard output replaces them. The arguments
// may reference {path}, {dir} and {name} of the current file.
func Command(runner process.Runner, cmd process.Command) Stage {
	return StageFunc{Label: cmd.Name, Fn: func(ctx context.Context, files []*File) ([]*File, error) {
		for _, f := range files {
			c := cmd.Expand(map[string]string{
				"path": f.Path,
				"dir":  path.Dir(f.Path),
				"name": f.Name(),
			})
			c.Stdin = f.Contents

			out, err := runner.Run(ctx, c)
			if err != nil {
				if !errors.IsProcessError(err) {
					return nil, err
				}
				return nil, errors.Wrap(err, errors.ErrorTypeProcess, errorCode(err),
					fmt.Sprintf("%s failed", cmd.Name)).WithLocation(f.Path, 0)
			}
			f.Contents = out
		}
		return files, nil
	}}
}

func errorCode(err error) string {
	if code, ok := errors.GetErrorContext(err)["code"].(string); ok && code != "" {
		return code
	}
	return errors.ErrCodeProcessFailed
}

// Rebase sets the base of every file, so output paths are computed
// relative to base instead of the base of the pattern that matched.
func Rebase(base string) Stage {
	return StageFunc{Label: "rebase", Fn: func(ctx context.Context, files []*File) ([]*File, error) {
		for _, f := range files {
			f.Base = base
		}
		return files, nil
	}}
}
