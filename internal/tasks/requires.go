package tasks

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/pipeline"
)

// requiresPattern finds dependency declarations such as
//
//	/**
//	 * @requires ../vendor/jquery.js
//	 */
var requiresPattern = regexp.MustCompile(`\* @requires [\s-]*(.*?\.js)`)

// requiredPaths returns the dependencies declared in src, resolved
// against dir, in declaration order.
func requiredPaths(dir string, src []byte) []string {
	var deps []string
	for _, m := range requiresPattern.FindAllSubmatch(src, -1) {
		deps = append(deps, path.Clean(path.Join(dir, string(m[1]))))
	}
	return deps
}

// resolveRequires returns entry and everything it requires, transitively,
// with every file listed once and after all of its dependencies.
func (e *Env) resolveRequires(entry string) ([]*pipeline.File, error) {
	var (
		ordered []*pipeline.File
		done    = make(map[string]bool)
		active  = make(map[string]bool)
		stack   []string
	)

	var visit func(p string) error
	visit = func(p string) error {
		if done[p] {
			return nil
		}
		if active[p] {
			cycle := append(append([]string(nil), stack...), p)
			return errors.NewTransformError(errors.ErrCodeTransformFailed,
				"circular @requires: "+strings.Join(cycle, " -> "), nil).WithLocation(p, 0)
		}

		data, err := os.ReadFile(filepath.Join(e.Root, filepath.FromSlash(p)))
		if err != nil {
			ioErr := errors.WrapIO(err, errors.ErrCodeReadFailed, "read failed", p)
			if len(stack) > 0 {
				ioErr = ioErr.WithContext("required_by", stack[len(stack)-1])
			}
			return ioErr
		}

		active[p] = true
		stack = append(stack, p)
		for _, dep := range requiredPaths(path.Dir(p), data) {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		active[p] = false
		done[p] = true

		ordered = append(ordered, pipeline.NewFile(p, path.Dir(p), data))
		return nil
	}

	if err := visit(path.Clean(filepath.ToSlash(entry))); err != nil {
		return nil, err
	}
	return ordered, nil
}
