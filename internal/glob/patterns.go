// Package glob implements ordered include/exclude pattern sets.
//
// A pattern set is written as a list of doublestar patterns, where a
// leading "!" marks an exclusion:
//
//	source/assets/js/*.js
//	source/modules/**/*.js
//	!source/assets/vendor/*.js
//
// Excludes are evaluated after includes, so a path matched by any exclude
// is never selected, whatever its includes say.
package glob

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/conneroisu/estatico/internal/errors"
)

// PatternSet is an ordered set of include and exclude patterns.
type PatternSet struct {
	Include []string
	Exclude []string
}

// Match is a file selected by a pattern set.
type Match struct {
	// Path is the slash-separated path relative to the expansion root.
	Path string
	// Base is the non-magic directory prefix of the include that selected
	// Path. Output paths are computed relative to it.
	Base string
}

// Rel returns Path relative to Base.
func (m Match) Rel() string {
	if m.Base == "." || m.Base == "" {
		return m.Path
	}
	return strings.TrimPrefix(m.Path, m.Base+"/")
}

// New builds a pattern set from patterns in declaration order.
func New(patterns ...string) PatternSet {
	var ps PatternSet
	for _, p := range patterns {
		if strings.HasPrefix(p, "!") {
			ps.Exclude = append(ps.Exclude, normalize(strings.TrimPrefix(p, "!")))
			continue
		}
		ps.Include = append(ps.Include, normalize(p))
	}
	return ps
}

// Patterns returns the set in its written form.
func (ps PatternSet) Patterns() []string {
	out := make([]string, 0, len(ps.Include)+len(ps.Exclude))
	out = append(out, ps.Include...)
	for _, p := range ps.Exclude {
		out = append(out, "!"+p)
	}
	return out
}

// Empty reports whether the set has no includes.
func (ps PatternSet) Empty() bool {
	return len(ps.Include) == 0
}

// Validate returns a configuration error for the first malformed pattern.
func (ps PatternSet) Validate() error {
	for _, p := range append(append([]string{}, ps.Include...), ps.Exclude...) {
		if p == "" || !doublestar.ValidatePattern(p) {
			return errors.ErrInvalidGlob(p)
		}
		if strings.HasPrefix(p, "../") || p == ".." {
			return errors.ErrInvalidGlob(p).WithContext("reason", "pattern escapes the project root")
		}
	}
	return nil
}

// Match reports whether name is selected by the set. name may use the
// platform separator and a leading "./".
func (ps PatternSet) Match(name string) bool {
	name = normalize(name)

	included := false
	for _, p := range ps.Include {
		if ok, _ := doublestar.Match(p, name); ok {
			included = true
			break
		}
	}
	if !included {
		return false
	}

	return !ps.excluded(name)
}

func (ps PatternSet) excluded(name string) bool {
	for _, p := range ps.Exclude {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Expand lists the files under root selected by the set. Files are grouped
// by the include that first selected them, sorted within each group.
func (ps PatternSet) Expand(root string) ([]Match, error) {
	return ps.ExpandFS(os.DirFS(root))
}

// ExpandFS is Expand over an arbitrary file system.
func (ps PatternSet) ExpandFS(fsys fs.FS) ([]Match, error) {
	if err := ps.Validate(); err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var matches []Match

	for _, p := range ps.Include {
		found, err := doublestar.Glob(fsys, p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, errors.NewIOError(errors.ErrCodeReadFailed, "expanding pattern "+p, err)
		}
		sort.Strings(found)

		base := Base(p)
		for _, f := range found {
			if seen[f] || ps.excluded(f) {
				continue
			}
			seen[f] = true
			matches = append(matches, Match{Path: f, Base: base})
		}
	}

	return matches, nil
}

// Bases returns the distinct bases of the includes in declaration order.
// The watcher registers these directories.
func (ps PatternSet) Bases() []string {
	seen := make(map[string]bool)
	var bases []string
	for _, p := range ps.Include {
		b := Base(p)
		if !seen[b] {
			seen[b] = true
			bases = append(bases, b)
		}
	}
	return bases
}

// Base returns the leading directories of pattern that contain no glob
// metacharacters.
func Base(pattern string) string {
	segments := strings.Split(normalize(pattern), "/")
	var static []string
	for i, seg := range segments {
		if strings.ContainsAny(seg, "*?[{\\") {
			break
		}
		if i == len(segments)-1 {
			// the last segment names a file, not a directory
			break
		}
		static = append(static, seg)
	}
	if len(static) == 0 {
		return "."
	}
	return path.Join(static...)
}

func normalize(p string) string {
	p = filepath.ToSlash(strings.TrimSpace(p))
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	return p
}
