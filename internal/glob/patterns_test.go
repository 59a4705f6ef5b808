package glob

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/estatico/internal/errors"
)

func TestNewSplitsExcludes(t *testing.T) {
	ps := New("./source/assets/js/*.js", "source/modules/**/*.js", "!./source/assets/vendor/*.js")

	assert.Equal(t, []string{"source/assets/js/*.js", "source/modules/**/*.js"}, ps.Include)
	assert.Equal(t, []string{"source/assets/vendor/*.js"}, ps.Exclude)
	assert.Equal(t, []string{
		"source/assets/js/*.js",
		"source/modules/**/*.js",
		"!source/assets/vendor/*.js",
	}, ps.Patterns())
}

func TestMatchNegationWins(t *testing.T) {
	ps := New("source/**/*.js", "!source/assets/vendor/*.js")

	testCases := []struct {
		path     string
		expected bool
	}{
		{"source/assets/js/main.js", true},
		{"./source/modules/slideshow/slideshow.js", true},
		{"source/assets/vendor/jquery.js", false},
		{"source/assets/css/main.scss", false},
		{filepath.Join("source", "assets", "js", "head.js"), true},
	}

	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.expected, ps.Match(tc.path))
		})
	}
}

func TestBase(t *testing.T) {
	testCases := []struct {
		pattern  string
		expected string
	}{
		{"source/assets/css/*.scss", "source/assets/css"},
		{"./source/modules/**/*.js", "source/modules"},
		{"source/*.html", "source"},
		{"*.html", "."},
		{"source/assets/js/head.js", "source/assets/js"},
		{"source/{a,b}/x.js", "source"},
	}

	for _, tc := range testCases {
		t.Run(tc.pattern, func(t *testing.T) {
			assert.Equal(t, tc.expected, Base(tc.pattern))
		})
	}
}

func TestExpandFS(t *testing.T) {
	fsys := fstest.MapFS{
		"source/assets/js/main.js":               {Data: []byte("main")},
		"source/assets/js/head.js":               {Data: []byte("head")},
		"source/assets/vendor/jquery.js":         {Data: []byte("vendor")},
		"source/modules/slideshow/slideshow.js":  {Data: []byte("mod")},
		"source/modules/slideshow/slideshow.css": {Data: []byte("css")},
	}

	ps := New("source/assets/js/*.js", "source/modules/**/*.js", "source/assets/**/*.js", "!source/assets/vendor/*.js")
	matches, err := ps.ExpandFS(fsys)
	require.NoError(t, err)

	var paths []string
	for _, m := range matches {
		paths = append(paths, m.Path)
	}
	assert.Equal(t, []string{
		"source/assets/js/head.js",
		"source/assets/js/main.js",
		"source/modules/slideshow/slideshow.js",
	}, paths)

	assert.Equal(t, "head.js", matches[0].Rel())
	assert.Equal(t, "slideshow/slideshow.js", matches[2].Rel())
}

func TestExpandOnDisk(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "source", "pages"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "source", "index.html"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "source", "pages", "about.html"), []byte("x"), 0644))

	matches, err := New("source/*.html", "source/pages/*.html").Expand(root)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "index.html", matches[0].Rel())
	assert.Equal(t, "about.html", matches[1].Rel())

	missing, err := New("nowhere/**/*.html").Expand(root)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, New("source/**/*.scss", "!source/tmp/*").Validate())

	err := New("source/[abc.scss").Validate()
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))

	assert.Error(t, New("../outside/*.js").Validate())
}

func TestBases(t *testing.T) {
	ps := New("source/assets/css/*.scss", "source/assets/css/partials/*.scss", "source/modules/**/*.scss", "source/assets/css/x/*.scss")
	assert.Equal(t, []string{
		"source/assets/css",
		"source/assets/css/partials",
		"source/modules",
		"source/assets/css/x",
	}, ps.Bases())
}
