package tasks

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/pipeline"
	"github.com/conneroisu/estatico/internal/process"
)

func TestLodashArguments(t *testing.T) {
	env, runner := newTestEnv(t)
	env.Config.Lodash.Include = []string{"debounce", "throttle"}

	require.NoError(t, env.Lodash(context.Background()))

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "node_modules/.bin/lodash", calls[0].Name)
	assert.Equal(t, []string{"include=debounce,throttle", "-o", "source/assets/.tmp/lodash.js", "-d"}, calls[0].Args)
	assert.DirExists(t, filepath.Join(env.Root, "source/assets/.tmp"))
}

func TestLodashFailureIsProcessError(t *testing.T) {
	env, runner := newTestEnv(t)
	runner.fn = exitFailure

	err := env.Lodash(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsProcessError(err))
}

func TestCrawlModernizr(t *testing.T) {
	files := []*pipeline.File{
		pipeline.NewFile("source/assets/js/main.js", "source", []byte("if (Modernizr.touchevents && Modernizr.flexbox) {} Modernizr.on('x'); Modernizr.foo;")),
		pipeline.NewFile("source/assets/css/main.scss", "source", []byte(".no-svg .logo {} html.csstransforms a {} .no-flexbox b {}")),
	}

	detects, unknown := crawlModernizr(files)
	assert.Equal(t, []string{"css/flexbox", "css/transforms", "svg", "touchevents"}, detects)
	assert.Equal(t, []string{"foo"}, unknown)
}

func TestModernizrWritesConfigAndRunsBuilder(t *testing.T) {
	env, runner := newTestEnv(t)
	writeFiles(t, env.Root, map[string]string{
		"source/assets/js/main.js": "if (Modernizr.svg) {}",
	})

	var config modernizrConfig
	runner.fn = func(cmd process.Command) ([]byte, error) {
		raw, err := os.ReadFile(filepath.Join(cmd.Dir, cmd.Args[1]))
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &config))
		return nil, nil
	}

	require.NoError(t, env.Modernizr(context.Background()))

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"-c", "source/assets/.tmp/modernizr-config.json", "-d", "source/assets/.tmp/modernizr.js"}, calls[0].Args)
	assert.Equal(t, []string{"svg"}, config.FeatureDetects)
	assert.Equal(t, []string{"setClasses"}, config.Options)
	assert.False(t, config.Minify)

	assert.NoFileExists(t, filepath.Join(env.Root, "source/assets/.tmp/modernizr-config.json"))
}

func TestModernizrProductionMinifiesOutput(t *testing.T) {
	env, runner := newTestEnv(t)
	env.Config.Production = true
	runner.fn = func(cmd process.Command) ([]byte, error) {
		dest := filepath.Join(cmd.Dir, cmd.Args[3])
		return nil, os.WriteFile(dest, []byte("function  test ( a ) {\n  return a;\n}\n"), 0644)
	}

	require.NoError(t, env.Modernizr(context.Background()))
	assert.NotContains(t, readFile(t, env.Root, "source/assets/.tmp/modernizr.js"), "\n  ")
}
