package process

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/estatico/internal/errors"
)

func TestFromArgs(t *testing.T) {
	cmd, err := FromArgs([]string{"sass", "--stdin", "--style={style}"})
	require.NoError(t, err)
	assert.Equal(t, "sass", cmd.Name)
	assert.Equal(t, []string{"--stdin", "--style={style}"}, cmd.Args)

	_, err = FromArgs(nil)
	assert.True(t, errors.IsConfigError(err))
}

func TestExpand(t *testing.T) {
	cmd := Command{Name: "lodash", Args: []string{"include=debounce", "-o", "{dest}", "{unknown}"}}
	expanded := cmd.Expand(map[string]string{"dest": "source/assets/.tmp/lodash.js"})

	assert.Equal(t, []string{"include=debounce", "-o", "source/assets/.tmp/lodash.js", "{unknown}"}, expanded.Args)
	assert.Equal(t, "{dest}", cmd.Args[2], "original command is not modified")
	assert.Equal(t, "lodash include=debounce -o {dest} {unknown}", cmd.String())
}

func TestExecRunnerMissingProgram(t *testing.T) {
	runner := NewExecRunner(nil)
	_, err := runner.Run(context.Background(), Command{Name: "estatico-no-such-program"})

	require.Error(t, err)
	assert.True(t, errors.IsProcessError(err))
	assert.True(t, hasCode(err, errors.ErrCodeProcessMissing))
}

func TestExecRunnerRejectsShellMetacharacters(t *testing.T) {
	runner := NewExecRunner(nil)

	_, err := runner.Run(context.Background(), Command{Name: "echo;rm", Args: []string{"build"}})
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
	assert.True(t, hasCode(err, errors.ErrCodeInvalidArgument))

	_, err = runner.Run(context.Background(), Command{Name: "echo", Args: []string{"a\x00b"}})
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
	assert.False(t, errors.IsProcessError(err))
}

func TestExecRunnerPassesFileNamesUnchanged(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires echo")
	}
	runner := NewExecRunner(nil)
	out, err := runner.Run(context.Background(), Command{
		Name: "echo",
		Args: []string{"source/modules/foo(1)/it's.js"},
	})

	require.NoError(t, err)
	assert.Equal(t, "source/modules/foo(1)/it's.js\n", string(out))
}

func TestExecRunnerResolvesProjectLocalProgram(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	root := t.TempDir()
	bin := filepath.Join(root, "node_modules", ".bin")
	require.NoError(t, os.MkdirAll(bin, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bin, "lodash"), []byte("#!/bin/sh\necho \"local $1\"\n"), 0o755))

	runner := NewExecRunner(nil)
	out, err := runner.Run(context.Background(), Command{
		Name: "node_modules/.bin/lodash",
		Args: []string{"include=debounce"},
		Dir:  root,
	})

	require.NoError(t, err)
	assert.Equal(t, "local include=debounce\n", string(out))
}

func TestExecRunnerPipesStdin(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires cat")
	}
	runner := NewExecRunner(nil)
	out, err := runner.Run(context.Background(), Command{Name: "cat", Stdin: []byte("body { color: red }")})

	require.NoError(t, err)
	assert.Equal(t, "body { color: red }", string(out))
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires false")
	}
	runner := NewExecRunner(nil)
	_, err := runner.Run(context.Background(), Command{Name: "false"})

	require.Error(t, err)
	assert.True(t, errors.IsProcessError(err))
	assert.Equal(t, 1, errors.GetErrorContext(err)["exit_code"])
}

func hasCode(err error, code string) bool {
	ctx := errors.GetErrorContext(err)
	return ctx["code"] == code
}
