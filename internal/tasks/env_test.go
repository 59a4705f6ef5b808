package tasks

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conneroisu/estatico/internal/config"
	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/logging"
	"github.com/conneroisu/estatico/internal/process"
)

// fakeRunner records commands instead of running them. By default it
// echoes standard input.
type fakeRunner struct {
	mu    sync.Mutex
	calls []process.Command
	fn    func(cmd process.Command) ([]byte, error)
}

func (r *fakeRunner) Run(ctx context.Context, cmd process.Command) ([]byte, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	fn := r.fn
	r.mu.Unlock()

	if fn != nil {
		return fn(cmd)
	}
	return cmd.Stdin, nil
}

func (r *fakeRunner) Calls() []process.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]process.Command(nil), r.calls...)
}

func exitFailure(cmd process.Command) ([]byte, error) {
	return nil, errors.NewProcessError(errors.ErrCodeProcessFailed, cmd.Name+" exited with status 1", nil).
		WithContext("exit_code", 1)
}

func newTestEnv(t *testing.T) (*Env, *fakeRunner) {
	t.Helper()
	runner := &fakeRunner{}
	return NewEnv(t.TempDir(), config.Default(), runner, logging.Discard()), runner
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, contents := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(contents), 0644))
	}
}

func readFile(t *testing.T, root, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

func hasCode(err error, code string) bool {
	return errors.GetErrorContext(err)["code"] == code
}
