// Package tasks implements the build tasks of an estatico project and
// registers them, together with the composite tasks that chain them, on a
// registry.
//
// Every task reads its own section of the configuration and works relative
// to the project root. Tasks that delegate to external programs (sass, the
// linter, the lodash and modernizr builders) do so through a process.Runner
// so the programs can be replaced in tests.
package tasks

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/conneroisu/estatico/internal/config"
	"github.com/conneroisu/estatico/internal/logging"
	"github.com/conneroisu/estatico/internal/process"
)

// Env is what every task needs to run.
type Env struct {
	Root   string
	Config *config.Config
	Runner process.Runner
	Logger logging.Logger

	// hashes of files that passed the last lint
	lintCache map[string]string
	lintMu    sync.Mutex
}

// NewEnv creates a task environment rooted at root.
func NewEnv(root string, cfg *config.Config, runner process.Runner, logger logging.Logger) *Env {
	if logger == nil {
		logger = logging.Discard()
	}
	if runner == nil {
		runner = process.NewExecRunner(logger)
	}
	return &Env{
		Root:      root,
		Config:    cfg,
		Runner:    runner,
		Logger:    logger.WithComponent("tasks"),
		lintCache: make(map[string]string),
	}
}

// path resolves a project-relative path.
func (e *Env) path(rel string) string {
	return filepath.Join(e.Root, filepath.FromSlash(rel))
}

// readOptional returns the contents of a project file, or ok=false when it
// does not exist.
func (e *Env) readOptional(rel string) (data []byte, ok bool, err error) {
	data, err = os.ReadFile(e.path(rel))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}
