package cmd

import (
	"context"
	"io"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/conneroisu/estatico/internal/config"
	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/logging"
	"github.com/conneroisu/estatico/internal/registry"
	"github.com/conneroisu/estatico/internal/server"
	"github.com/conneroisu/estatico/internal/tasks"
	"github.com/conneroisu/estatico/internal/watcher"
)

// app is one wired-up project: configuration, tasks, watcher and server.
type app struct {
	root     string
	cfg      *config.Config
	logger   logging.Logger
	registry *registry.Registry
	loop     *watcher.Loop
	server   *server.Server
	failures *errors.ErrorCollector
	closers  []io.Closer
}

func newApp(v *viper.Viper, dir string, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(v)
	if err != nil {
		return nil, err
	}

	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeInvalidPath, "invalid project directory", dir)
	}

	a := &app{root: root, cfg: cfg, failures: errors.NewErrorCollector()}
	if a.logger, err = a.newLogger(stderr); err != nil {
		return nil, err
	}

	a.registry = registry.New(a.logger)
	a.registry.OnComplete(func(result registry.Result) {
		a.failures.Record(result.Task, result.Err)
	})

	a.loop, err = watcher.NewLoop(root, cfg.Watch, a.registry, a.logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.server = server.New(root, cfg.Server, a.registry, a.logger)

	env := tasks.NewEnv(root, cfg, nil, a.logger)
	if err := tasks.Register(a.registry, env, tasks.Services{
		Watch: a.loop.Start,
		Serve: a.server.Run,
	}); err != nil {
		a.close()
		return nil, err
	}

	return a, nil
}

// newLogger logs to stderr and, when log.dir is set, to a dated file too.
func (a *app) newLogger(stderr io.Writer) (logging.Logger, error) {
	level, err := logging.ParseLevel(a.cfg.Log.Level)
	if err != nil {
		return nil, errors.WrapConfig(err, errors.ErrCodeConfigInvalid, "invalid log level")
	}

	logCfg := &logging.LoggerConfig{
		Level:  level,
		Format: a.cfg.Log.Format,
		Output: stderr,
	}
	console := logging.NewLogger(logCfg)
	if a.cfg.Log.Dir == "" {
		return console, nil
	}

	dir := a.cfg.Log.Dir
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(a.root, dir)
	}
	fileLogger, err := logging.NewFileLogger(logCfg, dir)
	if err != nil {
		return nil, errors.WrapIO(err, errors.ErrCodeWriteFailed, "cannot open log file", dir)
	}
	a.closers = append(a.closers, fileLogger)
	return logging.NewMultiLogger(console, fileLogger), nil
}

// run executes names, several of them concurrently. Runs that include the
// watch task keep going until ctx is done. An interrupted run cleans the
// output and succeeds.
func (a *app) run(ctx context.Context, names []string) error {
	var err error
	if len(names) == 1 {
		err = a.registry.Run(ctx, names[0])
	} else {
		err = a.registry.RunParallel(ctx, names...)
	}

	if err == nil && ctx.Err() == nil && a.watching(names) {
		<-ctx.Done()
	}

	if ctx.Err() != nil {
		return a.shutdown()
	}
	return err
}

func (a *app) watching(names []string) bool {
	for _, name := range names {
		if name == config.TaskWatch || name == config.TaskDefault {
			return true
		}
	}
	return false
}

// shutdown waits for triggered tasks, reports the ones still failing and
// removes the generated output.
func (a *app) shutdown() error {
	ctx := context.Background()
	a.loop.Wait()

	for _, failure := range a.failures.Failures() {
		a.logger.Warn(ctx, failure.Err, "Task still failing", "task", failure.Task)
	}

	a.logger.Info(ctx, "Interrupted, cleaning output")
	if err := a.registry.Run(ctx, config.TaskClean); err != nil {
		a.logger.Error(ctx, err, "Cleanup failed")
	}
	return nil
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
}
