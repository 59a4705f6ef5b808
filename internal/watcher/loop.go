package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/conneroisu/estatico/internal/config"
	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/glob"
	"github.com/conneroisu/estatico/internal/logging"
	"github.com/conneroisu/estatico/internal/registry"
)

// State is the state of the change-watch loop.
type State int

const (
	// StateIdle: not watching.
	StateIdle State = iota
	// StateWatching: subscriptions are registered and no task is running.
	StateWatching
	// StateTriggered: at least one triggered task is running.
	StateTriggered
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWatching:
		return "watching"
	case StateTriggered:
		return "triggered"
	default:
		return "unknown"
	}
}

// TaskStarter starts a task without waiting for it. *registry.Registry
// implements it.
type TaskStarter interface {
	Start(ctx context.Context, name string) <-chan registry.Result
}

// Subscription binds a pattern set to the task it triggers.
type Subscription struct {
	Task     string
	Patterns glob.PatternSet
}

// Loop runs the subscribed task whenever a matching file changes. A failed
// task is reported and never ends the loop; overlapping triggers may run
// the same task concurrently.
type Loop struct {
	root     string
	subs     []Subscription
	tasks    TaskStarter
	handler  *errors.ErrorHandler
	logger   logging.Logger
	debounce time.Duration
	ignore   []string

	mutex    sync.Mutex
	state    State
	inflight int
	watcher  *FileWatcher
	running  sync.WaitGroup
}

// NewLoop creates a loop for the project at root.
func NewLoop(root string, cfg config.WatchConfig, tasks TaskStarter, logger logging.Logger) (*Loop, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithComponent("watch")

	subs := make([]Subscription, 0, len(cfg.Subscriptions))
	for _, s := range cfg.Subscriptions {
		ps := glob.New(s.Patterns...)
		if err := ps.Validate(); err != nil {
			return nil, errors.AttachTask(err, s.Task)
		}
		subs = append(subs, Subscription{Task: s.Task, Patterns: ps})
	}

	return &Loop{
		root:     root,
		subs:     subs,
		tasks:    tasks,
		handler:  errors.NewErrorHandler(logger),
		logger:   logger,
		debounce: cfg.Debounce,
		ignore:   cfg.Ignore,
	}, nil
}

// State returns the current state.
func (l *Loop) State() State {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.state
}

// Start registers the subscriptions with a file watcher and returns once
// watching. The loop stops, returning to Idle, when ctx is done.
func (l *Loop) Start(ctx context.Context) error {
	l.mutex.Lock()
	if l.state != StateIdle {
		l.mutex.Unlock()
		return errors.NewInternalError(errors.ErrCodeInternalError, "watch loop already started", nil)
	}
	l.mutex.Unlock()

	fw, err := NewFileWatcher(l.root, l.debounce, l.logger)
	if err != nil {
		return errors.NewIOError(errors.ErrCodeReadFailed, "cannot create file watcher", err)
	}
	fw.AddFilter(IgnoreFilter(l.ignore))
	fw.AddFilter(NoTempFilter)

	dirs := l.watchedDirs()
	for _, dir := range dirs {
		if err := fw.AddRecursive(dir); err != nil {
			_ = fw.Stop()
			return errors.WrapIO(err, errors.ErrCodeReadFailed, "cannot watch directory", dir)
		}
	}

	fw.AddHandler(func(events []ChangeEvent) error {
		l.Dispatch(ctx, events)
		return nil
	})
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return err
	}

	l.mutex.Lock()
	l.watcher = fw
	l.state = StateWatching
	l.mutex.Unlock()

	l.logger.Info(ctx, "Watching for changes", "directories", dirs, "subscriptions", len(l.subs))

	go func() {
		<-ctx.Done()
		_ = fw.Stop()
		l.mutex.Lock()
		l.state = StateIdle
		l.watcher = nil
		l.mutex.Unlock()
	}()

	return nil
}

// watchedDirs returns the existing base directories of all subscriptions,
// without directories nested in another one.
func (l *Loop) watchedDirs() []string {
	var bases []string
	for _, s := range l.subs {
		for _, b := range s.Patterns.Bases() {
			if info, err := os.Stat(filepath.Join(l.root, filepath.FromSlash(b))); err == nil && info.IsDir() {
				bases = append(bases, b)
			}
		}
	}

	var dirs []string
	for _, b := range bases {
		covered := false
		for _, other := range bases {
			if other != b && (other == "." || len(b) > len(other) && b[:len(other)+1] == other+"/") {
				covered = true
				break
			}
		}
		if covered || contains(dirs, b) {
			continue
		}
		dirs = append(dirs, b)
	}
	return dirs
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Match returns the tasks subscribed to path, in subscription order and
// each once.
func (l *Loop) Match(path string) []string {
	var tasks []string
	for _, s := range l.subs {
		if s.Patterns.Match(path) && !contains(tasks, s.Task) {
			tasks = append(tasks, s.Task)
		}
	}
	return tasks
}

// Dispatch triggers every task subscribed to any of the changed paths,
// once per batch.
func (l *Loop) Dispatch(ctx context.Context, events []ChangeEvent) {
	var tasks []string
	for _, ev := range events {
		for _, task := range l.Match(ev.Path) {
			if !contains(tasks, task) {
				tasks = append(tasks, task)
				l.logger.Info(ctx, "Change detected", "path", ev.Path, "event", ev.Type.String(), "task", task)
			}
		}
	}

	for _, task := range tasks {
		l.trigger(ctx, task)
	}
}

func (l *Loop) trigger(ctx context.Context, task string) {
	l.mutex.Lock()
	l.inflight++
	if l.state != StateIdle {
		l.state = StateTriggered
	}
	l.mutex.Unlock()

	l.running.Add(1)
	done := l.tasks.Start(ctx, task)

	go func() {
		defer l.running.Done()

		result, ok := <-done
		if ok && result.Err != nil {
			l.handler.Handle(ctx, result.Err)
		} else if ok {
			l.logger.Debug(ctx, "Triggered task finished", "task", task, "duration_ms", result.Duration.Milliseconds())
		}

		l.mutex.Lock()
		l.inflight--
		if l.inflight == 0 && l.state == StateTriggered {
			l.state = StateWatching
		}
		l.mutex.Unlock()
	}()
}

// Wait blocks until every triggered task has finished.
func (l *Loop) Wait() {
	l.running.Wait()
}
