// Package registry holds the named build tasks of a project and runs them
// in dependency order.
//
// A Registry is constructed once at startup and passed to whatever needs to
// run tasks; there is no package-level state. Run resolves the transitive
// dependencies of a task into a topological order (dependencies are visited
// in the order they were declared) and executes each action exactly once
// before the requested task's own action. A dependency cycle or a reference
// to an unregistered task is reported as a configuration error before any
// action runs.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/logging"
)

// Action is the work of a task. It returns when the work is complete.
type Action func(ctx context.Context) error

// Task is a named unit of build work.
type Task struct {
	Name        string
	Deps        []string
	Action      Action
	Description string
	// Reload marks tasks whose success should refresh connected browsers.
	Reload bool
}

// Result is the outcome of one task action.
type Result struct {
	Task     string
	RunID    string
	Err      error
	Duration time.Duration
	Reload   bool
}

// OK reports whether the task succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// CompletionHook observes every executed task action.
type CompletionHook func(Result)

// Registry manages the registered tasks.
type Registry struct {
	tasks  map[string]*Task
	order  []string
	hooks  []CompletionHook
	logger logging.Logger
	mutex  sync.RWMutex
}

// New creates an empty registry.
func New(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Registry{
		tasks:  make(map[string]*Task),
		logger: logger.WithComponent("registry"),
	}
}

// Register adds a task. Names must be unique and non-empty; dependencies
// are checked when the task is planned, so tasks may be registered in any
// order.
func (r *Registry) Register(task Task) error {
	if task.Name == "" {
		return errors.NewConfigError(errors.ErrCodeConfigInvalid, "task name is required")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.tasks[task.Name]; exists {
		return errors.NewConfigError(errors.ErrCodeDuplicateTask, "duplicate task: "+task.Name)
	}

	t := task
	t.Deps = append([]string(nil), task.Deps...)
	r.tasks[t.Name] = &t
	r.order = append(r.order, t.Name)

	return nil
}

// Get returns a registered task by name.
func (r *Registry) Get(name string) (Task, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	t, ok := r.tasks[name]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Tasks returns all tasks in declaration order.
func (r *Registry) Tasks() []Task {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make([]Task, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, *r.tasks[name])
	}
	return result
}

// OnComplete registers a hook called after every executed task action,
// from the goroutine that ran it.
func (r *Registry) OnComplete(hook CompletionHook) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.hooks = append(r.hooks, hook)
}

// Validate checks the whole graph: every dependency is registered and no
// cycle exists.
func (r *Registry) Validate() error {
	r.mutex.RLock()
	names := append([]string(nil), r.order...)
	r.mutex.RUnlock()

	_, err := r.Plan(names...)
	return err
}

// Run executes name after all of its transitive dependencies. It returns
// the first failing action's error; later tasks in the plan are not run.
func (r *Registry) Run(ctx context.Context, name string) error {
	return r.run(ctx, name, uuid.NewString())
}

func (r *Registry) run(ctx context.Context, name, runID string) error {
	plan, err := r.Plan(name)
	if err != nil {
		return err
	}

	logger := r.logger.With("run_id", runID, "target", name)
	logger.Debug(ctx, "Resolved execution order", "plan", plan)

	for _, taskName := range plan {
		if err := ctx.Err(); err != nil {
			return err
		}

		task, _ := r.Get(taskName)
		if err := r.execute(ctx, logger, runID, task); err != nil {
			return err
		}
	}

	return nil
}

// Start runs name in the background. The returned channel receives exactly
// one Result, for the requested task, and is then closed.
func (r *Registry) Start(ctx context.Context, name string) <-chan Result {
	done := make(chan Result, 1)

	go func() {
		defer close(done)
		start := time.Now()
		runID := uuid.NewString()
		err := r.run(ctx, name, runID)
		task, _ := r.Get(name)
		done <- Result{
			Task:     name,
			RunID:    runID,
			Err:      err,
			Duration: time.Since(start),
			Reload:   task.Reload,
		}
	}()

	return done
}

// RunParallel runs several tasks together, each with its own dependency
// plan. There is no defined relative order between them. It waits for all
// of them and returns their combined errors.
func (r *Registry) RunParallel(ctx context.Context, names ...string) error {
	// Plan everything first so a configuration error starts nothing.
	if _, err := r.Plan(names...); err != nil {
		return err
	}

	p := pool.New().WithErrors().WithContext(ctx)
	for _, name := range names {
		name := name
		p.Go(func(ctx context.Context) error {
			return r.Run(ctx, name)
		})
	}

	return p.Wait()
}

func (r *Registry) execute(ctx context.Context, logger logging.Logger, runID string, task Task) error {
	op := logging.StartOperation(logger.With("task", task.Name), "task")

	var err error
	if task.Action != nil {
		err = errors.AttachTask(task.Action(ctx), task.Name)
	}

	var duration time.Duration
	if err != nil {
		duration = op.EndWithError(ctx, err)
	} else {
		duration = op.End(ctx)
	}

	r.notify(Result{
		Task:     task.Name,
		RunID:    runID,
		Err:      err,
		Duration: duration,
		Reload:   task.Reload,
	})

	return err
}

func (r *Registry) notify(result Result) {
	r.mutex.RLock()
	hooks := append([]CompletionHook(nil), r.hooks...)
	r.mutex.RUnlock()

	for _, hook := range hooks {
		hook(result)
	}
}
