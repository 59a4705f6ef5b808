package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/estatico/internal/config"
	"github.com/conneroisu/estatico/internal/errors"
	"github.com/conneroisu/estatico/internal/logging"
	"github.com/conneroisu/estatico/internal/registry"
)

// fakeTasks completes a started task when release is called.
type fakeTasks struct {
	mu      sync.Mutex
	started []string
	fail    map[string]bool
	pending []chan registry.Result
	hold    bool
}

func (f *fakeTasks) Start(ctx context.Context, name string) <-chan registry.Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.started = append(f.started, name)
	ch := make(chan registry.Result, 1)

	var err error
	if f.fail[name] {
		err = errors.NewTransformError(errors.ErrCodeLintFailed, "lint failed", nil).WithTask(name)
	}
	result := registry.Result{Task: name, Err: err}

	if f.hold {
		f.pending = append(f.pending, ch)
		return ch
	}
	ch <- result
	close(ch)
	return ch
}

func (f *fakeTasks) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hold = false
	for _, ch := range f.pending {
		ch <- registry.Result{}
		close(ch)
	}
	f.pending = nil
}

func (f *fakeTasks) Started() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.started...)
}

func newTestLoop(t *testing.T, root string, tasks TaskStarter) *Loop {
	t.Helper()
	loop, err := NewLoop(root, config.WatchConfig{
		Debounce:      50 * time.Millisecond,
		Ignore:        []string{"**/node_modules/**"},
		Subscriptions: config.DefaultSubscriptions(),
	}, tasks, logging.Discard())
	require.NoError(t, err)
	return loop
}

func TestLoopMatch(t *testing.T) {
	loop := newTestLoop(t, t.TempDir(), &fakeTasks{})

	assert.Equal(t, []string{config.TaskHTML}, loop.Match("source/index.html"))
	assert.Equal(t, []string{config.TaskHTML}, loop.Match("source/data/index.json"))
	assert.Equal(t, []string{config.TaskCSS}, loop.Match("source/modules/teaser/teaser.scss"))
	assert.Equal(t, []string{config.TaskCSS}, loop.Match("source/assets/.tmp/icons.scss"))
	assert.Equal(t, []string{config.TaskJS}, loop.Match("source/assets/js/main.js"))
	assert.Equal(t, []string{config.TaskPNGSprite}, loop.Match("source/modules/nav/pngsprite/arrow.png"))
	assert.Equal(t, []string{config.TaskIconfont}, loop.Match("source/assets/media/iconfont/search.svg"))
	assert.Empty(t, loop.Match("README.md"))
}

func TestLoopNegationWins(t *testing.T) {
	loop, err := NewLoop(t.TempDir(), config.WatchConfig{
		Subscriptions: []config.Subscription{
			{Task: "js", Patterns: []string{"source/**/*.js", "!source/assets/vendor/**"}},
		},
	}, &fakeTasks{}, logging.Discard())
	require.NoError(t, err)

	assert.Equal(t, []string{"js"}, loop.Match("source/assets/js/main.js"))
	assert.Empty(t, loop.Match("source/assets/vendor/jquery.js"))
}

func TestNewLoopRejectsInvalidPatterns(t *testing.T) {
	_, err := NewLoop(t.TempDir(), config.WatchConfig{
		Subscriptions: []config.Subscription{{Task: "css", Patterns: []string{"source/[.scss"}}},
	}, &fakeTasks{}, logging.Discard())
	require.Error(t, err)
	assert.True(t, errors.IsConfigError(err))
}

func TestDispatchTriggersEachTaskOncePerBatch(t *testing.T) {
	tasks := &fakeTasks{}
	loop := newTestLoop(t, t.TempDir(), tasks)

	loop.Dispatch(context.Background(), []ChangeEvent{
		{Path: "source/index.html"},
		{Path: "source/pages/about.html"},
		{Path: "source/assets/css/main.scss"},
		{Path: "notes.txt"},
	})
	loop.Wait()

	assert.Equal(t, []string{config.TaskHTML, config.TaskCSS}, tasks.Started())
}

func TestFailedTaskKeepsTriggering(t *testing.T) {
	tasks := &fakeTasks{fail: map[string]bool{config.TaskJS: true}}
	loop := newTestLoop(t, t.TempDir(), tasks)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		loop.Dispatch(ctx, []ChangeEvent{{Path: "source/assets/js/main.js"}})
		loop.Wait()
	}
	loop.Dispatch(ctx, []ChangeEvent{{Path: "source/index.html"}})
	loop.Wait()

	assert.Equal(t, []string{config.TaskJS, config.TaskJS, config.TaskJS, config.TaskHTML}, tasks.Started())
}

func TestLoopStateMachine(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "source", "assets", "css"), 0755))

	tasks := &fakeTasks{hold: true}
	loop := newTestLoop(t, root, tasks)
	assert.Equal(t, StateIdle, loop.State())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, loop.Start(ctx))
	assert.Equal(t, StateWatching, loop.State())
	assert.Error(t, loop.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(root, "source", "assets", "css", "main.scss"), []byte("a{}"), 0644))

	assert.Eventually(t, func() bool { return loop.State() == StateTriggered }, 2*time.Second, 10*time.Millisecond)
	started := tasks.Started()
	require.NotEmpty(t, started)
	for _, name := range started {
		assert.Equal(t, config.TaskCSS, name)
	}

	tasks.release()
	loop.Wait()
	assert.Equal(t, StateWatching, loop.State())

	cancel()
	assert.Eventually(t, func() bool { return loop.State() == StateIdle }, time.Second, 10*time.Millisecond)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "watching", StateWatching.String())
	assert.Equal(t, "triggered", StateTriggered.String())
}
