package registry

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/estatico/internal/logging"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics()
	assert.Zero(t, m.SuccessRate())

	m.Record(Result{Task: "js", Duration: 10 * time.Millisecond})
	m.Record(Result{Task: "js", Duration: 30 * time.Millisecond, Err: stderrors.New("lint failed")})
	m.Record(Result{Task: "css", Duration: time.Millisecond})

	js, ok := m.Get("js")
	require.True(t, ok)
	assert.Equal(t, int64(2), js.Runs)
	assert.Equal(t, int64(1), js.Failures)
	assert.Equal(t, 30*time.Millisecond, js.LastDuration)
	assert.Equal(t, 20*time.Millisecond, js.AverageTime)
	assert.Equal(t, "lint failed", js.LastError)
	assert.False(t, js.OK())

	m.Record(Result{Task: "js"})
	js, _ = m.Get("js")
	assert.True(t, js.OK())

	snapshot := m.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "css", snapshot[0].Task)
	assert.InDelta(t, 75.0, m.SuccessRate(), 0.001)

	m.Reset()
	assert.Empty(t, m.Snapshot())
}

func TestMetricsAsCompletionHook(t *testing.T) {
	reg := New(logging.Discard())
	require.NoError(t, reg.Register(Task{Name: "media", Action: func(ctx context.Context) error { return nil }}))
	require.NoError(t, reg.Register(Task{Name: "build", Deps: []string{"media"}}))

	m := NewMetrics()
	reg.OnComplete(m.Record)
	require.NoError(t, reg.Run(context.Background(), "build"))

	_, ok := m.Get("media")
	assert.True(t, ok)
	_, ok = m.Get("build")
	assert.True(t, ok)
}
