package registry

import (
	"sort"
	"sync"
	"time"
)

// TaskStats summarises the executions of one task.
type TaskStats struct {
	Task         string
	Runs         int64
	Failures     int64
	LastDuration time.Duration
	AverageTime  time.Duration
	LastRun      time.Time
	LastError    string
}

// OK reports whether the most recent run succeeded.
func (s TaskStats) OK() bool {
	return s.LastError == ""
}

// Metrics tracks task executions. Attach it with reg.OnComplete(m.Record).
type Metrics struct {
	tasks         map[string]*TaskStats
	totalDuration map[string]time.Duration
	mutex         sync.RWMutex
}

// NewMetrics creates an empty tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		tasks:         make(map[string]*TaskStats),
		totalDuration: make(map[string]time.Duration),
	}
}

// Record adds one task result.
func (m *Metrics) Record(result Result) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	stats, ok := m.tasks[result.Task]
	if !ok {
		stats = &TaskStats{Task: result.Task}
		m.tasks[result.Task] = stats
	}

	stats.Runs++
	stats.LastDuration = result.Duration
	stats.LastRun = time.Now()
	m.totalDuration[result.Task] += result.Duration
	stats.AverageTime = m.totalDuration[result.Task] / time.Duration(stats.Runs)

	if result.Err != nil {
		stats.Failures++
		stats.LastError = result.Err.Error()
	} else {
		stats.LastError = ""
	}
}

// Snapshot returns the stats of every task that ran, by task name.
func (m *Metrics) Snapshot() []TaskStats {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make([]TaskStats, 0, len(m.tasks))
	for _, s := range m.tasks {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Task < out[j].Task })
	return out
}

// Get returns the stats of one task.
func (m *Metrics) Get(task string) (TaskStats, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	s, ok := m.tasks[task]
	if !ok {
		return TaskStats{}, false
	}
	return *s, true
}

// SuccessRate returns the share of successful runs across all tasks as a
// percentage.
func (m *Metrics) SuccessRate() float64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var runs, failures int64
	for _, s := range m.tasks {
		runs += s.Runs
		failures += s.Failures
	}
	if runs == 0 {
		return 0.0
	}
	return float64(runs-failures) / float64(runs) * 100.0
}

// Reset forgets everything recorded.
func (m *Metrics) Reset() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.tasks = make(map[string]*TaskStats)
	m.totalDuration = make(map[string]time.Duration)
}
