package errors

import (
	"sort"
	"sync"
	"time"
)

// TaskFailure is the last failure recorded for a task.
type TaskFailure struct {
	Task      string
	Err       error
	Timestamp time.Time
}

// ErrorCollector keeps the most recent failure of every task. A successful
// run clears the task's entry.
type ErrorCollector struct {
	failures map[string]TaskFailure
	mutex    sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		failures: make(map[string]TaskFailure),
	}
}

// Record stores err as the latest outcome of task; a nil err clears it.
func (ec *ErrorCollector) Record(task string, err error) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()

	if err == nil {
		delete(ec.failures, task)
		return
	}

	ec.failures[task] = TaskFailure{
		Task:      task,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Get returns the recorded failure for task, if any.
func (ec *ErrorCollector) Get(task string) (TaskFailure, bool) {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	f, ok := ec.failures[task]
	return f, ok
}

// Failures returns all recorded failures ordered by task name.
func (ec *ErrorCollector) Failures() []TaskFailure {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	result := make([]TaskFailure, 0, len(ec.failures))
	for _, f := range ec.failures {
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Task < result[j].Task
	})

	return result
}

// HasErrors returns true if any task's last run failed.
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.failures) > 0
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.failures = make(map[string]TaskFailure)
}
