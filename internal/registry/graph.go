package registry

import (
	"github.com/conneroisu/estatico/internal/errors"
)

type visitState int

const (
	unvisited visitState = iota
	visiting
	visited
)

// Plan returns the execution order for names: every transitive dependency
// exactly once and before its dependents. Dependencies are visited in
// declaration order, which decides between otherwise unordered tasks.
func (r *Registry) Plan(names ...string) ([]string, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	state := make(map[string]visitState, len(r.tasks))
	order := make([]string, 0, len(r.tasks))
	path := make([]string, 0)

	for _, name := range names {
		if _, ok := r.tasks[name]; !ok {
			return nil, errors.ErrUnknownTask(name, "")
		}
		if state[name] == visited {
			continue
		}
		var err error
		order, path, err = r.visit(name, state, order, path)
		if err != nil {
			return nil, err
		}
	}

	return order, nil
}

// visit performs the post-order DFS behind Plan.
func (r *Registry) visit(name string, state map[string]visitState, order, path []string) ([]string, []string, error) {
	state[name] = visiting
	path = append(path, name)

	for _, dep := range r.tasks[name].Deps {
		if _, ok := r.tasks[dep]; !ok {
			return nil, nil, errors.ErrUnknownTask(dep, name)
		}

		switch state[dep] {
		case visiting:
			return nil, nil, errors.ErrDependencyCycle(cyclePath(path, dep))
		case unvisited:
			var err error
			order, path, err = r.visit(dep, state, order, path)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	state[name] = visited
	path = path[:len(path)-1]
	order = append(order, name)

	return order, path, nil
}

// cyclePath extracts the cycle closing at dep from the current DFS path.
func cyclePath(path []string, dep string) []string {
	start := 0
	for i, p := range path {
		if p == dep {
			start = i
			break
		}
	}

	cycle := make([]string, 0, len(path)-start+1)
	cycle = append(cycle, path[start:]...)
	return append(cycle, dep)
}

// Dependents returns the tasks that list name as a direct dependency, in
// declaration order.
func (r *Registry) Dependents(name string) []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var dependents []string
	for _, taskName := range r.order {
		for _, dep := range r.tasks[taskName].Deps {
			if dep == name {
				dependents = append(dependents, taskName)
				break
			}
		}
	}
	return dependents
}
