//go:build property

package watcher

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestDebouncerProperties checks that a flushed batch holds every changed
// path exactly once, sorted, with the latest event for each path.
func TestDebouncerProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(9876)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("batch is deduplicated, sorted and keeps the latest event", prop.ForAll(
		func(ids []int, types []int) bool {
			d := NewDebouncer(time.Hour)
			latest := make(map[string]EventType)

			for i, id := range ids {
				path := fmt.Sprintf("source/file%d.scss", id%7)
				typ := EventType(types[i%len(types)] % 4)
				latest[path] = typ
				d.addEvent(ChangeEvent{Path: path, Type: typ})
			}
			d.stop()
			d.flush()

			if len(ids) == 0 {
				return len(d.output) == 0
			}

			events := <-d.output
			if len(events) != len(latest) {
				return false
			}
			if !sort.SliceIsSorted(events, func(i, j int) bool { return events[i].Path < events[j].Path }) {
				return false
			}
			for _, ev := range events {
				if latest[ev.Path] != ev.Type {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 100)),
		gen.SliceOfN(4, gen.IntRange(0, 3)),
	))

	properties.TestingRun(t)
}
