package interaction

import (
	"sync"

	"github.com/inodb/vibe-hic/internal/probe"
	"github.com/inodb/vibe-hic/internal/progress"
)

// FilterKind identifies which setting a FilterEvent reports.
type FilterKind int

const (
	MinDistanceChanged FilterKind = iota
	MaxDistanceChanged
	MinStrengthChanged
	MaxSignificanceChanged
	MinAbsoluteChanged
	ProbeFilterChanged
	ClusterChanged
	ClusterRValueChanged
)

var filterKindNames = [...]string{
	MinDistanceChanged:     "min_distance",
	MaxDistanceChanged:     "max_distance",
	MinStrengthChanged:     "min_strength",
	MaxSignificanceChanged: "max_significance",
	MinAbsoluteChanged:     "min_absolute",
	ProbeFilterChanged:     "probe_filter",
	ClusterChanged:         "cluster",
	ClusterRValueChanged:   "cluster_r_value",
}

func (k FilterKind) String() string {
	if k < 0 || int(k) >= len(filterKindNames) {
		return "unknown"
	}
	return filterKindNames[k]
}

// FilterEvent describes a filter change. Filters holds the bounds after
// clamping.
type FilterEvent struct {
	Kind          FilterKind
	Filters       Filters
	ProbeFilter   *probe.List
	ClusterRValue float32
}

type filterListener struct {
	handle progress.Handle
	fn     func(FilterEvent)
}

// filterRegistry holds the filter-change callbacks of one matrix.
type filterRegistry struct {
	mu        sync.Mutex
	next      progress.Handle
	listeners []filterListener
}

func (r *filterRegistry) add(fn func(FilterEvent)) progress.Handle {
	if fn == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.listeners = append(r.listeners, filterListener{handle: r.next, fn: fn})
	return r.next
}

func (r *filterRegistry) remove(h progress.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.listeners {
		if l.handle == h {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

func (r *filterRegistry) notify(ev FilterEvent) {
	r.mu.Lock()
	listeners := append([]filterListener(nil), r.listeners...)
	r.mu.Unlock()

	for _, l := range listeners {
		l.fn(ev)
	}
}

// OnFilterChange registers fn to be called after every filter change.
// Callbacks run on the goroutine which changed the filter, after the new
// bounds are visible.
func (m *Matrix) OnFilterChange(fn func(FilterEvent)) progress.Handle {
	return m.filterListeners.add(fn)
}

// RemoveFilterListener unregisters a filter-change callback.
func (m *Matrix) RemoveFilterListener(h progress.Handle) {
	m.filterListeners.remove(h)
}
