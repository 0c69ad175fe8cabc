// Package progress provides listener registries for long-running tasks.
package progress

import "sync"

// Listener receives notifications from a long-running task.
type Listener interface {
	// Updated reports that current of total units of work are done.
	Updated(message string, current, total int)

	// Cancelled reports that the task stopped before completing.
	Cancelled()

	// Warning reports a non-fatal problem. The task continues.
	Warning(err error)

	// Complete reports that the task finished. tag identifies the task.
	Complete(tag string, result any)
}

// Handle identifies a registered listener.
type Handle uint64

// Registry is a per-instance set of listeners. The zero value is ready to use.
type Registry struct {
	mu        sync.Mutex
	next      Handle
	handles   []Handle
	listeners []Listener
}

// Add registers l and returns a handle for removing it. Nil listeners are
// ignored and get the zero handle.
func (r *Registry) Add(l Listener) Handle {
	if l == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.handles = append(r.handles, r.next)
	r.listeners = append(r.listeners, l)
	return r.next
}

// Remove unregisters the listener behind h. Unknown handles are ignored.
func (r *Registry) Remove(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, have := range r.handles {
		if have == h {
			r.handles = append(r.handles[:i], r.handles[i+1:]...)
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// snapshot copies the listeners so callbacks run without the lock held.
func (r *Registry) snapshot() []Listener {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Listener(nil), r.listeners...)
}

// Updated notifies every listener of progress.
func (r *Registry) Updated(message string, current, total int) {
	for _, l := range r.snapshot() {
		l.Updated(message, current, total)
	}
}

// Cancelled notifies every listener of cancellation.
func (r *Registry) Cancelled() {
	for _, l := range r.snapshot() {
		l.Cancelled()
	}
}

// Warning notifies every listener of a warning.
func (r *Registry) Warning(err error) {
	for _, l := range r.snapshot() {
		l.Warning(err)
	}
}

// Complete notifies every listener of completion.
func (r *Registry) Complete(tag string, result any) {
	for _, l := range r.snapshot() {
		l.Complete(tag, result)
	}
}

// Funcs adapts plain functions to a Listener. Nil fields are skipped.
type Funcs struct {
	OnUpdated   func(message string, current, total int)
	OnCancelled func()
	OnWarning   func(err error)
	OnComplete  func(tag string, result any)
}

// Updated implements Listener.
func (f Funcs) Updated(message string, current, total int) {
	if f.OnUpdated != nil {
		f.OnUpdated(message, current, total)
	}
}

// Cancelled implements Listener.
func (f Funcs) Cancelled() {
	if f.OnCancelled != nil {
		f.OnCancelled()
	}
}

// Warning implements Listener.
func (f Funcs) Warning(err error) {
	if f.OnWarning != nil {
		f.OnWarning(err)
	}
}

// Complete implements Listener.
func (f Funcs) Complete(tag string, result any) {
	if f.OnComplete != nil {
		f.OnComplete(tag, result)
	}
}
