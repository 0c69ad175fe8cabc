// Package progresstest provides a progress listener that records what it is
// told, for use in tests.
package progresstest

import "sync"

// Recorder records every notification it receives. It satisfies
// progress.Listener and is safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	Updates   []Update
	Warnings  []error
	Cancels   int
	Completed []string
}

// Update is one recorded progress report.
type Update struct {
	Message string
	Current int
	Total   int
}

func (r *Recorder) Updated(message string, current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Updates = append(r.Updates, Update{message, current, total})
}

func (r *Recorder) Cancelled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Cancels++
}

func (r *Recorder) Warning(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warnings = append(r.Warnings, err)
}

func (r *Recorder) Complete(tag string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Completed = append(r.Completed, tag)
}
