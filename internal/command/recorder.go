package command

import (
	"context"
	"sync"
)

// Recorder is a Runner that records every Spec instead of spawning it. Tests
// use Handle to simulate side effects and exit statuses.
type Recorder struct {
	// Handle, when set, is called for every Spec and its result returned.
	Handle func(spec Spec) error

	mu    sync.Mutex
	calls []Spec
}

// NewRecorder creates a Recorder with an optional handler.
func NewRecorder(handle func(spec Spec) error) *Recorder {
	return &Recorder{Handle: handle}
}

// Run records spec and delegates to Handle.
func (r *Recorder) Run(_ context.Context, spec Spec) error {
	recorded := spec
	recorded.Args = append([]string(nil), spec.Args...)
	recorded.Env = append([]string(nil), spec.Env...)

	r.mu.Lock()
	r.calls = append(r.calls, recorded)
	r.mu.Unlock()

	if r.Handle != nil {
		return r.Handle(spec)
	}
	return nil
}

// Calls returns a copy of all recorded specs in invocation order.
func (r *Recorder) Calls() []Spec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Spec(nil), r.calls...)
}

// CountMatching returns how many recorded specs satisfy match.
func (r *Recorder) CountMatching(match func(Spec) bool) int {
	n := 0
	for _, spec := range r.Calls() {
		if match(spec) {
			n++
		}
	}
	return n
}
