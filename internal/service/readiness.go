package service

import (
	"context"
	"sync"
)

// Readiness is a one-shot completion event. It fires once all data needed to render a report
// has settled, whether or not the fetches succeeded.
type Readiness struct {
	once sync.Once
	done chan struct{}
	err  error
}

// NewReadiness returns an unfired readiness event.
func NewReadiness() *Readiness {
	return &Readiness{done: make(chan struct{})}
}

// Mark fires the event recording err as the outcome. Later calls are ignored.
func (r *Readiness) Mark(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

// Done is closed once the event has fired.
func (r *Readiness) Done() <-chan struct{} {
	return r.done
}

// Fired reports whether Mark has been called.
func (r *Readiness) Fired() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Err returns the outcome recorded by Mark. It is nil until the event fires.
func (r *Readiness) Err() error {
	if !r.Fired() {
		return nil
	}
	return r.err
}

// Wait blocks until the event fires or ctx ends, returning the recorded outcome or the
// context error.
func (r *Readiness) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
