package monitoring

import (
	"context"
	"sync"
)

// Suspension restores monitoring for the libraries a Suspend call paused.
type Suspension struct {
	libraries []int64
	resume    func(ctx context.Context) error

	once sync.Once
	err  error
}

// NewSuspension builds a Suspension around a resume function. Resume invokes
// it at most once.
func NewSuspension(libraries []int64, resume func(ctx context.Context) error) *Suspension {
	return &Suspension{libraries: libraries, resume: resume}
}

// Libraries returns the library IDs that were monitored when suspended.
func (s *Suspension) Libraries() []int64 {
	if s == nil {
		return nil
	}
	out := make([]int64, len(s.libraries))
	copy(out, s.libraries)
	return out
}

// Resume re-registers the suspended libraries. Later calls return the first
// call's result without doing anything.
func (s *Suspension) Resume(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.once.Do(func() {
		if s.resume != nil {
			s.err = s.resume(ctx)
		}
	})
	return s.err
}
