// Package mock provides a scriptable test double for the recog.Source
// interface. Tests start the source, then drive events by calling
// EmitResult, EmitError, and EmitEnd.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/cardvox/cardvox/internal/recog"
)

// Source is a mock recog.Source. The zero value is ready to use.
type Source struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned by Start.
	StartErr error

	// StartCount counts Start invocations (including restarts).
	StartCount int

	// StopCount counts Stop invocations.
	StopCount int

	running bool
	events  recog.Events
}

// Start records the call, stores the event callbacks, and fires OnStart.
func (s *Source) Start(_ context.Context, events recog.Events) error {
	s.mu.Lock()
	s.StartCount++
	if s.StartErr != nil {
		err := s.StartErr
		s.mu.Unlock()
		return err
	}
	if s.running {
		s.mu.Unlock()
		return errors.New("mock source already running")
	}
	s.running = true
	s.events = events
	onStart := events.OnStart
	s.mu.Unlock()

	if onStart != nil {
		onStart()
	}
	return nil
}

// Stop records the call and fires OnEnd if the source was running.
func (s *Source) Stop() error {
	s.mu.Lock()
	s.StopCount++
	wasRunning := s.running
	s.running = false
	onEnd := s.events.OnEnd
	s.mu.Unlock()

	if wasRunning && onEnd != nil {
		onEnd()
	}
	return nil
}

// EmitResult delivers a recognition result to the active event handlers.
func (s *Source) EmitResult(text string, final bool) {
	s.mu.Lock()
	onResult := s.events.OnResult
	s.mu.Unlock()
	if onResult != nil {
		onResult(text, final)
	}
}

// EmitError delivers a recognition error followed by stream end, matching
// the real error-then-end sequence of a continuous recognizer.
func (s *Source) EmitError(kind recog.ErrorKind, detail string) {
	s.mu.Lock()
	onError := s.events.OnError
	onEnd := s.events.OnEnd
	s.running = false
	s.mu.Unlock()

	if onError != nil {
		onError(kind, detail)
	}
	if onEnd != nil {
		onEnd()
	}
}

// EmitEnd delivers a bare stream end (remote side closed).
func (s *Source) EmitEnd() {
	s.mu.Lock()
	onEnd := s.events.OnEnd
	s.running = false
	s.mu.Unlock()

	if onEnd != nil {
		onEnd()
	}
}

// Starts returns the number of Start calls so far. Thread-safe.
func (s *Source) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.StartCount
}

// Ensure Source implements recog.Source at compile time.
var _ recog.Source = (*Source)(nil)
