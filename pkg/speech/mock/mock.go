// Package mock provides a test double for the speech.Synthesizer interface.
package mock

import (
	"context"
	"sync"

	"github.com/cardvox/cardvox/pkg/speech"
)

// Synthesizer is a mock implementation of speech.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// Connected is the value returned by TestConnection.
	Connected bool

	// SpeakErr, if non-nil, is returned by every Speak call.
	SpeakErr error

	// SpeakTexts records the text of every Speak call in order.
	SpeakTexts []string

	// TestConnectionCalls counts TestConnection invocations.
	TestConnectionCalls int
}

// TestConnection records the call and returns Connected.
func (s *Synthesizer) TestConnection(context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TestConnectionCalls++
	return s.Connected
}

// Speak records the text and returns SpeakErr.
func (s *Synthesizer) Speak(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SpeakTexts = append(s.SpeakTexts, text)
	return s.SpeakErr
}

// Texts returns a snapshot of recorded Speak texts. Thread-safe.
func (s *Synthesizer) Texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.SpeakTexts))
	copy(out, s.SpeakTexts)
	return out
}

// Ensure Synthesizer implements speech.Synthesizer at compile time.
var _ speech.Synthesizer = (*Synthesizer)(nil)
