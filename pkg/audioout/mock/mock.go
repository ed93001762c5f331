// Package mock provides a test double for the audioout.Player interface.
package mock

import (
	"context"
	"sync"

	"github.com/cardvox/cardvox/pkg/audioout"
)

// PlayCall records a single invocation of Player.Play.
type PlayCall struct {
	// PCM is a copy of the audio bytes passed to Play.
	PCM []byte

	// Format is the format passed to Play.
	Format audioout.Format
}

// Player is a mock implementation of audioout.Player.
type Player struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned by every Play call.
	PlayErr error

	// PlayCalls records every call to Play in order.
	PlayCalls []PlayCall
}

// Play records the call and returns PlayErr. It honours ctx cancellation.
func (p *Player) Play(ctx context.Context, pcm []byte, format audioout.Format) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	p.PlayCalls = append(p.PlayCalls, PlayCall{PCM: cp, Format: format})
	return p.PlayErr
}

// Calls returns a snapshot of recorded calls. Thread-safe.
func (p *Player) Calls() []PlayCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PlayCall, len(p.PlayCalls))
	copy(out, p.PlayCalls)
	return out
}

// Ensure Player implements audioout.Player at compile time.
var _ audioout.Player = (*Player)(nil)
