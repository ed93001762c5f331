// Package audioout defines the Player interface for rendering synthesized
// speech on the local output device.
//
// Separating playback from synthesis keeps the speech HTTP clients testable
// without an audio device: tests inject a mock Player and assert on the PCM
// bytes it received.
package audioout

import "context"

// Format describes the PCM layout of audio handed to a Player.
type Format struct {
	// SampleRate in Hz (e.g., 16000 for speech synthesis output).
	SampleRate int

	// Channels: 1 for mono speech audio.
	Channels int
}

// Player renders raw PCM audio to completion. Implementations must be safe
// for sequential reuse; concurrent Play calls on the same Player are not
// supported and callers are expected to serialize.
type Player interface {
	// Play writes the full PCM buffer to the output device and blocks until
	// playback finishes or ctx is cancelled. Samples are 16-bit little-endian.
	Play(ctx context.Context, pcm []byte, format Format) error
}
