// Package speech defines the Synthesizer interface for text-to-speech
// backends used to read card content aloud.
//
// A Synthesizer wraps a remote synthesis service: it validates the configured
// credential, converts text to audio, and plays the audio to completion
// before returning so callers can sequence "speak, then resume listening".
package speech

import "context"

// DefaultTextLimit is the maximum number of characters submitted for
// synthesis when no limit is configured. Bounding the text bounds cost and
// latency per request.
const DefaultTextLimit = 500

// Synthesizer is the abstraction over a text-to-speech service.
//
// Implementations serialize concurrent Speak calls internally: a second call
// queues behind the one in flight and plays after it, in call order.
type Synthesizer interface {
	// TestConnection reports whether the configured credential authenticates
	// against the service. It never returns an error; any failure — including
	// a missing credential — yields false.
	TestConnection(ctx context.Context) bool

	// Speak synthesizes text and plays the result to completion. The text is
	// truncated to the configured limit before submission. Returns after
	// playback ends, or with an error if synthesis or playback failed; it
	// does not retry.
	Speak(ctx context.Context, text string) error
}

// Truncate caps text at limit characters. A limit <= 0 selects
// DefaultTextLimit. Truncation is by bytes over ASCII-safe boundaries: the
// cut never splits a UTF-8 sequence.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		limit = DefaultTextLimit
	}
	if len(text) <= limit {
		return text
	}
	cut := limit
	// Back up to a rune boundary.
	for cut > 0 && text[cut]&0xC0 == 0x80 {
		cut--
	}
	return text[:cut]
}
