// Package recog owns the lifecycle of the continuous speech-recognition
// source that feeds utterances into a voice session.
//
// The Source interface models a continuous-mode recognizer: it is started,
// emits finalized utterance events until it errors or ends, and can be
// stopped. The Adapter wraps a Source with the restart policy a long-lived
// session needs: transient errors (no speech, a network blip) restart the
// stream after a short delay, while terminal errors (microphone permission
// denied) stop voice input for good without tearing the session down.
package recog

import "context"

// ErrorKind classifies recognition errors for the restart policy.
type ErrorKind string

const (
	// ErrNoSpeech means the recognizer gave up waiting for speech. Transient.
	ErrNoSpeech ErrorKind = "no-speech"

	// ErrNetwork means the recognizer lost its backing connection. Transient.
	ErrNetwork ErrorKind = "network"

	// ErrAborted means the stream ended unexpectedly. Transient.
	ErrAborted ErrorKind = "aborted"

	// ErrNotAllowed means microphone permission was denied. Terminal.
	ErrNotAllowed ErrorKind = "not-allowed"

	// ErrUnsupported means the environment cannot do speech recognition
	// at all. Terminal.
	ErrUnsupported ErrorKind = "unsupported"
)

// Transient reports whether the error kind permits an automatic restart.
func (k ErrorKind) Transient() bool {
	switch k {
	case ErrNoSpeech, ErrNetwork, ErrAborted:
		return true
	}
	return false
}

// Events receives lifecycle callbacks from a running Source. Callbacks are
// invoked sequentially from the Source's internal event loop; implementations
// must not block for long.
type Events struct {
	// OnStart fires when the recognition stream is open and listening.
	OnStart func()

	// OnResult fires for every recognition result. Only results with final
	// set are authoritative utterances; interim results may be dropped by
	// sources that do not produce them.
	OnResult func(text string, final bool)

	// OnError fires when the stream fails. The stream is no longer listening
	// after this fires; OnEnd follows.
	OnError func(kind ErrorKind, detail string)

	// OnEnd fires when the stream has fully shut down, whether from Stop,
	// an error, or the remote side ending it.
	OnEnd func()
}

// Source is a continuous speech recognizer. Implementations must support
// repeated Start/Stop cycles on the same value: the Adapter restarts a
// Source after transient errors.
type Source interface {
	// Start opens the recognition stream and begins delivering events.
	// It returns once the stream is being established; OnStart signals when
	// listening actually begins. Calling Start on a running source is an
	// error.
	Start(ctx context.Context, events Events) error

	// Stop closes the recognition stream. OnEnd fires once shutdown
	// completes. Stop on a stopped source is a no-op.
	Stop() error
}
