// Package session implements the review session lifecycle: connecting to the
// card control and speech services, dispatching recognized utterances to
// review actions, and tracking per-session statistics.
//
// Only one session is active at a time. The [Controller] owns the state
// machine (idle, connecting, active, degraded, stopped) and serializes
// command dispatch so review actions apply in utterance order.
package session

import (
	"context"
	"math"
	"time"

	"github.com/cardvox/cardvox/pkg/cardctl"
)

// State is the session lifecycle phase.
type State int

const (
	// StateIdle means no session exists.
	StateIdle State = iota

	// StateConnecting means service probes are in flight.
	StateConnecting

	// StateActive means the session is running with all services up.
	StateActive

	// StateDegraded means the session is running without speech synthesis.
	// Read-aloud commands report unavailability instead of speaking.
	StateDegraded

	// StateStopped is the transient phase while a session shuts down.
	StateStopped
)

// String returns the human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateDegraded:
		return "degraded"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Running reports whether the state accepts utterances.
func (s State) Running() bool { return s == StateActive || s == StateDegraded }

// Stats is the running tally of review outcomes for one session.
type Stats struct {
	// CardsReviewed counts successfully applied grades.
	CardsReviewed int

	// CorrectCount counts grades of good or easy.
	CorrectCount int
}

// Accuracy returns the percentage of reviewed cards graded good or easy,
// rounded to the nearest integer. Zero when nothing was reviewed.
func (s Stats) Accuracy() int {
	if s.CardsReviewed == 0 {
		return 0
	}
	return int(math.Round(float64(s.CorrectCount) / float64(s.CardsReviewed) * 100))
}

// Summary is the final report produced when a session stops.
type Summary struct {
	CardsReviewed int
	CorrectCount  int
	Accuracy      int
	Elapsed       time.Duration
}

// Snapshot is a point-in-time view of the controller for status reporting.
type Snapshot struct {
	State     State
	Stats     Stats
	StartedAt time.Time
	Listening bool
}

// EventKind discriminates the events a session emits.
type EventKind string

const (
	// EventState signals a lifecycle transition; Event.State carries the new
	// state.
	EventState EventKind = "state"

	// EventFeedback carries a user-facing message such as a grading
	// confirmation or an unrecognized-command notice.
	EventFeedback EventKind = "feedback"

	// EventListening signals a recognition stream open or close; Event.Text
	// is "on" or "off".
	EventListening EventKind = "listening"

	// EventVoiceLost signals a terminal recognition failure. The session
	// keeps running but receives no further voice input.
	EventVoiceLost EventKind = "voice-lost"
)

// Event is a session notification delivered on the controller's event
// channel.
type Event struct {
	Kind  EventKind `json:"kind"`
	Text  string    `json:"text,omitempty"`
	State State     `json:"-"`
	Stats Stats     `json:"stats"`
	Time  time.Time `json:"time"`
}

// CardController is the card review surface the session drives. Implemented
// by [cardctl.Client]; the mock subpackage provides a test double.
type CardController interface {
	// TestConnection reports whether the card service is reachable and
	// speaks a compatible protocol version.
	TestConnection(ctx context.Context) bool

	// ShowAnswer reveals the answer of the card under review.
	ShowAnswer(ctx context.Context) error

	// Grade applies an ease ordinal (1 to 4) to the card under review.
	Grade(ctx context.Context, ease int) error

	// CurrentCard returns the card under review, or nil when no card is up.
	CurrentCard(ctx context.Context) (*cardctl.Card, error)
}
