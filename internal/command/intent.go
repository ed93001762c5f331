// Package command implements the voice-command lexicon and the utterance
// resolver that maps recognized speech to review actions.
//
// The lexicon is a static ordered list of (phrase, intent) pairs. Resolution
// is deliberately simple and explainable: exact match wins, then the first
// two-way substring hit in lexicon order, then an optional fuzzy tier for
// single-word near-misses. There is no statistical classifier — determinism
// is a feature, and the ordering of the lexicon is the only tie-break.
package command

import "fmt"

// Grade is the four-level review outcome applied to a card. The numeric
// values are the ease ordinals the card control service expects and must not
// be reordered.
type Grade int

const (
	GradeAgain Grade = 1
	GradeHard  Grade = 2
	GradeGood  Grade = 3
	GradeEasy  Grade = 4
)

// String returns the human-readable name of the grade.
func (g Grade) String() string {
	switch g {
	case GradeAgain:
		return "again"
	case GradeHard:
		return "hard"
	case GradeGood:
		return "good"
	case GradeEasy:
		return "easy"
	default:
		return fmt.Sprintf("grade(%d)", int(g))
	}
}

// Ease returns the ordinal sent to the card control service (1–4).
func (g Grade) Ease() int { return int(g) }

// IsCorrect reports whether the grade counts toward the session's correct
// answer tally. Good and Easy count; Again and Hard do not.
func (g Grade) IsCorrect() bool { return g == GradeGood || g == GradeEasy }

// Kind discriminates the intent variants produced by the resolver.
type Kind int

const (
	// KindUnrecognized means no lexicon entry matched the utterance.
	KindUnrecognized Kind = iota

	// KindShowAnswer reveals the current card's answer.
	KindShowAnswer

	// KindGrade applies a Grade to the current card.
	KindGrade

	// KindReadCard reads the current card's content aloud.
	KindReadCard

	// KindHelp produces a summary of available commands.
	KindHelp
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindUnrecognized:
		return "unrecognized"
	case KindShowAnswer:
		return "show_answer"
	case KindGrade:
		return "grade"
	case KindReadCard:
		return "read_card"
	case KindHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Intent is the canonical action resolved from an utterance. Intents are
// immutable values produced fresh for every utterance.
type Intent struct {
	// Kind selects the variant.
	Kind Kind

	// Grade is set when Kind is KindGrade.
	Grade Grade

	// Raw is the original utterance. Always set; for KindUnrecognized it is
	// the only payload.
	Raw string
}

// ShowAnswer returns a show-answer intent for the given utterance.
func ShowAnswer(raw string) Intent { return Intent{Kind: KindShowAnswer, Raw: raw} }

// GradeIntent returns a grading intent for the given utterance.
func GradeIntent(g Grade, raw string) Intent { return Intent{Kind: KindGrade, Grade: g, Raw: raw} }

// ReadCard returns a read-card intent for the given utterance.
func ReadCard(raw string) Intent { return Intent{Kind: KindReadCard, Raw: raw} }

// Help returns a help intent for the given utterance.
func Help(raw string) Intent { return Intent{Kind: KindHelp, Raw: raw} }

// Unrecognized returns an unrecognized intent carrying the raw utterance.
func Unrecognized(raw string) Intent { return Intent{Kind: KindUnrecognized, Raw: raw} }
