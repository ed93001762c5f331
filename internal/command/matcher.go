package command

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// Resolver turns a raw recognized utterance into an Intent.
//
// Resolution runs up to three tiers:
//
//  1. Exact: the normalized utterance equals a lexicon phrase.
//  2. Substring: first lexicon entry (in order) where the phrase contains the
//     utterance or the utterance contains the phrase.
//  3. Fuzzy (optional, off by default): single-word utterances within
//     FuzzyMaxDistance Damerau-Levenshtein edits of a single-word phrase.
//
// Resolver is stateless after construction and safe for concurrent use.
type Resolver struct {
	lexicon Lexicon
	exact   map[string]Intent

	// fuzzyMax is the maximum edit distance for the fuzzy tier. 0 disables it.
	fuzzyMax int
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithFuzzyDistance enables the fuzzy tier with the given maximum
// Damerau-Levenshtein distance. Distances <= 0 leave the tier disabled.
func WithFuzzyDistance(max int) ResolverOption {
	return func(r *Resolver) {
		if max > 0 {
			r.fuzzyMax = max
		}
	}
}

// NewResolver creates a Resolver over the given lexicon.
func NewResolver(lex Lexicon, opts ...ResolverOption) *Resolver {
	exact := make(map[string]Intent, len(lex))
	for _, e := range lex {
		// First entry wins on duplicate phrases, matching the ordered scan.
		if _, ok := exact[e.Phrase]; !ok {
			exact[e.Phrase] = e.Intent
		}
	}
	r := &Resolver{lexicon: lex, exact: exact}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve maps an utterance to an Intent. The utterance is lower-cased and
// whitespace-normalized before matching. An empty utterance resolves to
// Unrecognized.
func (r *Resolver) Resolve(utterance string) Intent {
	norm := normalize(utterance)
	if norm == "" {
		return Unrecognized(utterance)
	}

	// Tier 1: exact match is unambiguous and skips the ordered scan.
	if intent, ok := r.exact[norm]; ok {
		return withRaw(intent, norm)
	}

	// Tier 2: first two-way substring hit in lexicon order.
	for _, e := range r.lexicon {
		if strings.Contains(norm, e.Phrase) || strings.Contains(e.Phrase, norm) {
			return withRaw(e.Intent, norm)
		}
	}

	// Tier 3: fuzzy single-word match, when enabled.
	if r.fuzzyMax > 0 && !strings.ContainsRune(norm, ' ') {
		if intent, ok := r.fuzzyMatch(norm); ok {
			return withRaw(intent, norm)
		}
	}

	return Unrecognized(norm)
}

// fuzzyMatch scans single-word lexicon phrases for the closest entry within
// the configured edit distance. Lexicon order breaks distance ties.
func (r *Resolver) fuzzyMatch(word string) (Intent, bool) {
	best := r.fuzzyMax + 1
	var bestIntent Intent
	found := false

	for _, e := range r.lexicon {
		if strings.ContainsRune(e.Phrase, ' ') {
			continue
		}
		d := matchr.DamerauLevenshtein(word, e.Phrase)
		if d < best {
			best = d
			bestIntent = e.Intent
			found = true
		}
	}
	return bestIntent, found
}

// normalize lower-cases, trims, and collapses internal whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// withRaw returns intent with Raw set to the normalized utterance.
func withRaw(intent Intent, raw string) Intent {
	intent.Raw = raw
	return intent
}
