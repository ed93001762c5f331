package command

import "testing"

func TestResolve_ExactMatches(t *testing.T) {
	t.Parallel()

	r := NewResolver(DefaultLexicon())

	// Every lexicon phrase must resolve to its own intent when spoken
	// verbatim, regardless of ordering concerns.
	for _, e := range DefaultLexicon() {
		got := r.Resolve(e.Phrase)
		if got.Kind != e.Intent.Kind || got.Grade != e.Intent.Grade {
			t.Errorf("Resolve(%q) = %v/%v, want %v/%v",
				e.Phrase, got.Kind, got.Grade, e.Intent.Kind, e.Intent.Grade)
		}
	}
}

func TestResolve_NormalizesInput(t *testing.T) {
	t.Parallel()

	r := NewResolver(DefaultLexicon())

	for _, raw := range []string{"  GOT IT  ", "Got   It", "got it"} {
		got := r.Resolve(raw)
		if got.Kind != KindGrade || got.Grade != GradeGood {
			t.Errorf("Resolve(%q) = %v/%v, want grade good", raw, got.Kind, got.Grade)
		}
	}
}

func TestResolve_SubstringTier(t *testing.T) {
	t.Parallel()

	r := NewResolver(DefaultLexicon())

	tests := []struct {
		utterance string
		kind      Kind
		grade     Grade
	}{
		// Phrase contained in a longer utterance.
		{"i think it was pretty hard today", KindGrade, GradeHard},
		{"ugh i forgot that one", KindGrade, GradeAgain},
		{"yeah got it right away", KindGrade, GradeGood},
		{"that was too easy honestly", KindGrade, GradeEasy},
		{"please show answer now", KindShowAnswer, 0},
		{"can you read card again", KindReadCard, 0},
		// Utterance contained in a phrase.
		{"show", KindShowAnswer, 0},
	}

	for _, tt := range tests {
		got := r.Resolve(tt.utterance)
		if got.Kind != tt.kind {
			t.Errorf("Resolve(%q).Kind = %v, want %v", tt.utterance, got.Kind, tt.kind)
			continue
		}
		if tt.kind == KindGrade && got.Grade != tt.grade {
			t.Errorf("Resolve(%q).Grade = %v, want %v", tt.utterance, got.Grade, tt.grade)
		}
	}
}

func TestResolve_RepeatDisambiguation(t *testing.T) {
	t.Parallel()

	r := NewResolver(DefaultLexicon())

	// Bare "repeat" is an Again synonym.
	got := r.Resolve("repeat")
	if got.Kind != KindGrade || got.Grade != GradeAgain {
		t.Fatalf("Resolve(repeat) = %v/%v, want grade again", got.Kind, got.Grade)
	}

	// "repeat card" rereads the card and must not be shadowed by "repeat".
	got = r.Resolve("repeat card")
	if got.Kind != KindReadCard {
		t.Fatalf("Resolve(repeat card) = %v, want read_card", got.Kind)
	}

	// Same inside a longer utterance.
	got = r.Resolve("please repeat card for me")
	if got.Kind != KindReadCard {
		t.Fatalf("Resolve(please repeat card for me) = %v, want read_card", got.Kind)
	}
}

func TestResolve_EasyPhrasesBeatAgainGenerics(t *testing.T) {
	t.Parallel()

	r := NewResolver(DefaultLexicon())

	// "no problem" contains the Again generic "no"; the lexicon ordering must
	// keep it an Easy grade even inside a longer utterance.
	for _, utterance := range []string{"no problem", "no problem at all", "that was no problem"} {
		got := r.Resolve(utterance)
		if got.Kind != KindGrade || got.Grade != GradeEasy {
			t.Errorf("Resolve(%q) = %v/%v, want grade easy", utterance, got.Kind, got.Grade)
		}
	}

	// The bare generic still grades Again.
	if got := r.Resolve("no"); got.Kind != KindGrade || got.Grade != GradeAgain {
		t.Errorf("Resolve(no) = %v/%v, want grade again", got.Kind, got.Grade)
	}
}

func TestResolve_Unrecognized(t *testing.T) {
	t.Parallel()

	r := NewResolver(DefaultLexicon())

	got := r.Resolve("xyzzy nonsense")
	if got.Kind != KindUnrecognized {
		t.Fatalf("Resolve(xyzzy nonsense) = %v, want unrecognized", got.Kind)
	}
	if got.Raw != "xyzzy nonsense" {
		t.Errorf("Raw = %q, want the normalized utterance", got.Raw)
	}

	if got := r.Resolve("   "); got.Kind != KindUnrecognized {
		t.Errorf("Resolve(blank) = %v, want unrecognized", got.Kind)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	t.Parallel()

	r := NewResolver(DefaultLexicon())

	// Repeated resolution of an ambiguous utterance must always pick the
	// same (first) lexicon entry.
	first := r.Resolve("that was hard but close")
	for i := 0; i < 50; i++ {
		got := r.Resolve("that was hard but close")
		if got != first {
			t.Fatalf("resolution not deterministic: %v vs %v", got, first)
		}
	}
}

func TestResolve_FuzzyDisabledByDefault(t *testing.T) {
	t.Parallel()

	r := NewResolver(DefaultLexicon())
	if got := r.Resolve("eassy"); got.Kind != KindUnrecognized {
		t.Fatalf("Resolve(eassy) with fuzzy off = %v, want unrecognized", got.Kind)
	}
}

func TestResolve_FuzzyTier(t *testing.T) {
	t.Parallel()

	r := NewResolver(DefaultLexicon(), WithFuzzyDistance(2))

	tests := []struct {
		utterance string
		kind      Kind
		grade     Grade
	}{
		{"eassy", KindGrade, GradeEasy},
		{"forgto", KindGrade, GradeAgain},
		{"helb", KindHelp, 0},
	}
	for _, tt := range tests {
		got := r.Resolve(tt.utterance)
		if got.Kind != tt.kind {
			t.Errorf("Resolve(%q) = %v, want %v", tt.utterance, got.Kind, tt.kind)
			continue
		}
		if tt.kind == KindGrade && got.Grade != tt.grade {
			t.Errorf("Resolve(%q).Grade = %v, want %v", tt.utterance, got.Grade, tt.grade)
		}
	}

	// Multi-word utterances never enter the fuzzy tier.
	if got := r.Resolve("eassy peassy"); got.Kind != KindUnrecognized {
		t.Errorf("multi-word fuzzy: got %v, want unrecognized", got.Kind)
	}
}

func TestExtend_AppendsAfterBuiltins(t *testing.T) {
	t.Parallel()

	lex := DefaultLexicon().Extend(Extensions{
		Good: []string{"nailed it", "  ", "got it"}, // "got it" is a dup
		Easy: []string{"trivial"},
	})

	r := NewResolver(lex)

	if got := r.Resolve("nailed it"); got.Kind != KindGrade || got.Grade != GradeGood {
		t.Errorf("Resolve(nailed it) = %v/%v, want grade good", got.Kind, got.Grade)
	}
	if got := r.Resolve("trivial"); got.Kind != KindGrade || got.Grade != GradeEasy {
		t.Errorf("Resolve(trivial) = %v/%v, want grade easy", got.Kind, got.Grade)
	}

	// Built-in entries keep their position: the duplicate "got it" must not
	// appear twice and built-in resolution is unchanged.
	count := 0
	for _, e := range lex {
		if e.Phrase == "got it" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("duplicate phrase appended: %d entries for %q", count, "got it")
	}
}
