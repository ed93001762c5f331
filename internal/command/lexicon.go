package command

// Entry pairs a lexicon phrase with the intent it resolves to. Phrases are
// stored lower-case; the resolver lower-cases utterances before matching.
type Entry struct {
	Phrase string
	Intent Intent
}

// Lexicon is an ordered sequence of entries. Order matters: the substring
// tier returns the first hit, so longer or more specific phrases must come
// before the short generic ones they could collide with ("read card" before
// "repeat", "show answer" before "no").
type Lexicon []Entry

// DefaultLexicon returns the built-in command lexicon.
//
// The word "repeat" alone grades the card Again (a "repeat this card later"
// synonym); rereading the card aloud is "read card" or "repeat card".
// "repeat card" is listed before "repeat" so the substring tier cannot
// shadow it.
func DefaultLexicon() Lexicon {
	entries := []struct {
		phrase string
		intent Intent
	}{
		// Read-aloud. Must precede the grading synonyms that share words
		// ("repeat", "card").
		{"read card", ReadCard("")},
		{"repeat card", ReadCard("")},
		{"read the card", ReadCard("")},

		// Navigation.
		{"show answer", ShowAnswer("")},
		{"show the answer", ShowAnswer("")},
		{"next card", ShowAnswer("")},
		{"reveal", ShowAnswer("")},
		{"next", ShowAnswer("")},
		{"continue", ShowAnswer("")},

		// Easy phrases containing an Again generic must precede the Again
		// bucket: "no problem" would otherwise substring-match "no".
		{"no problem", GradeIntent(GradeEasy, "")},

		// Again — failed recall. Multi-word phrases first.
		{"i forgot", GradeIntent(GradeAgain, "")},
		{"no idea", GradeIntent(GradeAgain, "")},
		{"totally forgot", GradeIntent(GradeAgain, "")},
		{"drawing a blank", GradeIntent(GradeAgain, "")},
		{"again", GradeIntent(GradeAgain, "")},
		{"repeat", GradeIntent(GradeAgain, "")},
		{"forgot", GradeIntent(GradeAgain, "")},
		{"missed", GradeIntent(GradeAgain, "")},
		{"wrong", GradeIntent(GradeAgain, "")},
		{"no", GradeIntent(GradeAgain, "")},

		// Hard — recalled with effort.
		{"pretty hard", GradeIntent(GradeHard, "")},
		{"took a while", GradeIntent(GradeHard, "")},
		{"eventually got it", GradeIntent(GradeHard, "")},
		{"hard", GradeIntent(GradeHard, "")},
		{"difficult", GradeIntent(GradeHard, "")},
		{"struggled", GradeIntent(GradeHard, "")},
		{"challenging", GradeIntent(GradeHard, "")},
		{"almost", GradeIntent(GradeHard, "")},
		{"close", GradeIntent(GradeHard, "")},

		// Good — clean recall. "got it" must precede "eventually got it"
		// handling is covered by Hard entries above; "got it" here only has
		// to beat the bare "no"/"right" generics below it.
		{"got it", GradeIntent(GradeGood, "")},
		{"knew that", GradeIntent(GradeGood, "")},
		{"came to me", GradeIntent(GradeGood, "")},
		{"good", GradeIntent(GradeGood, "")},
		{"correct", GradeIntent(GradeGood, "")},
		{"remembered", GradeIntent(GradeGood, "")},
		{"yes", GradeIntent(GradeGood, "")},
		{"right", GradeIntent(GradeGood, "")},

		// Easy — instant recall. "too easy" is listed for documentation even
		// though containment makes it hit "easy" with the same result.
		{"too easy", GradeIntent(GradeEasy, "")},
		{"piece of cake", GradeIntent(GradeEasy, "")},
		{"easy", GradeIntent(GradeEasy, "")},
		{"perfect", GradeIntent(GradeEasy, "")},
		{"instant", GradeIntent(GradeEasy, "")},
		{"obvious", GradeIntent(GradeEasy, "")},
		{"simple", GradeIntent(GradeEasy, "")},

		// Utility.
		{"help", Help("")},
	}

	lex := make(Lexicon, 0, len(entries))
	for _, e := range entries {
		lex = append(lex, Entry{Phrase: e.phrase, Intent: e.intent})
	}
	return lex
}

// Extensions holds user-configured synonym lists appended to the built-in
// lexicon. Extensions never override built-in entries: they are appended
// after them, so built-in tie-break order is preserved.
type Extensions struct {
	Again      []string
	Hard       []string
	Good       []string
	Easy       []string
	ShowAnswer []string
	ReadCard   []string
}

// Extend returns a new lexicon with the extension phrases appended.
// Empty and duplicate phrases are skipped.
func (l Lexicon) Extend(ext Extensions) Lexicon {
	seen := make(map[string]bool, len(l))
	for _, e := range l {
		seen[e.Phrase] = true
	}

	out := make(Lexicon, len(l), len(l)+16)
	copy(out, l)

	appendAll := func(phrases []string, intent Intent) {
		for _, p := range phrases {
			p = normalize(p)
			if p == "" || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, Entry{Phrase: p, Intent: intent})
		}
	}

	appendAll(ext.Again, GradeIntent(GradeAgain, ""))
	appendAll(ext.Hard, GradeIntent(GradeHard, ""))
	appendAll(ext.Good, GradeIntent(GradeGood, ""))
	appendAll(ext.Easy, GradeIntent(GradeEasy, ""))
	appendAll(ext.ShowAnswer, ShowAnswer(""))
	appendAll(ext.ReadCard, ReadCard(""))
	return out
}

// HelpText is the fixed command summary surfaced by the help intent.
const HelpText = `Voice commands — navigation: "show answer", "next card"; ` +
	`grading: "I forgot", "hard", "got it", "easy"; ` +
	`audio: "read card"; say "help" to hear this again.`
