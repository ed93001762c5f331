package config

import "testing"

func TestDiff_NoChanges(t *testing.T) {
	old := &Config{Server: ServerConfig{LogLevel: LogInfo}}
	new := &Config{Server: ServerConfig{LogLevel: LogInfo}}

	d := Diff(old, new)
	if d.LogLevelChanged || d.LexiconChanged {
		t.Errorf("diff of identical configs = %+v", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	old := &Config{Server: ServerConfig{LogLevel: LogInfo}}
	new := &Config{Server: ServerConfig{LogLevel: LogDebug}}

	d := Diff(old, new)
	if !d.LogLevelChanged {
		t.Fatal("log level change not detected")
	}
	if d.NewLogLevel != LogDebug {
		t.Errorf("NewLogLevel = %q, want debug", d.NewLogLevel)
	}
}

func TestDiff_LexiconSynonyms(t *testing.T) {
	old := &Config{Lexicon: LexiconConfig{Again: []string{"nope"}}}
	new := &Config{Lexicon: LexiconConfig{Again: []string{"nope", "missed it"}}}

	if d := Diff(old, new); !d.LexiconChanged {
		t.Error("lexicon synonym change not detected")
	}
}

func TestDiff_FuzzyDistance(t *testing.T) {
	old := &Config{Lexicon: LexiconConfig{FuzzyDistance: 0}}
	new := &Config{Lexicon: LexiconConfig{FuzzyDistance: 1}}

	if d := Diff(old, new); !d.LexiconChanged {
		t.Error("fuzzy distance change not detected")
	}
}
