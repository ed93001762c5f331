package config

import "slices"

// ConfigDiff describes what changed between two configs. Only fields that
// can be safely hot-reloaded are tracked; everything else requires a
// restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// LexiconChanged is true when synonym lists or the fuzzy distance
	// changed. The resolver is rebuilt and swapped in when set.
	LexiconChanged bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if !lexiconEqual(old.Lexicon, new.Lexicon) {
		d.LexiconChanged = true
	}

	return d
}

func lexiconEqual(a, b LexiconConfig) bool {
	return slices.Equal(a.Again, b.Again) &&
		slices.Equal(a.Hard, b.Hard) &&
		slices.Equal(a.Good, b.Good) &&
		slices.Equal(a.Easy, b.Easy) &&
		slices.Equal(a.ShowAnswer, b.ShowAnswer) &&
		slices.Equal(a.ReadCard, b.ReadCard) &&
		a.FuzzyDistance == b.FuzzyDistance
}
