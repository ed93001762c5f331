// Package config provides the configuration schema, loader, and file watcher
// for the cardvox server.
package config

import (
	"log/slog"

	"github.com/cardvox/cardvox/internal/command"
)

// LogLevel controls log verbosity for the cardvox server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l onto the slog level. Unrecognised and empty values map to
// info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure for cardvox. It is typically
// loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Cards       CardsConfig       `yaml:"cards"`
	Speech      SpeechConfig      `yaml:"speech"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Lexicon     LexiconConfig     `yaml:"lexicon"`
}

// ServerConfig holds network and logging settings for the cardvox server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8484").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// CardsConfig configures the card control client. The card service is
// mandatory; sessions refuse to start without it.
type CardsConfig struct {
	// Endpoint is the card control service URL. Empty selects the client
	// default (http://localhost:8765).
	Endpoint string `yaml:"endpoint"`

	// TimeoutSeconds bounds each card control request. Zero selects the
	// client default.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// SpeechConfig configures the speech synthesis client. Speech is optional:
// with no API key the session runs degraded and read-aloud commands report
// unavailability.
type SpeechConfig struct {
	// APIKey authenticates against the synthesis service. Falls back to the
	// ELEVENLABS_API_KEY environment variable when empty.
	APIKey string `yaml:"api_key"`

	// VoiceID selects the synthesis voice. Required when an API key is set.
	VoiceID string `yaml:"voice_id"`

	// Model overrides the synthesis model. Empty selects the client default.
	Model string `yaml:"model"`

	// TextLimit caps the number of characters submitted per synthesis
	// request. Zero selects the client default.
	TextLimit int `yaml:"text_limit"`
}

// RecognitionConfig tunes the speech recognition stream.
type RecognitionConfig struct {
	// RestartDelayMS is the pause in milliseconds before the stream is
	// restarted after a transient failure. Zero selects the default (500).
	RestartDelayMS int `yaml:"restart_delay_ms"`

	// Language is the BCP 47 tag advertised to the recognizer client.
	Language string `yaml:"language"`
}

// LexiconConfig holds user-configured synonym lists appended to the built-in
// command lexicon, plus the fuzzy matching tier.
type LexiconConfig struct {
	Again      []string `yaml:"again"`
	Hard       []string `yaml:"hard"`
	Good       []string `yaml:"good"`
	Easy       []string `yaml:"easy"`
	ShowAnswer []string `yaml:"show_answer"`
	ReadCard   []string `yaml:"read_card"`

	// FuzzyDistance enables single-word fuzzy matching up to the given edit
	// distance. Zero disables the fuzzy tier.
	FuzzyDistance int `yaml:"fuzzy_distance"`
}

// Extensions converts the configured synonym lists into lexicon extensions.
func (l LexiconConfig) Extensions() command.Extensions {
	return command.Extensions{
		Again:      l.Again,
		Hard:       l.Hard,
		Good:       l.Good,
		Easy:       l.Easy,
		ShowAnswer: l.ShowAnswer,
		ReadCard:   l.ReadCard,
	}
}
