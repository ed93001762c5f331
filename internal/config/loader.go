package config

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"gopkg.in/yaml.v3"
)

// maxFuzzyDistance bounds the fuzzy matching tier. Larger distances make
// unrelated words collide with grading commands.
const maxFuzzyDistance = 2

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	if cfg.Cards.Endpoint != "" {
		u, err := url.Parse(cfg.Cards.Endpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("cards.endpoint %q is not a valid http(s) URL", cfg.Cards.Endpoint))
		}
	}
	if cfg.Cards.TimeoutSeconds < 0 {
		errs = append(errs, errors.New("cards.timeout_seconds must not be negative"))
	}

	if cfg.Speech.APIKey != "" && cfg.Speech.VoiceID == "" {
		errs = append(errs, errors.New("speech.voice_id is required when speech.api_key is set"))
	}
	if cfg.Speech.TextLimit < 0 {
		errs = append(errs, errors.New("speech.text_limit must not be negative"))
	}

	if cfg.Recognition.RestartDelayMS < 0 {
		errs = append(errs, errors.New("recognition.restart_delay_ms must not be negative"))
	}

	if cfg.Lexicon.FuzzyDistance < 0 || cfg.Lexicon.FuzzyDistance > maxFuzzyDistance {
		errs = append(errs, fmt.Errorf("lexicon.fuzzy_distance must be between 0 and %d", maxFuzzyDistance))
	}

	return errors.Join(errs...)
}
