// Package elevenlabs provides an ElevenLabs-backed speech synthesizer using
// the HTTP text-to-speech API. It implements the speech.Synthesizer
// interface.
//
// Synthesis requests PCM output so the audio can be handed straight to an
// audioout.Player without a decode step.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cardvox/cardvox/pkg/audioout"
	"github.com/cardvox/cardvox/pkg/speech"
)

const (
	defaultBaseURL = "https://api.elevenlabs.io/v1"
	defaultModel   = "eleven_flash_v2_5"

	// outputFormat is the PCM layout requested from the service.
	outputFormat     = "pcm_16000"
	outputSampleRate = 16000

	// probeTimeout bounds the TestConnection round trip so a black-holed
	// endpoint cannot stall session startup.
	probeTimeout = 5 * time.Second
)

// Option is a functional option for configuring the Synthesizer.
type Option func(*Synthesizer)

// WithModel sets the synthesis model ID (e.g., "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(s *Synthesizer) { s.model = model }
}

// WithTextLimit caps the number of characters submitted per request.
// Values <= 0 keep the package default.
func WithTextLimit(limit int) Option {
	return func(s *Synthesizer) {
		if limit > 0 {
			s.textLimit = limit
		}
	}
}

// WithBaseURL overrides the service endpoint. Used by tests.
func WithBaseURL(url string) Option {
	return func(s *Synthesizer) { s.baseURL = url }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *Synthesizer) { s.httpClient = hc }
}

// WithVoiceSettings sets the stability and similarity-boost parameters.
func WithVoiceSettings(stability, similarityBoost float64) Option {
	return func(s *Synthesizer) {
		s.stability = stability
		s.similarityBoost = similarityBoost
	}
}

// Synthesizer implements speech.Synthesizer backed by the ElevenLabs API.
// Speak calls are serialized: a concurrent call blocks until the in-flight
// one finishes playing, then runs.
type Synthesizer struct {
	apiKey          string
	voiceID         string
	model           string
	baseURL         string
	textLimit       int
	stability       float64
	similarityBoost float64
	httpClient      *http.Client
	player          audioout.Player

	// speakMu serializes Speak calls.
	speakMu sync.Mutex
}

// New creates a Synthesizer. voiceID selects the synthesized voice; player
// renders the returned audio. apiKey may be empty — TestConnection will then
// report false and Speak will fail with a credential error.
func New(apiKey, voiceID string, player audioout.Player, opts ...Option) (*Synthesizer, error) {
	if voiceID == "" {
		return nil, errors.New("elevenlabs: voiceID must not be empty")
	}
	if player == nil {
		return nil, errors.New("elevenlabs: player must not be nil")
	}
	s := &Synthesizer{
		apiKey:          apiKey,
		voiceID:         voiceID,
		model:           defaultModel,
		baseURL:         defaultBaseURL,
		textLimit:       speech.DefaultTextLimit,
		stability:       0.5,
		similarityBoost: 0.5,
		httpClient:      &http.Client{},
		player:          player,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// TestConnection validates the API key against the account endpoint. Any
// failure — missing key, transport error, non-2xx status — yields false.
func (s *Synthesizer) TestConnection(ctx context.Context) bool {
	if s.apiKey == "" {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/user", nil)
	if err != nil {
		return false
	}
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// ttsRequest is the JSON body for a synthesis request.
type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// voiceSettings mirrors the service's voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Speak synthesizes text and plays it to completion. The text is truncated
// to the configured limit first. Returns only after playback ends.
func (s *Synthesizer) Speak(ctx context.Context, text string) error {
	s.speakMu.Lock()
	defer s.speakMu.Unlock()

	if s.apiKey == "" {
		return errors.New("elevenlabs: api key is not configured")
	}
	text = speech.Truncate(text, s.textLimit)
	if text == "" {
		return nil
	}

	pcm, err := s.synthesize(ctx, text)
	if err != nil {
		return err
	}

	if err := s.player.Play(ctx, pcm, audioout.Format{SampleRate: outputSampleRate, Channels: 1}); err != nil {
		return fmt.Errorf("elevenlabs: playback: %w", err)
	}
	return nil
}

// synthesize performs the text-to-speech HTTP round-trip and returns raw PCM.
func (s *Synthesizer) synthesize(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(ttsRequest{
		Text:    text,
		ModelID: s.model,
		VoiceSettings: voiceSettings{
			Stability:       s.stability,
			SimilarityBoost: s.similarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s", s.baseURL, s.voiceID, outputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("elevenlabs: synthesis failed: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read audio: %w", err)
	}
	return pcm, nil
}

// Ensure Synthesizer satisfies the interface.
var _ speech.Synthesizer = (*Synthesizer)(nil)
