package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cardvox/cardvox/internal/command"
	"github.com/cardvox/cardvox/internal/observe"
	"github.com/cardvox/cardvox/internal/recog"
	"github.com/cardvox/cardvox/internal/resilience"
	"github.com/cardvox/cardvox/pkg/speech"
)

// defaultEventBuffer bounds the controller's event channel. Events beyond
// the buffer are dropped rather than blocking dispatch.
const defaultEventBuffer = 64

var (
	// ErrAlreadyRunning is returned by Start while a session is active.
	ErrAlreadyRunning = errors.New("session: already running")

	// ErrNotRunning is returned by Stop and Dispatch when no session is
	// active.
	ErrNotRunning = errors.New("session: no active session")

	// ErrCardService is returned by Start when the card control service
	// probe fails. The card service is mandatory; no session starts without
	// it.
	ErrCardService = errors.New("session: card control service unavailable")
)

// Config configures a [Controller].
type Config struct {
	// Cards is the card control client. Required.
	Cards CardController

	// Speech synthesizes card text for read-aloud. May be nil; the session
	// then runs degraded.
	Speech speech.Synthesizer

	// Resolver maps utterances to intents. Required.
	Resolver *command.Resolver

	// Source is the recognition stream the session listens on. Required.
	Source recog.Source

	// RestartDelay is passed to the recognition adapter. Zero selects the
	// adapter default.
	RestartDelay time.Duration

	// Breaker tunes the circuit breaker guarding speech synthesis. Zero
	// fields select the breaker defaults.
	Breaker resilience.Config

	// EventBuffer is the event channel capacity. Defaults to 64 if zero.
	EventBuffer int

	// Metrics receives dispatch and service instrumentation. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Controller owns the session state machine. One session at a time; Start
// while connecting joins the in-flight attempt, Start while running fails.
//
// Utterances are dispatched strictly one at a time in arrival order. All
// exported methods are safe for concurrent use.
type Controller struct {
	cards        CardController
	synth        speech.Synthesizer
	resolver     *command.Resolver
	source       recog.Source
	restartDelay time.Duration
	breaker      *resilience.Breaker
	metrics      *observe.Metrics
	events       chan Event

	mu        sync.Mutex
	state     State
	stats     Stats
	startedAt time.Time
	epoch     uint64
	adapter   *recog.Adapter
	cancel    context.CancelFunc
	starting  chan struct{} // non-nil while a Start attempt is in flight
	startErr  error

	// dispatchMu serializes utterance dispatch.
	dispatchMu sync.Mutex
}

// NewController creates a Controller from cfg.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Cards == nil {
		return nil, errors.New("session: card controller must not be nil")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("session: resolver must not be nil")
	}
	if cfg.Source == nil {
		return nil, errors.New("session: recognition source must not be nil")
	}
	breakerCfg := cfg.Breaker
	if breakerCfg.Name == "" {
		breakerCfg.Name = "speech"
	}
	buffer := cfg.EventBuffer
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Controller{
		cards:        cfg.Cards,
		synth:        cfg.Speech,
		resolver:     cfg.Resolver,
		source:       cfg.Source,
		restartDelay: cfg.RestartDelay,
		breaker:      resilience.New(breakerCfg),
		metrics:      metrics,
		events:       make(chan Event, buffer),
	}, nil
}

// Events returns the channel session notifications are delivered on. The
// channel is never closed; events that find no buffer space are dropped.
func (c *Controller) Events() <-chan Event { return c.events }

// SetResolver swaps the utterance resolver. Used for lexicon hot reload;
// utterances already in flight keep the resolver they started with.
func (c *Controller) SetResolver(r *command.Resolver) {
	if r == nil {
		return
	}
	c.mu.Lock()
	c.resolver = r
	c.mu.Unlock()
}

// Start probes the services and brings a session up. The card control
// service is mandatory: if its probe fails the session does not start.
// Speech synthesis is optional: a failed probe starts the session degraded.
//
// A Start that arrives while another Start is connecting waits for that
// attempt and returns its outcome.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Running() {
		c.mu.Unlock()
		return ErrAlreadyRunning
	}
	if c.state == StateConnecting {
		done := c.starting
		c.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.startErr
	}
	c.state = StateConnecting
	c.starting = make(chan struct{})
	c.mu.Unlock()
	c.emit(EventState, "connecting to services", StateConnecting, Stats{})

	err := c.connect(ctx)

	c.mu.Lock()
	c.startErr = err
	close(c.starting)
	c.starting = nil
	c.mu.Unlock()
	return err
}

// connect runs the probes and transitions to active or degraded.
func (c *Controller) connect(ctx context.Context) error {
	if !c.cards.TestConnection(ctx) {
		c.toIdle("card control service unreachable")
		return ErrCardService
	}

	speechUp := c.synth != nil && c.synth.TestConnection(ctx)
	if !speechUp {
		slog.Warn("speech synthesis unavailable, session will run degraded")
	}

	// The recognition stream outlives the Start call's context; it is bound
	// to the session and torn down by Stop.
	sessionCtx, cancel := context.WithCancel(context.Background())
	adapter, err := recog.NewAdapter(recog.AdapterConfig{
		Source:       c.source,
		RestartDelay: c.restartDelay,
		OnUtterance: func(text string) {
			if err := c.Dispatch(sessionCtx, text); err != nil && !errors.Is(err, ErrNotRunning) {
				slog.Warn("utterance dispatch failed", "error", err)
			}
		},
		OnListening: func(listening bool) {
			text := "off"
			delta := int64(-1)
			if listening {
				text = "on"
				delta = 1
			}
			c.metrics.Listening.Add(context.Background(), delta)
			c.emit(EventListening, text, c.currentState(), c.currentStats())
		},
		OnVoiceLost: func(kind recog.ErrorKind, detail string) {
			c.emit(EventVoiceLost,
				fmt.Sprintf("voice input lost (%s), session continues without it", kind),
				c.currentState(), c.currentStats())
		},
	})
	if err != nil {
		cancel()
		c.toIdle("recognition setup failed")
		return fmt.Errorf("session: recognition adapter: %w", err)
	}
	if err := adapter.Start(sessionCtx); err != nil {
		cancel()
		c.toIdle("recognition stream failed to start")
		return fmt.Errorf("session: recognition start: %w", err)
	}

	state := StateActive
	notice := "session active"
	if !speechUp {
		state = StateDegraded
		notice = "session active without read-aloud"
	}

	c.mu.Lock()
	c.state = state
	c.stats = Stats{}
	c.startedAt = time.Now()
	c.epoch++
	c.adapter = adapter
	c.cancel = cancel
	c.mu.Unlock()
	c.breaker.Reset()

	c.metrics.ActiveSessions.Add(context.Background(), 1)
	slog.Info("session started", "state", state.String())
	c.emit(EventState, notice, state, Stats{})
	return nil
}

// Stop tears the session down and returns the final summary. Statistics are
// discarded once the summary is produced; results of card operations still
// in flight when Stop is called no longer count.
func (c *Controller) Stop() (Summary, error) {
	c.mu.Lock()
	if !c.state.Running() {
		c.mu.Unlock()
		return Summary{}, ErrNotRunning
	}
	c.state = StateStopped
	c.epoch++
	adapter := c.adapter
	cancel := c.cancel
	c.adapter = nil
	c.cancel = nil
	stats := c.stats
	startedAt := c.startedAt
	c.stats = Stats{}
	c.mu.Unlock()

	c.emit(EventState, "session stopping", StateStopped, stats)
	adapter.Stop()
	cancel()

	summary := Summary{
		CardsReviewed: stats.CardsReviewed,
		CorrectCount:  stats.CorrectCount,
		Accuracy:      stats.Accuracy(),
		Elapsed:       time.Since(startedAt),
	}

	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
	c.metrics.ActiveSessions.Add(context.Background(), -1)
	c.emit(EventState, "session ended", StateIdle, Stats{})

	slog.Info("session stopped",
		"cards_reviewed", summary.CardsReviewed,
		"correct", summary.CorrectCount,
		"accuracy", summary.Accuracy,
		"elapsed", summary.Elapsed)
	return summary, nil
}

// Dispatch resolves one utterance and applies the resulting action. Calls
// are serialized; a second utterance waits for the first to finish. Returns
// ErrNotRunning when no session is active.
//
// Unrecognized utterances and per-command service failures surface as
// feedback events, not errors; the session keeps running.
func (c *Controller) Dispatch(ctx context.Context, text string) error {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.mu.Lock()
	state := c.state
	epoch := c.epoch
	resolver := c.resolver
	c.mu.Unlock()
	if !state.Running() {
		return ErrNotRunning
	}

	intent := resolver.Resolve(text)
	slog.Debug("dispatching utterance", "intent", intent.Kind.String(), "utterance", text)

	start := time.Now()
	err := c.apply(ctx, intent, state, epoch)
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.DispatchDuration.Record(ctx, time.Since(start).Seconds())
	c.metrics.RecordIntent(ctx, intent.Kind.String(), status)
	return err
}

// apply executes one resolved intent.
func (c *Controller) apply(ctx context.Context, intent command.Intent, state State, epoch uint64) error {
	switch intent.Kind {
	case command.KindUnrecognized:
		c.emit(EventFeedback,
			fmt.Sprintf("did not recognize %q, say \"help\" for the command list", intent.Raw),
			state, c.currentStats())
		return nil
	case command.KindShowAnswer:
		if err := c.cards.ShowAnswer(ctx); err != nil {
			c.metrics.RecordServiceError(ctx, "cards")
			c.emit(EventFeedback, "could not show the answer", state, c.currentStats())
			return fmt.Errorf("session: show answer: %w", err)
		}
		return nil
	case command.KindGrade:
		return c.applyGrade(ctx, intent, state, epoch)
	case command.KindReadCard:
		return c.readCard(ctx, state)
	case command.KindHelp:
		c.emit(EventFeedback, command.HelpText, state, c.currentStats())
		return nil
	default:
		return nil
	}
}

// applyGrade sends the grade to the card service and updates the tally. The
// tally is only touched if the session that dispatched the grade is still
// the running one; a grade completing after Stop is discarded.
func (c *Controller) applyGrade(ctx context.Context, intent command.Intent, state State, epoch uint64) error {
	if err := c.cards.Grade(ctx, intent.Grade.Ease()); err != nil {
		c.metrics.RecordServiceError(ctx, "cards")
		c.emit(EventFeedback, fmt.Sprintf("could not grade the card as %s", intent.Grade), state, c.currentStats())
		return fmt.Errorf("session: grade: %w", err)
	}

	c.mu.Lock()
	if c.epoch != epoch || !c.state.Running() {
		c.mu.Unlock()
		return nil
	}
	c.stats.CardsReviewed++
	if intent.Grade.IsCorrect() {
		c.stats.CorrectCount++
	}
	stats := c.stats
	c.mu.Unlock()

	c.emit(EventFeedback, fmt.Sprintf("graded %s", intent.Grade), state, stats)
	return nil
}

// readCard fetches the current card and speaks its question text. In a
// degraded session it reports unavailability without touching the
// synthesizer.
func (c *Controller) readCard(ctx context.Context, state State) error {
	if state == StateDegraded || c.synth == nil {
		c.emit(EventFeedback, "read-aloud is unavailable this session", state, c.currentStats())
		return nil
	}

	card, err := c.cards.CurrentCard(ctx)
	if err != nil {
		c.metrics.RecordServiceError(ctx, "cards")
		c.emit(EventFeedback, "could not fetch the current card", state, c.currentStats())
		return fmt.Errorf("session: current card: %w", err)
	}
	if card == nil {
		c.emit(EventFeedback, "no card is under review", state, c.currentStats())
		return nil
	}

	text := CleanCardText(card.Question)
	if text == "" {
		c.emit(EventFeedback, "the current card has no speakable text", state, c.currentStats())
		return nil
	}

	speakStart := time.Now()
	err = c.breaker.Execute(func() error { return c.synth.Speak(ctx, text) })
	switch {
	case errors.Is(err, resilience.ErrOpen):
		c.emit(EventFeedback, "read-aloud is paused while speech recovers", state, c.currentStats())
		return nil
	case err != nil:
		c.metrics.RecordServiceError(ctx, "speech")
		c.emit(EventFeedback, "could not read the card aloud", state, c.currentStats())
		return fmt.Errorf("session: read card: %w", err)
	}
	c.metrics.SpeechDuration.Record(ctx, time.Since(speakStart).Seconds())
	return nil
}

// Status returns a point-in-time snapshot for status reporting.
func (c *Controller) Status() Snapshot {
	c.mu.Lock()
	snap := Snapshot{
		State:     c.state,
		Stats:     c.stats,
		StartedAt: c.startedAt,
	}
	adapter := c.adapter
	c.mu.Unlock()

	if adapter != nil {
		snap.Listening = adapter.Listening()
	}
	return snap
}

// toIdle reverts a failed connection attempt.
func (c *Controller) toIdle(reason string) {
	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
	c.emit(EventState, reason, StateIdle, Stats{})
}

func (c *Controller) currentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) currentStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// emit delivers an event without blocking. A full buffer drops the event.
func (c *Controller) emit(kind EventKind, text string, state State, stats Stats) {
	ev := Event{Kind: kind, Text: text, State: state, Stats: stats, Time: time.Now()}
	select {
	case c.events <- ev:
	default:
		slog.Debug("session event dropped", "kind", string(kind))
	}
}
