package recog

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// defaultRestartDelay is the pause before restarting the stream after a
// transient failure or an unexpected end.
const defaultRestartDelay = 500 * time.Millisecond

// AdapterConfig configures an Adapter.
type AdapterConfig struct {
	// Source is the recognizer to manage. Required.
	Source Source

	// RestartDelay is the pause before an automatic restart. Defaults to
	// 500ms if zero.
	RestartDelay time.Duration

	// OnUtterance receives every finalized utterance. Required.
	OnUtterance func(text string)

	// OnListening reports listening-state changes (stream open/closed).
	// May be nil.
	OnListening func(listening bool)

	// OnVoiceLost fires once when recognition fails terminally. Voice input
	// stays down but the caller's session keeps running. May be nil.
	OnVoiceLost func(kind ErrorKind, detail string)
}

// Adapter drives a Source for the lifetime of one session: it starts the
// stream, forwards finalized utterances, restarts after transient errors,
// and reports terminal failures exactly once.
//
// All methods are safe for concurrent use.
type Adapter struct {
	source       Source
	restartDelay time.Duration
	onUtterance  func(string)
	onListening  func(bool)
	onVoiceLost  func(ErrorKind, string)

	mu        sync.Mutex
	running   bool
	listening bool
	terminal  bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewAdapter creates an Adapter from cfg.
func NewAdapter(cfg AdapterConfig) (*Adapter, error) {
	if cfg.Source == nil {
		return nil, errors.New("recog: adapter source must not be nil")
	}
	if cfg.OnUtterance == nil {
		return nil, errors.New("recog: adapter OnUtterance must not be nil")
	}
	delay := cfg.RestartDelay
	if delay <= 0 {
		delay = defaultRestartDelay
	}
	return &Adapter{
		source:       cfg.Source,
		restartDelay: delay,
		onUtterance:  cfg.OnUtterance,
		onListening:  cfg.OnListening,
		onVoiceLost:  cfg.OnVoiceLost,
	}, nil
}

// Start opens the recognition stream. The adapter keeps the stream alive —
// restarting it after transient failures — until Stop is called or ctx is
// cancelled.
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return errors.New("recog: adapter already started")
	}
	a.running = true
	a.terminal = false
	a.ctx, a.cancel = context.WithCancel(ctx)
	runCtx := a.ctx
	a.mu.Unlock()

	return a.startSource(runCtx)
}

// Stop shuts the stream down and disables automatic restart. Safe to call
// multiple times.
func (a *Adapter) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	cancel := a.cancel
	a.mu.Unlock()

	cancel()
	if err := a.source.Stop(); err != nil {
		slog.Debug("recog: source stop", "error", err)
	}
}

// Listening reports whether the recognition stream is currently open.
func (a *Adapter) Listening() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.listening
}

// startSource begins one stream attempt on the source.
func (a *Adapter) startSource(ctx context.Context) error {
	if err := a.source.Start(ctx, a.eventsFor(ctx)); err != nil {
		a.mu.Lock()
		a.running = false
		cancel := a.cancel
		a.mu.Unlock()
		cancel()
		return err
	}
	return nil
}

// handleError records terminal failures and reports them once. Transient
// errors are only logged; the restart happens from OnEnd.
func (a *Adapter) handleError(kind ErrorKind, detail string) {
	if kind.Transient() {
		slog.Debug("recog: transient recognition error", "kind", kind, "detail", detail)
		return
	}

	a.mu.Lock()
	already := a.terminal
	a.terminal = true
	a.mu.Unlock()

	if already {
		return
	}
	slog.Warn("recog: voice input lost", "kind", kind, "detail", detail)
	if a.onVoiceLost != nil {
		a.onVoiceLost(kind, detail)
	}
}

// maybeRestart schedules a stream restart after the configured delay when
// the adapter is still running and has not failed terminally.
func (a *Adapter) maybeRestart(ctx context.Context) {
	a.mu.Lock()
	restart := a.running && !a.terminal
	a.mu.Unlock()
	if !restart {
		return
	}

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.restartDelay):
		}

		a.mu.Lock()
		restart := a.running && !a.terminal
		a.mu.Unlock()
		if !restart {
			return
		}

		slog.Debug("recog: restarting recognition stream")
		if err := a.source.Start(ctx, a.eventsFor(ctx)); err != nil {
			slog.Warn("recog: stream restart failed", "error", err)
			// Try again after the delay as long as the session runs.
			a.maybeRestart(ctx)
		}
	}()
}

// eventsFor builds the Events struct wired to the adapter's callbacks.
func (a *Adapter) eventsFor(ctx context.Context) Events {
	return Events{
		OnStart: func() { a.setListening(true) },
		OnResult: func(text string, final bool) {
			if !final || text == "" {
				return
			}
			a.onUtterance(text)
		},
		OnError: func(kind ErrorKind, detail string) { a.handleError(kind, detail) },
		OnEnd: func() {
			a.setListening(false)
			a.maybeRestart(ctx)
		},
	}
}

// setListening updates the listening flag and notifies the callback on
// change.
func (a *Adapter) setListening(listening bool) {
	a.mu.Lock()
	changed := a.listening != listening
	a.listening = listening
	a.mu.Unlock()

	if changed && a.onListening != nil {
		a.onListening(listening)
	}
}
