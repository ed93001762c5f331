// Package api exposes the review session over HTTP: session lifecycle
// endpoints, command injection, a server-sent-events feed of session
// notifications, the recognizer WebSocket mount, and the operational probes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cardvox/cardvox/internal/health"
	"github.com/cardvox/cardvox/internal/observe"
	"github.com/cardvox/cardvox/internal/session"
)

// Controller is the session surface the HTTP layer drives. Implemented by
// [session.Controller].
type Controller interface {
	Start(ctx context.Context) error
	Stop() (session.Summary, error)
	Dispatch(ctx context.Context, text string) error
	Status() session.Snapshot
	Events() <-chan session.Event
}

// Config configures a [Server].
type Config struct {
	// Controller drives the review session. Required.
	Controller Controller

	// Recognizer handles the recognition WebSocket. Required.
	Recognizer http.Handler

	// Assist, when non-nil, is mounted on /mcp for assistant tool access.
	Assist http.Handler

	// Health serves the liveness and readiness probes. A nil value installs
	// a handler with no readiness checks.
	Health *health.Handler

	// Metrics instruments the HTTP layer. Defaults to
	// [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Server is the HTTP front of the cardvox service. It implements
// http.Handler; mount it on an [http.Server].
type Server struct {
	ctrl    Controller
	handler http.Handler
	events  *broadcaster
}

// New assembles the route table and starts the event fan-out.
func New(cfg Config) (*Server, error) {
	if cfg.Controller == nil {
		return nil, errors.New("api: controller must not be nil")
	}
	if cfg.Recognizer == nil {
		return nil, errors.New("api: recognizer handler must not be nil")
	}
	h := cfg.Health
	if h == nil {
		h = health.New()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	s := &Server{
		ctrl:   cfg.Controller,
		events: newBroadcaster(cfg.Controller.Events()),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/session/start", s.handleStart)
	mux.HandleFunc("POST /v1/session/stop", s.handleStop)
	mux.HandleFunc("GET /v1/session", s.handleStatus)
	mux.HandleFunc("POST /v1/session/command", s.handleCommand)
	mux.HandleFunc("GET /v1/session/events", s.handleEvents)
	mux.Handle("GET /v1/recognizer", cfg.Recognizer)
	if cfg.Assist != nil {
		mux.Handle("/mcp", cfg.Assist)
	}
	mux.Handle("GET /metrics", promhttp.Handler())
	h.Register(mux)

	s.handler = observe.Middleware(metrics)(mux)
	return s, nil
}

// ServeHTTP dispatches to the route table.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close stops the event fan-out. The server must not be used afterwards.
func (s *Server) Close() {
	s.events.close()
}

type errorBody struct {
	Error string `json:"error"`
}

type statusBody struct {
	State         string `json:"state"`
	Listening     bool   `json:"listening"`
	CardsReviewed int    `json:"cards_reviewed"`
	CorrectCount  int    `json:"correct_count"`
	Accuracy      int    `json:"accuracy"`
	StartedAt     string `json:"started_at,omitempty"`
}

type summaryBody struct {
	CardsReviewed  int     `json:"cards_reviewed"`
	CorrectCount   int     `json:"correct_count"`
	Accuracy       int     `json:"accuracy"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	err := s.ctrl.Start(r.Context())
	switch {
	case errors.Is(err, session.ErrAlreadyRunning):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, session.ErrCardService):
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, s.statusBody())
	}
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	summary, err := s.ctrl.Stop()
	if errors.Is(err, session.ErrNotRunning) {
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, summaryBody{
		CardsReviewed:  summary.CardsReviewed,
		CorrectCount:   summary.CorrectCount,
		Accuracy:       summary.Accuracy,
		ElapsedSeconds: summary.Elapsed.Seconds(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.statusBody())
}

func (s *Server) statusBody() statusBody {
	snap := s.ctrl.Status()
	body := statusBody{
		State:         snap.State.String(),
		Listening:     snap.Listening,
		CardsReviewed: snap.Stats.CardsReviewed,
		CorrectCount:  snap.Stats.CorrectCount,
		Accuracy:      snap.Stats.Accuracy(),
	}
	if snap.State.Running() && !snap.StartedAt.IsZero() {
		body.StartedAt = snap.StartedAt.UTC().Format(time.RFC3339)
	}
	return body
}

type commandBody struct {
	Text string `json:"text"`
}

// handleCommand injects a typed utterance into the session, bypassing voice
// recognition. It goes through the same resolver and dispatch path as
// recognized speech.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var body commandBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Text == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "body must be a JSON object with a non-empty \"text\" field"})
		return
	}

	err := s.ctrl.Dispatch(r.Context(), body.Text)
	switch {
	case errors.Is(err, session.ErrNotRunning):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case err != nil:
		// The command reached a service and failed there; feedback was
		// already emitted on the event feed.
		writeJSON(w, http.StatusBadGateway, errorBody{Error: err.Error()})
	default:
		writeJSON(w, http.StatusOK, s.statusBody())
	}
}

// eventPayload is the wire form of a session event on the SSE feed.
type eventPayload struct {
	Kind          session.EventKind `json:"kind"`
	Text          string            `json:"text,omitempty"`
	State         string            `json:"state,omitempty"`
	CardsReviewed int               `json:"cards_reviewed"`
	CorrectCount  int               `json:"correct_count"`
	Time          string            `json:"time"`
}

func toPayload(ev session.Event) eventPayload {
	p := eventPayload{
		Kind:          ev.Kind,
		Text:          ev.Text,
		CardsReviewed: ev.Stats.CardsReviewed,
		CorrectCount:  ev.Stats.CorrectCount,
		Time:          ev.Time.UTC().Format(time.RFC3339Nano),
	}
	if ev.Kind == session.EventState {
		p.State = ev.State.String()
	}
	return p
}

// handleEvents streams session events as server-sent events until the client
// disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "streaming unsupported"})
		return
	}

	sub, cancel := s.events.subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	enc := json.NewEncoder(w)
	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-sub:
			if !open {
				return
			}
			if _, err := w.Write([]byte("event: " + string(ev.Kind) + "\ndata: ")); err != nil {
				return
			}
			if err := enc.Encode(toPayload(ev)); err != nil {
				return
			}
			// Encode writes a trailing newline; one more terminates the SSE
			// frame.
			if _, err := w.Write([]byte("\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"encoding failure"}`, http.StatusInternalServerError)
	}
}
