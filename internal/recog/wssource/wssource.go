// Package wssource implements recog.Source over a WebSocket endpoint.
//
// The actual speech engine runs in a front-end (a browser page or desktop
// shell with microphone access); it connects to this endpoint and pushes
// finalized utterances and recognizer lifecycle events as JSON frames:
//
//	{"type": "result", "text": "got it", "final": true}
//	{"type": "error", "kind": "no-speech", "detail": "..."}
//
// One client may be attached at a time. The stream counts as listening from
// client attach to client detach; a dropped connection surfaces as a stream
// end, which the recognition adapter treats as transiently restartable.
package wssource

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"

	"github.com/cardvox/cardvox/internal/recog"
)

// frame is the JSON message pushed by the front-end. The server sends one
// frame of its own: a "config" frame on attach carrying the recognition
// language the client should use.
type frame struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Final    bool   `json:"final,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Detail   string `json:"detail,omitempty"`
	Language string `json:"language,omitempty"`
}

// Source accepts one recognizer client over WebSocket and translates its
// frames into recog events. It implements both recog.Source and
// http.Handler; mount it on the route the front-end dials.
type Source struct {
	language string

	mu       sync.Mutex
	running  bool
	attached bool
	events   recog.Events
	conn     *websocket.Conn
	ctx      context.Context
}

// Option configures a Source.
type Option func(*Source)

// WithLanguage sets the BCP 47 tag advertised to attaching clients.
func WithLanguage(tag string) Option {
	return func(s *Source) { s.language = tag }
}

// New creates an idle Source.
func New(opts ...Option) *Source {
	s := &Source{}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start marks the source as accepting a client. OnStart fires when a client
// actually attaches.
//
// Start is idempotent while running: the endpoint keeps accepting clients
// for the whole session, so a restart after a client detach has nothing to
// re-open and returns nil.
func (s *Source) Start(ctx context.Context, events recog.Events) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	s.events = events
	s.ctx = ctx
	return nil
}

// Stop detaches any connected client and stops accepting new ones.
func (s *Source) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	conn := s.conn
	s.conn = nil
	wasAttached := s.attached
	s.attached = false
	onEnd := s.events.OnEnd
	s.events = recog.Events{}
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "session stopped")
	}
	if wasAttached && onEnd != nil {
		onEnd()
	}
	return nil
}

// ServeHTTP upgrades the request and pumps recognizer frames until the
// client disconnects. Connections are refused while no session is running
// or another client is attached.
func (s *Source) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Debug("wssource: accept failed", "error", err)
		return
	}

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		conn.Close(websocket.StatusPolicyViolation, "no active session")
		return
	}
	if s.attached {
		s.mu.Unlock()
		conn.Close(websocket.StatusPolicyViolation, "recognizer already attached")
		return
	}
	s.attached = true
	s.conn = conn
	events := s.events
	ctx := s.ctx
	s.mu.Unlock()

	if s.language != "" {
		cfg, _ := json.Marshal(frame{Type: "config", Language: s.language})
		if err := conn.Write(ctx, websocket.MessageText, cfg); err != nil {
			slog.Debug("wssource: config frame write failed", "error", err)
		}
	}
	if events.OnStart != nil {
		events.OnStart()
	}
	slog.Info("wssource: recognizer attached", "remote", r.RemoteAddr)

	s.readLoop(ctx, conn, events)

	s.mu.Lock()
	stillMine := s.conn == conn
	if stillMine {
		s.attached = false
		s.conn = nil
	}
	s.mu.Unlock()

	if stillMine {
		_ = conn.Close(websocket.StatusNormalClosure, "")
		slog.Info("wssource: recognizer detached", "remote", r.RemoteAddr)
		if events.OnEnd != nil {
			events.OnEnd()
		}
	}
}

// readLoop decodes frames until the connection drops or ctx is cancelled.
func (s *Source) readLoop(ctx context.Context, conn *websocket.Conn, events recog.Events) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			slog.Debug("wssource: bad frame", "error", err)
			continue
		}

		switch f.Type {
		case "result":
			if events.OnResult != nil {
				events.OnResult(f.Text, f.Final)
			}
		case "error":
			if events.OnError != nil {
				events.OnError(parseKind(f.Kind), f.Detail)
			}
			// The client's recognizer is down; drop the connection so the
			// adapter sees end-of-stream and applies its restart policy.
			conn.Close(websocket.StatusNormalClosure, "recognizer error")
			return
		default:
			slog.Debug("wssource: unknown frame type", "type", f.Type)
		}
	}
}

// parseKind maps the client's error kind string onto recog.ErrorKind.
// Unknown kinds degrade to an aborted (transient) stream.
func parseKind(kind string) recog.ErrorKind {
	switch recog.ErrorKind(kind) {
	case recog.ErrNoSpeech, recog.ErrNetwork, recog.ErrAborted,
		recog.ErrNotAllowed, recog.ErrUnsupported:
		return recog.ErrorKind(kind)
	default:
		return recog.ErrAborted
	}
}

// Ensure Source implements recog.Source at compile time.
var _ recog.Source = (*Source)(nil)
