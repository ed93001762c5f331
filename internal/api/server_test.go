package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cardvox/cardvox/internal/session"
)

type fakeController struct {
	mu         sync.Mutex
	startErr   error
	stopErr    error
	dispatch   error
	summary    session.Summary
	snap       session.Snapshot
	dispatched []string
	events     chan session.Event
}

func newFakeController() *fakeController {
	return &fakeController{events: make(chan session.Event, 8)}
}

func (f *fakeController) Start(context.Context) error { return f.startErr }

func (f *fakeController) Stop() (session.Summary, error) { return f.summary, f.stopErr }

func (f *fakeController) Dispatch(_ context.Context, text string) error {
	f.mu.Lock()
	f.dispatched = append(f.dispatched, text)
	f.mu.Unlock()
	return f.dispatch
}

func (f *fakeController) Status() session.Snapshot { return f.snap }

func (f *fakeController) Events() <-chan session.Event { return f.events }

func newServer(t *testing.T, ctrl *fakeController) *Server {
	t.Helper()
	s, err := New(Config{
		Controller: ctrl,
		Recognizer: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusSwitchingProtocols)
		}),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func doJSON(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("%s %s: invalid JSON body %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()

	stub := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	if _, err := New(Config{Recognizer: stub}); err == nil {
		t.Error("New without controller succeeded")
	}
	if _, err := New(Config{Controller: newFakeController()}); err == nil {
		t.Error("New without recognizer succeeded")
	}
}

func TestStartSession(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	ctrl.snap = session.Snapshot{State: session.StateActive, StartedAt: time.Now(), Listening: true}
	s := newServer(t, ctrl)

	rec, body := doJSON(t, s, http.MethodPost, "/v1/session/start", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("start = %d, want 200", rec.Code)
	}
	if body["state"] != "active" {
		t.Errorf("state = %v, want active", body["state"])
	}
	if body["listening"] != true {
		t.Errorf("listening = %v, want true", body["listening"])
	}
	if body["started_at"] == nil {
		t.Error("started_at missing for a running session")
	}
}

func TestStartSession_Conflicts(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	ctrl.startErr = session.ErrAlreadyRunning
	s := newServer(t, ctrl)
	if rec, _ := doJSON(t, s, http.MethodPost, "/v1/session/start", ""); rec.Code != http.StatusConflict {
		t.Errorf("start while running = %d, want 409", rec.Code)
	}

	ctrl2 := newFakeController()
	ctrl2.startErr = session.ErrCardService
	s2 := newServer(t, ctrl2)
	if rec, _ := doJSON(t, s2, http.MethodPost, "/v1/session/start", ""); rec.Code != http.StatusBadGateway {
		t.Errorf("start with unreachable card service = %d, want 502", rec.Code)
	}
}

func TestStopSession(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	ctrl.summary = session.Summary{
		CardsReviewed: 3,
		CorrectCount:  2,
		Accuracy:      67,
		Elapsed:       90 * time.Second,
	}
	s := newServer(t, ctrl)

	rec, body := doJSON(t, s, http.MethodPost, "/v1/session/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stop = %d, want 200", rec.Code)
	}
	if body["cards_reviewed"] != float64(3) || body["correct_count"] != float64(2) {
		t.Errorf("summary counts = %v", body)
	}
	if body["accuracy"] != float64(67) {
		t.Errorf("accuracy = %v, want 67", body["accuracy"])
	}
	if body["elapsed_seconds"] != float64(90) {
		t.Errorf("elapsed_seconds = %v, want 90", body["elapsed_seconds"])
	}
}

func TestStopSession_NotRunning(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	ctrl.stopErr = session.ErrNotRunning
	s := newServer(t, ctrl)

	if rec, _ := doJSON(t, s, http.MethodPost, "/v1/session/stop", ""); rec.Code != http.StatusConflict {
		t.Errorf("stop without session = %d, want 409", rec.Code)
	}
}

func TestSessionStatus(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	ctrl.snap = session.Snapshot{
		State: session.StateDegraded,
		Stats: session.Stats{CardsReviewed: 8, CorrectCount: 5},
	}
	s := newServer(t, ctrl)

	rec, body := doJSON(t, s, http.MethodGet, "/v1/session", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["state"] != "degraded" {
		t.Errorf("state = %v, want degraded", body["state"])
	}
	if body["accuracy"] != float64(63) {
		t.Errorf("accuracy = %v, want 63", body["accuracy"])
	}
}

func TestCommand(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	ctrl.snap = session.Snapshot{State: session.StateActive}
	s := newServer(t, ctrl)

	rec, _ := doJSON(t, s, http.MethodPost, "/v1/session/command", `{"text":"show answer"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("command = %d, want 200", rec.Code)
	}
	ctrl.mu.Lock()
	defer ctrl.mu.Unlock()
	if len(ctrl.dispatched) != 1 || ctrl.dispatched[0] != "show answer" {
		t.Errorf("dispatched = %v", ctrl.dispatched)
	}
}

func TestCommand_BadRequest(t *testing.T) {
	t.Parallel()

	s := newServer(t, newFakeController())

	for _, body := range []string{"", "{}", `{"text":""}`, "not json"} {
		if rec, _ := doJSON(t, s, http.MethodPost, "/v1/session/command", body); rec.Code != http.StatusBadRequest {
			t.Errorf("command with body %q = %d, want 400", body, rec.Code)
		}
	}
}

func TestCommand_NotRunning(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	ctrl.dispatch = session.ErrNotRunning
	s := newServer(t, ctrl)

	if rec, _ := doJSON(t, s, http.MethodPost, "/v1/session/command", `{"text":"good"}`); rec.Code != http.StatusConflict {
		t.Errorf("command without session = %d, want 409", rec.Code)
	}
}

func TestRecognizerMount(t *testing.T) {
	t.Parallel()

	s := newServer(t, newFakeController())

	req := httptest.NewRequest(http.MethodGet, "/v1/recognizer", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusSwitchingProtocols {
		t.Errorf("recognizer mount = %d, want 101", rec.Code)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	t.Parallel()

	s := newServer(t, newFakeController())

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestEventStream(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	s := newServer(t, ctrl)

	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/v1/session/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	ctrl.events <- session.Event{
		Kind:  session.EventFeedback,
		Text:  "graded good",
		Stats: session.Stats{CardsReviewed: 1, CorrectCount: 1},
		Time:  time.Now(),
	}

	scanner := bufio.NewScanner(resp.Body)
	var eventLine, dataLine string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = line
		case strings.HasPrefix(line, "data: "):
			dataLine = line
		}
		if dataLine != "" {
			break
		}
	}
	if eventLine != "event: feedback" {
		t.Errorf("event line = %q", eventLine)
	}

	var payload eventPayload
	if err := json.Unmarshal([]byte(strings.TrimPrefix(dataLine, "data: ")), &payload); err != nil {
		t.Fatalf("data line %q: %v", dataLine, err)
	}
	if payload.Text != "graded good" || payload.CardsReviewed != 1 {
		t.Errorf("payload = %+v", payload)
	}
}

func TestEventStream_MultipleSubscribers(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	s := newServer(t, ctrl)

	sub1, cancel1 := s.events.subscribe()
	defer cancel1()
	sub2, cancel2 := s.events.subscribe()
	defer cancel2()

	ctrl.events <- session.Event{Kind: session.EventState, State: session.StateActive, Time: time.Now()}

	for i, sub := range []<-chan session.Event{sub1, sub2} {
		select {
		case ev := <-sub:
			if ev.Kind != session.EventState {
				t.Errorf("subscriber %d got kind %q", i, ev.Kind)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("subscriber %d never received the event", i)
		}
	}
}

func TestBroadcaster_CancelledSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()

	ctrl := newFakeController()
	s := newServer(t, ctrl)

	_, cancel := s.events.subscribe()
	cancel()
	cancel() // idempotent

	sub, cancel2 := s.events.subscribe()
	defer cancel2()

	ctrl.events <- session.Event{Kind: session.EventFeedback, Text: "still flowing", Time: time.Now()}

	select {
	case ev := <-sub:
		if ev.Text != "still flowing" {
			t.Errorf("event text = %q", ev.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never arrived after a subscriber cancelled")
	}
}
