package recog_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cardvox/cardvox/internal/recog"
	"github.com/cardvox/cardvox/internal/recog/mock"
)

// collector gathers adapter callback invocations for assertions.
type collector struct {
	mu         sync.Mutex
	utterances []string
	listening  []bool
	voiceLost  []recog.ErrorKind
}

func (c *collector) onUtterance(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.utterances = append(c.utterances, text)
}

func (c *collector) onListening(l bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listening = append(c.listening, l)
}

func (c *collector) onVoiceLost(kind recog.ErrorKind, _ string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.voiceLost = append(c.voiceLost, kind)
}

func (c *collector) snapshotUtterances() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.utterances))
	copy(out, c.utterances)
	return out
}

func newAdapter(t *testing.T, src *mock.Source, c *collector) *recog.Adapter {
	t.Helper()
	a, err := recog.NewAdapter(recog.AdapterConfig{
		Source:       src,
		RestartDelay: 5 * time.Millisecond,
		OnUtterance:  c.onUtterance,
		OnListening:  c.onListening,
		OnVoiceLost:  c.onVoiceLost,
	})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}

func TestAdapter_ForwardsFinalUtterances(t *testing.T) {
	t.Parallel()

	src := &mock.Source{}
	c := &collector{}
	a := newAdapter(t, src, c)

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer a.Stop()

	src.EmitResult("got it", true)
	src.EmitResult("interim guess", false) // must be dropped
	src.EmitResult("", true)               // must be dropped
	src.EmitResult("show answer", true)

	got := c.snapshotUtterances()
	want := []string{"got it", "show answer"}
	if len(got) != len(want) {
		t.Fatalf("utterances = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("utterance %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestAdapter_RestartsAfterTransientError(t *testing.T) {
	t.Parallel()

	src := &mock.Source{}
	c := &collector{}
	a := newAdapter(t, src, c)

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer a.Stop()

	src.EmitError(recog.ErrNoSpeech, "silence timeout")

	waitFor(t, func() bool { return src.Starts() >= 2 })

	// The restarted stream must keep forwarding utterances.
	src.EmitResult("easy", true)
	waitFor(t, func() bool { return len(c.snapshotUtterances()) == 1 })

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.voiceLost) != 0 {
		t.Errorf("voiceLost fired for transient error: %v", c.voiceLost)
	}
}

func TestAdapter_RestartsAfterBareEnd(t *testing.T) {
	t.Parallel()

	src := &mock.Source{}
	c := &collector{}
	a := newAdapter(t, src, c)

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer a.Stop()

	src.EmitEnd()
	waitFor(t, func() bool { return src.Starts() >= 2 })
}

func TestAdapter_TerminalErrorStopsVoiceInput(t *testing.T) {
	t.Parallel()

	src := &mock.Source{}
	c := &collector{}
	a := newAdapter(t, src, c)

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer a.Stop()

	src.EmitError(recog.ErrNotAllowed, "permission denied")

	// Terminal: reported once, no restart.
	time.Sleep(50 * time.Millisecond)
	if got := src.Starts(); got != 1 {
		t.Errorf("source started %d times after terminal error, want 1", got)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.voiceLost) != 1 || c.voiceLost[0] != recog.ErrNotAllowed {
		t.Errorf("voiceLost = %v, want single not-allowed report", c.voiceLost)
	}
	if a.Listening() {
		t.Error("adapter still listening after terminal error")
	}
}

func TestAdapter_StopDisablesRestart(t *testing.T) {
	t.Parallel()

	src := &mock.Source{}
	c := &collector{}
	a := newAdapter(t, src, c)

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	a.Stop()
	time.Sleep(50 * time.Millisecond)

	if got := src.Starts(); got != 1 {
		t.Errorf("source restarted after Stop: %d starts", got)
	}
	if a.Listening() {
		t.Error("adapter listening after Stop")
	}
}

func TestAdapter_DoubleStartFails(t *testing.T) {
	t.Parallel()

	src := &mock.Source{}
	c := &collector{}
	a := newAdapter(t, src, c)

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer a.Stop()

	if err := a.Start(context.Background()); err == nil {
		t.Error("second Start = nil, want error")
	}
}

func TestAdapter_ListeningTracksStream(t *testing.T) {
	t.Parallel()

	src := &mock.Source{}
	c := &collector{}
	a := newAdapter(t, src, c)

	if err := a.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !a.Listening() {
		t.Error("not listening after start")
	}

	a.Stop()
	if a.Listening() {
		t.Error("still listening after stop")
	}
}
