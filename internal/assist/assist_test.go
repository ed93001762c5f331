package assist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cardvox/cardvox/internal/session"
	"github.com/cardvox/cardvox/pkg/cardctl"
)

type fakeBrowser struct {
	connected bool
	card      *cardctl.Card
	decks     []string
	due       []cardctl.CardInfo
	dueErr    error

	lastDeck  string
	lastLimit int
}

func (f *fakeBrowser) TestConnection(context.Context) bool { return f.connected }

func (f *fakeBrowser) CurrentCard(context.Context) (*cardctl.Card, error) { return f.card, nil }

func (f *fakeBrowser) DeckNames(context.Context) ([]string, error) { return f.decks, nil }

func (f *fakeBrowser) DueCards(_ context.Context, deck string, limit int) ([]cardctl.CardInfo, error) {
	f.lastDeck = deck
	f.lastLimit = limit
	return f.due, f.dueErr
}

type fakeStatus struct {
	snap session.Snapshot
}

func (f *fakeStatus) Status() session.Snapshot { return f.snap }

// connect wires the server to a client over in-memory transports and returns
// the client session.
func connect(t *testing.T, s *Server) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	clientT, serverT := mcp.NewInMemoryTransports()
	serverSession, err := s.MCP().Connect(ctx, serverT, nil)
	if err != nil {
		t.Fatalf("server connect: %v", err)
	}
	t.Cleanup(func() { _ = serverSession.Close() })

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	clientSession, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { _ = clientSession.Close() })
	return clientSession
}

func callText(t *testing.T, cs *mcp.ClientSession, tool string, args map[string]any) string {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      tool,
		Arguments: args,
	})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", tool, err)
	}
	if len(res.Content) == 0 {
		t.Fatalf("CallTool(%s): empty content", tool)
	}
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("CallTool(%s): content is %T, want text", tool, res.Content[0])
	}
	return tc.Text
}

func TestNew_RequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, &fakeStatus{}); err == nil {
		t.Error("New with nil browser succeeded")
	}
	if _, err := New(&fakeBrowser{}, nil); err == nil {
		t.Error("New with nil status succeeded")
	}
}

func TestDeckNames(t *testing.T) {
	t.Parallel()

	browser := &fakeBrowser{decks: []string{"Spanish", "Chemistry"}}
	s, err := New(browser, &fakeStatus{})
	if err != nil {
		t.Fatal(err)
	}
	cs := connect(t, s)

	text := callText(t, cs, "deck_names", nil)
	if !strings.Contains(text, "Spanish") || !strings.Contains(text, "Chemistry") {
		t.Errorf("deck_names = %q", text)
	}
}

func TestDueCards(t *testing.T) {
	t.Parallel()

	browser := &fakeBrowser{
		due: []cardctl.CardInfo{
			{DeckName: "Spanish", Question: "<b>hola</b>"},
			{DeckName: "Spanish", Question: "adios"},
		},
	}
	s, err := New(browser, &fakeStatus{})
	if err != nil {
		t.Fatal(err)
	}
	cs := connect(t, s)

	text := callText(t, cs, "due_cards", map[string]any{"deck": "Spanish", "limit": 5})
	if !strings.Contains(text, "2 card(s) due") {
		t.Errorf("due_cards = %q", text)
	}
	// Card HTML must not leak into tool output.
	if strings.Contains(text, "<b>") {
		t.Errorf("due_cards contains markup: %q", text)
	}
	if browser.lastDeck != "Spanish" || browser.lastLimit != 5 {
		t.Errorf("query = (%q, %d), want (Spanish, 5)", browser.lastDeck, browser.lastLimit)
	}
}

func TestDueCards_DefaultLimit(t *testing.T) {
	t.Parallel()

	browser := &fakeBrowser{}
	s, err := New(browser, &fakeStatus{})
	if err != nil {
		t.Fatal(err)
	}
	cs := connect(t, s)

	text := callText(t, cs, "due_cards", nil)
	if !strings.Contains(text, "No cards are due") {
		t.Errorf("due_cards = %q", text)
	}
	if browser.lastLimit != defaultDueLimit {
		t.Errorf("limit = %d, want %d", browser.lastLimit, defaultDueLimit)
	}
}

func TestDueCards_ServiceError(t *testing.T) {
	t.Parallel()

	browser := &fakeBrowser{dueErr: errors.New("collection locked")}
	s, err := New(browser, &fakeStatus{})
	if err != nil {
		t.Fatal(err)
	}
	cs := connect(t, s)

	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: "due_cards"})
	if err == nil && (res == nil || !res.IsError) {
		t.Error("due_cards with failing service did not report an error")
	}
}

func TestCurrentCard(t *testing.T) {
	t.Parallel()

	browser := &fakeBrowser{card: &cardctl.Card{
		Question: "capital of France?",
		Answer:   "Paris",
		DeckName: "Geography",
	}}
	s, err := New(browser, &fakeStatus{})
	if err != nil {
		t.Fatal(err)
	}
	cs := connect(t, s)

	text := callText(t, cs, "current_card", nil)
	for _, want := range []string{"Geography", "capital of France?", "Paris"} {
		if !strings.Contains(text, want) {
			t.Errorf("current_card missing %q: %q", want, text)
		}
	}
}

func TestCurrentCard_None(t *testing.T) {
	t.Parallel()

	s, err := New(&fakeBrowser{}, &fakeStatus{})
	if err != nil {
		t.Fatal(err)
	}
	cs := connect(t, s)

	if text := callText(t, cs, "current_card", nil); !strings.Contains(text, "No card") {
		t.Errorf("current_card = %q", text)
	}
}

func TestSessionStatus(t *testing.T) {
	t.Parallel()

	status := &fakeStatus{snap: session.Snapshot{
		State:     session.StateActive,
		Stats:     session.Stats{CardsReviewed: 3, CorrectCount: 2},
		Listening: true,
	}}
	s, err := New(&fakeBrowser{}, status)
	if err != nil {
		t.Fatal(err)
	}
	cs := connect(t, s)

	text := callText(t, cs, "session_status", nil)
	for _, want := range []string{"State: active", "Listening: true", "Cards reviewed: 3", "Accuracy: 67%"} {
		if !strings.Contains(text, want) {
			t.Errorf("session_status missing %q: %q", want, text)
		}
	}
}

func TestCheckConnection(t *testing.T) {
	t.Parallel()

	s, err := New(&fakeBrowser{connected: true}, &fakeStatus{})
	if err != nil {
		t.Fatal(err)
	}
	cs := connect(t, s)
	if text := callText(t, cs, "check_connection", nil); strings.Contains(text, "NOT") {
		t.Errorf("check_connection = %q", text)
	}

	s2, err := New(&fakeBrowser{connected: false}, &fakeStatus{})
	if err != nil {
		t.Fatal(err)
	}
	cs2 := connect(t, s2)
	if text := callText(t, cs2, "check_connection", nil); !strings.Contains(text, "NOT") {
		t.Errorf("check_connection = %q", text)
	}
}

func TestToolCatalogue(t *testing.T) {
	t.Parallel()

	s, err := New(&fakeBrowser{}, &fakeStatus{})
	if err != nil {
		t.Fatal(err)
	}
	cs := connect(t, s)

	res, err := cs.ListTools(context.Background(), nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	got := make(map[string]bool, len(res.Tools))
	for _, tool := range res.Tools {
		got[tool.Name] = true
	}
	for _, want := range []string{"deck_names", "due_cards", "current_card", "session_status", "check_connection"} {
		if !got[want] {
			t.Errorf("tool %q not listed", want)
		}
	}
}
