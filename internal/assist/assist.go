// Package assist exposes review-session context to LLM assistants over the
// Model Context Protocol.
//
// The server publishes read-only tools: listing decks, listing due cards,
// inspecting the card under review, and reporting live session statistics.
// Grading stays voice-only; an assistant can observe a session but never
// answer cards on the reviewer's behalf.
package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cardvox/cardvox/internal/session"
	"github.com/cardvox/cardvox/pkg/cardctl"
)

// defaultDueLimit bounds due_cards results when the caller gives no limit.
const defaultDueLimit = 20

// CardBrowser is the read-only card service surface the tools query.
// Implemented by [cardctl.Client].
type CardBrowser interface {
	TestConnection(ctx context.Context) bool
	CurrentCard(ctx context.Context) (*cardctl.Card, error)
	DeckNames(ctx context.Context) ([]string, error)
	DueCards(ctx context.Context, deck string, limit int) ([]cardctl.CardInfo, error)
}

// StatusReporter provides the live session snapshot. Implemented by
// [session.Controller].
type StatusReporter interface {
	Status() session.Snapshot
}

// Server is the MCP tool server. Create one with [New], then serve it with
// [Server.Run] or mount [Server.MCP] on a transport of your own.
type Server struct {
	cards  CardBrowser
	status StatusReporter
	mcp    *mcp.Server
}

// New creates the tool server and registers all tools.
func New(cards CardBrowser, status StatusReporter) (*Server, error) {
	if cards == nil {
		return nil, errors.New("assist: card browser must not be nil")
	}
	if status == nil {
		return nil, errors.New("assist: status reporter must not be nil")
	}

	s := &Server{
		cards:  cards,
		status: status,
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "cardvox-assist",
			Version: "1.0.0",
		}, nil),
	}
	s.registerTools()
	return s, nil
}

// MCP returns the underlying MCP server for custom transports.
func (s *Server) MCP() *mcp.Server { return s.mcp }

// Run serves MCP sessions on the given transport until ctx is cancelled.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	return s.mcp.Run(ctx, t)
}

type dueCardsArgs struct {
	// Deck filters results to a single deck. Empty means all decks.
	Deck string `json:"deck,omitempty"`

	// Limit caps the number of returned cards. Zero selects the default.
	Limit int `json:"limit,omitempty"`
}

type emptyArgs struct{}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "deck_names",
		Description: "List the names of all decks in the card collection.",
	}, s.deckNames)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "due_cards",
		Description: "List cards currently due for review, optionally filtered by deck.",
	}, s.dueCards)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "current_card",
		Description: "Return the question and answer of the card currently under review.",
	}, s.currentCard)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "session_status",
		Description: "Report the live review session state and statistics.",
	}, s.sessionStatus)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "check_connection",
		Description: "Check whether the card control service is reachable.",
	}, s.checkConnection)
}

func (s *Server) deckNames(ctx context.Context, _ *mcp.CallToolRequest, _ emptyArgs) (*mcp.CallToolResult, any, error) {
	names, err := s.cards.DeckNames(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("assist: deck names: %w", err)
	}
	if len(names) == 0 {
		return textResult("The collection has no decks."), nil, nil
	}
	return textResult("Decks:\n" + strings.Join(names, "\n")), nil, nil
}

func (s *Server) dueCards(ctx context.Context, _ *mcp.CallToolRequest, args dueCardsArgs) (*mcp.CallToolResult, any, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = defaultDueLimit
	}
	cards, err := s.cards.DueCards(ctx, args.Deck, limit)
	if err != nil {
		return nil, nil, fmt.Errorf("assist: due cards: %w", err)
	}
	if len(cards) == 0 {
		return textResult("No cards are due."), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d card(s) due:\n", len(cards))
	for _, c := range cards {
		fmt.Fprintf(&b, "- [%s] %s\n", c.DeckName, session.CleanCardText(c.Question))
	}
	return textResult(b.String()), nil, nil
}

func (s *Server) currentCard(ctx context.Context, _ *mcp.CallToolRequest, _ emptyArgs) (*mcp.CallToolResult, any, error) {
	card, err := s.cards.CurrentCard(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("assist: current card: %w", err)
	}
	if card == nil {
		return textResult("No card is under review."), nil, nil
	}
	text := fmt.Sprintf("Deck: %s\nQuestion: %s\nAnswer: %s",
		card.DeckName,
		session.CleanCardText(card.Question),
		session.CleanCardText(card.Answer))
	return textResult(text), nil, nil
}

func (s *Server) sessionStatus(_ context.Context, _ *mcp.CallToolRequest, _ emptyArgs) (*mcp.CallToolResult, any, error) {
	snap := s.status.Status()
	text := fmt.Sprintf("State: %s\nListening: %t\nCards reviewed: %d\nCorrect: %d\nAccuracy: %d%%",
		snap.State,
		snap.Listening,
		snap.Stats.CardsReviewed,
		snap.Stats.CorrectCount,
		snap.Stats.Accuracy())
	return textResult(text), nil, nil
}

func (s *Server) checkConnection(ctx context.Context, _ *mcp.CallToolRequest, _ emptyArgs) (*mcp.CallToolResult, any, error) {
	if s.cards.TestConnection(ctx) {
		return textResult("Card control service is reachable."), nil, nil
	}
	return textResult("Card control service is NOT reachable."), nil, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}
