// Package cardctl provides a client for the card control service — the
// external review application that owns card storage and scheduling.
//
// The wire protocol is JSON over HTTP: every call POSTs an envelope of the
// form {"action": ..., "version": 6, "params": ...} to a single endpoint and
// receives {"result": ..., "error": ...}. Service-level failures arrive as a
// non-null "error" field on a 200 response, not as transport errors.
//
// The client never panics and its review operations never return fatal
// errors to orchestration code paths that can tolerate failure: connection
// probes report a boolean, and action errors are plain wrapped errors the
// caller surfaces as feedback.
package cardctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	// protocolVersion is the envelope version the service expects. The
	// connection probe also requires the service to report at least this
	// version.
	protocolVersion = 6

	// defaultEndpoint is the service's standard local address.
	defaultEndpoint = "http://localhost:8765"

	// defaultTimeout bounds every request.
	defaultTimeout = 5 * time.Second
)

// Card is the raw content of the currently displayed card. Question and
// Answer may contain markup; callers that feed the text to speech synthesis
// are expected to strip it.
type Card struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	CardID   int64  `json:"cardId"`
	DeckName string `json:"deckName"`
}

// CardInfo is the detail record returned by card queries.
type CardInfo struct {
	CardID   int64  `json:"cardId"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	DeckName string `json:"deckName"`
	Due      int64  `json:"due"`
	Interval int64  `json:"interval"`
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Used by tests and by
// callers that need custom transport settings.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Client calls the card control service. It is stateless apart from its
// configuration and safe for concurrent use.
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
}

// New creates a Client for the given endpoint. An empty endpoint selects the
// service's standard local address.
func New(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	c := &Client{
		endpoint:   endpoint,
		timeout:    defaultTimeout,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// envelope is the request body for every action.
type envelope struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
}

// response is the common reply shape. Result is decoded per-action.
type response struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}

// invoke performs one action round-trip and decodes the result into out.
// Pass nil out to discard the result.
func (c *Client) invoke(ctx context.Context, action string, params any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(envelope{Action: action, Version: protocolVersion, Params: params})
	if err != nil {
		return fmt.Errorf("cardctl: marshal %s: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("cardctl: build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cardctl: %s: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cardctl: %s: unexpected status %d", action, resp.StatusCode)
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return fmt.Errorf("cardctl: %s: decode response: %w", action, err)
	}
	if r.Error != nil && *r.Error != "" {
		return fmt.Errorf("cardctl: %s: service error: %s", action, *r.Error)
	}
	if out != nil && len(r.Result) > 0 && string(r.Result) != "null" {
		if err := json.Unmarshal(r.Result, out); err != nil {
			return fmt.Errorf("cardctl: %s: decode result: %w", action, err)
		}
	}
	return nil
}

// TestConnection probes the service with a version request. It never returns
// an error: any transport or protocol failure, and any reported version below
// the required protocol version, yields false.
func (c *Client) TestConnection(ctx context.Context) bool {
	var version int
	if err := c.invoke(ctx, "version", nil, &version); err != nil {
		slog.Debug("cardctl: connection probe failed", "endpoint", c.endpoint, "error", err)
		return false
	}
	return version >= protocolVersion
}

// ShowAnswer asks the service to reveal the current card's answer (or advance
// to the next card when the answer is already shown).
func (c *Client) ShowAnswer(ctx context.Context) error {
	return c.invoke(ctx, "guiShowAnswer", nil, nil)
}

// Grade submits a review grade for the current card. ease must be the
// service's 1–4 ordinal (1=Again, 2=Hard, 3=Good, 4=Easy).
func (c *Client) Grade(ctx context.Context, ease int) error {
	if ease < 1 || ease > 4 {
		return fmt.Errorf("cardctl: grade ease %d out of range [1,4]", ease)
	}
	return c.invoke(ctx, "guiAnswerCard", map[string]int{"ease": ease}, nil)
}

// CurrentCard fetches the currently displayed card. Returns nil with no error
// when no card is being reviewed.
func (c *Client) CurrentCard(ctx context.Context) (*Card, error) {
	var card Card
	if err := c.invoke(ctx, "guiCurrentCard", nil, &card); err != nil {
		return nil, err
	}
	if card.Question == "" && card.Answer == "" {
		return nil, nil
	}
	return &card, nil
}

// DeckNames lists the decks known to the service.
func (c *Client) DeckNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.invoke(ctx, "deckNames", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// DueCards returns detail records for cards currently due for review.
// deck narrows the query to one deck ("" = all decks); limit caps the result
// size (<= 0 selects 50).
func (c *Client) DueCards(ctx context.Context, deck string, limit int) ([]CardInfo, error) {
	if limit <= 0 {
		limit = 50
	}

	query := "is:due"
	if deck != "" {
		query = fmt.Sprintf("deck:%q is:due", deck)
	}

	var ids []int64
	if err := c.invoke(ctx, "findCards", map[string]string{"query": query}, &ids); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > limit {
		ids = ids[:limit]
	}

	var infos []CardInfo
	if err := c.invoke(ctx, "cardsInfo", map[string][]int64{"cards": ids}, &infos); err != nil {
		return nil, err
	}
	return infos, nil
}
