package sse

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultReconnectBackoff is the fixed wait between reconnect attempts.
const DefaultReconnectBackoff = 3 * time.Second

// Message is one decoded frame from the event stream.
type Message struct {
	Event string
	Data  string
}

// frameParser is an explicit state machine over a line stream. Feeding it
// lines accumulates field values; a blank line terminates the pending
// message and emits it. Lines starting with ':' are comments and unknown
// fields are ignored, matching the wire contract.
type frameParser struct {
	event   string
	data    []string
	pending bool
}

// Feed consumes one line (without its trailing newline) and reports a
// completed message when the line terminates one.
func (p *frameParser) Feed(line string) (Message, bool) {
	if line == "" {
		if !p.pending {
			return Message{}, false
		}
		msg := Message{Event: p.event, Data: strings.Join(p.data, "\n")}
		p.event, p.data, p.pending = "", nil, false
		return msg, true
	}

	if strings.HasPrefix(line, ":") {
		return Message{}, false
	}

	field, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch field {
	case "event":
		p.event = value
		p.pending = true
	case "data":
		p.data = append(p.data, value)
		p.pending = true
	}
	return Message{}, false
}

// Client consumes the server's event stream over a long-lived connection.
//
// Events that fire while the client is disconnected are permanently lost:
// there is no replay or sequence numbering. OnConnect runs after every
// (re)connect so callers can eagerly pull authoritative state before
// processing pushed events.
type Client struct {
	URL     string
	Token   string
	Backoff time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger

	OnConnect func(ctx context.Context)
	OnMessage func(msg Message)
}

// Run connects to the stream and dispatches messages until ctx is
// cancelled. On any stream error it waits the fixed backoff and reconnects.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = DefaultReconnectBackoff
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	for {
		if err := c.stream(ctx); err != nil {
			logger.Debug("sse client: stream ended", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// stream runs one connection: subscribe, notify OnConnect, then decode
// frames until the stream breaks.
func (c *Client) stream(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return fmt.Errorf("sse client: build request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sse client: connect: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sse client: unexpected status %d", resp.StatusCode)
	}

	if c.OnConnect != nil {
		c.OnConnect(ctx)
	}

	var parser frameParser
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		if msg, ok := parser.Feed(scanner.Text()); ok && c.OnMessage != nil {
			c.OnMessage(msg)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("sse client: read: %w", err)
	}
	return fmt.Errorf("sse client: stream closed by server")
}
