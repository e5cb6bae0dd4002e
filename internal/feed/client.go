// Package feed owns the streaming connection to the market-data venue.
// One Client maintains exactly one live multiplexed depth+trade stream for
// one symbol and delivers typed events over a bounded channel; it carries
// no business logic.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"bookwatch/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// eventBufferSize bounds the typed-event channel. The consumer loop
	// applies events faster than the feed produces them; the bound makes
	// backpressure explicit instead of hiding it in callback nesting.
	eventBufferSize = 256

	// statusBufferSize bounds the status channel.
	statusBufferSize = 16
)

const (
	// DefaultMaxRetries is the reconnect budget before the terminal error
	// status.
	DefaultMaxRetries = 5

	// DefaultBackoffBase is the first reconnect delay; it doubles per
	// consecutive failure.
	DefaultBackoffBase = time.Second

	// DefaultBackoffCap bounds the reconnect delay growth.
	DefaultBackoffCap = 30 * time.Second

	// DefaultDepthLevels is the partial-depth window subscribed to.
	DefaultDepthLevels = 20

	// DefaultHandshakeTimeout bounds the websocket dial.
	DefaultHandshakeTimeout = 15 * time.Second
)

// Config holds the per-subscription transport parameters.
type Config struct {
	// BaseURL is the stream endpoint, e.g. "wss://stream.binance.com:9443".
	BaseURL string

	// Symbol is the instrument to subscribe, e.g. "BTCUSDT".
	Symbol string

	// DepthLevels selects the published partial-depth window.
	DepthLevels int

	MaxRetries       int
	BackoffBase      time.Duration
	BackoffCap       time.Duration
	HandshakeTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.DepthLevels <= 0 {
		c.DepthLevels = DefaultDepthLevels
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = DefaultBackoffCap
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
}

// Client is the feed transport for one symbol. Create with New, start with
// Connect, tear down with Disconnect. After Disconnect the instance is
// terminal and must not be reused; a symbol change is a new Client.
type Client struct {
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	conn       *websocket.Conn
	active     bool // Connect called and not yet errored/disconnected
	closed     bool // Disconnect called; terminal
	retries    int
	retryTimer *time.Timer

	events chan Event
	status chan domain.Status
}

// New creates a Client for the given symbol. Zero config fields fall back
// to the package defaults.
func New(cfg Config, logger *slog.Logger) *Client {
	cfg.applyDefaults()
	return &Client{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "feed"), slog.String("symbol", cfg.Symbol)),
		events: make(chan Event, eventBufferSize),
		status: make(chan domain.Status, statusBufferSize),
	}
}

// Events returns the typed event channel. It is never closed; consumers
// stop on their own context.
func (c *Client) Events() <-chan Event { return c.events }

// Status returns the connection status channel. Status is the sole error
// surface of the transport: individual bad frames never appear here, and
// StatusError means the retry budget is exhausted.
func (c *Client) Status() <-chan domain.Status { return c.status }

// Connect starts the connection lifecycle. It is idempotent: a second call
// while connecting or connected is a no-op. After a terminal StatusError
// it may be called again to restart with a fresh retry budget. Dialing and
// reconnecting happen on background goroutines; progress is reported via
// Status. The only error returned is ErrFeedClosed after Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrFeedClosed
	}
	if c.active {
		c.mu.Unlock()
		return nil
	}
	c.active = true
	c.retries = 0
	c.mu.Unlock()

	c.emitStatus(domain.StatusConnecting)
	go c.dial(ctx)
	return nil
}

// Disconnect tears the transport down: it suppresses all further reconnect
// attempts (including a pending backoff timer), closes the underlying
// connection, and marks the client terminal. Safe to call at any time and
// more than once.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.active = false
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
	c.emitStatus(domain.StatusDisconnected)
}

// dial attempts one connection. A dial failure is handled like a dropped
// connection: it consumes one retry from the budget.
func (c *Client) dial(ctx context.Context) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, c.streamURL(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		c.logger.WarnContext(ctx, "dial failed", slog.String("error", err.Error()))
		c.scheduleReconnect(ctx)
		return
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.retries = 0
	c.mu.Unlock()

	c.emitStatus(domain.StatusConnected)
	c.logger.InfoContext(ctx, "stream connected", slog.String("url", c.cfg.BaseURL))

	connDone := make(chan struct{})
	go c.pingLoop(conn, connDone)
	c.readLoop(ctx, conn)
	close(connDone)
}

// readLoop pumps frames from the connection until it closes. It never
// returns an error to callers: a non-manual close feeds the reconnect
// decision, and malformed frames are logged and dropped.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			manual := c.closed
			c.conn = nil
			c.mu.Unlock()
			if manual {
				return
			}
			c.logger.WarnContext(ctx, "stream closed", slog.String("error", err.Error()))
			c.scheduleReconnect(ctx)
			return
		}

		ev, ok := parseEvent(raw)
		if !ok {
			// One bad frame must never crash the stream; the next valid
			// depth snapshot corrects the book.
			c.logger.DebugContext(ctx, "dropping unparseable frame",
				slog.Int("bytes", len(raw)))
			continue
		}

		select {
		case c.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// pingLoop keeps the connection alive until the read pump exits.
func (c *Client) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// scheduleReconnect applies the bounded exponential backoff policy. While
// budget remains it emits StatusConnecting and arms a timer; once the
// budget is spent it emits the terminal StatusError and stops.
func (c *Client) scheduleReconnect(ctx context.Context) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.retries >= c.cfg.MaxRetries {
		c.active = false
		c.mu.Unlock()
		c.logger.Error("reconnect retries exhausted",
			slog.Int("max_retries", c.cfg.MaxRetries),
			slog.String("error", domain.ErrRetriesExhausted.Error()))
		c.emitStatus(domain.StatusError)
		return
	}
	delay := backoffFor(c.retries, c.cfg.BackoffBase, c.cfg.BackoffCap)
	c.retries++
	attempt := c.retries
	c.retryTimer = time.AfterFunc(delay, func() { c.dial(ctx) })
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "reconnect scheduled",
		slog.Int("attempt", attempt),
		slog.Duration("delay", delay))
	c.emitStatus(domain.StatusConnecting)
}

// backoffFor returns min(base * 2^retry, cap).
func backoffFor(retry int, base, capDelay time.Duration) time.Duration {
	d := base
	for i := 0; i < retry; i++ {
		d *= 2
		if d >= capDelay {
			return capDelay
		}
	}
	if d > capDelay {
		return capDelay
	}
	return d
}

// emitStatus delivers a status transition without ever blocking the
// transport path. When the consumer has fallen a full buffer behind, the
// oldest buffered transition is evicted so the newest one survives; the
// terminal StatusError in particular must never be the dropped one.
func (c *Client) emitStatus(s domain.Status) {
	for {
		select {
		case c.status <- s:
			return
		default:
		}
		select {
		case <-c.status:
		default:
		}
	}
}

// streamURL builds the combined-stream subscription URL for the symbol's
// partial depth and trade channels.
func (c *Client) streamURL() string {
	sym := strings.ToLower(c.cfg.Symbol)
	return fmt.Sprintf("%s/stream?streams=%s@depth%d@100ms/%s@aggTrade",
		strings.TrimSuffix(c.cfg.BaseURL, "/"), sym, c.cfg.DepthLevels, sym)
}
